package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/sldlx/internal/formatter"
	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
)

// rateWindow is the minimum transfer age before a rate is shown.
const rateWindow = 500 * time.Millisecond

// Item is the presentation state of one track.
//
// The identity and display name are fixed at creation. All other fields change only through
// [Item.Reconcile], [Item.Retry] and [Item.Cancel].
type Item struct {
	trackID      string
	name         string
	status       models.Status
	progress     float64
	path         string
	detail       string
	failure      models.FailureReason
	retryPending bool
}

// NewItem creates a Waiting item for track.
func NewItem(track models.Track) *Item {
	return &Item{trackID: track.ID, name: DisplayName(track), status: models.StatusWaiting}
}

// DisplayName picks "Artist - Title", then Title, then "Artist - Album", then "Unknown".
func DisplayName(track models.Track) string {
	artist := strings.TrimSpace(track.Artist)
	title := strings.TrimSpace(track.Title)
	album := strings.TrimSpace(track.Album)

	switch {
	case artist != "" && title != "":
		return artist + " - " + title
	case title != "":
		return title
	case artist != "" && album != "":
		return artist + " - " + album
	default:
		return "Unknown"
	}
}

func (it *Item) TrackID() string               { return it.trackID }
func (it *Item) Name() string                  { return it.name }
func (it *Item) Status() models.Status         { return it.status }
func (it *Item) Progress() float64             { return it.progress }
func (it *Item) Path() string                  { return it.path }
func (it *Item) Detail() string                { return it.detail }
func (it *Item) Failure() models.FailureReason { return it.failure }
func (it *Item) RetryPending() bool            { return it.retryPending }

// Reconcile applies one sample of worker state and reports whether anything changed.
//
// Rules, first match wins:
//  1. A terminal status is kept.
//  2. A final worker state moves to Completed, Failed or Skipped.
//  3. A live transfer moves to Downloading and refreshes progress and detail.
//  4. A Waiting item in the searching set moves to Searching.
//
// The output path is copied whenever the worker reports a new one, whatever the status.
// While a retry is pending, a failed worker state is stale: rule 2 skips it but rules 3 and 4
// still apply. The retry stops being pending once the worker reports the track as not final
// or is seen searching or transferring it.
func (it *Item) Reconcile(track models.Track, searching bool, transfer *models.Transfer, now time.Time) bool {
	before := *it

	if track.DownloadPath != "" && track.DownloadPath != it.path {
		it.path = track.DownloadPath
	}

	if it.retryPending {
		if isFailure(track.State) {
			if transfer != nil || searching {
				it.retryPending = false
				it.observe(searching, transfer, now)
			}
			return *it != before
		}
		it.retryPending = false
	}

	if it.status.IsTerminal() {
		return *it != before
	}

	switch track.State {
	case models.TrackDownloaded, models.TrackAlreadyExists:
		it.complete(track.FirstSource)
	case models.TrackFailed, models.TrackNotFoundLastTime:
		it.fail(track)
	case models.TrackSkipped:
		it.status = models.StatusSkipped
	default:
		it.observe(searching, transfer, now)
	}

	return *it != before
}

// observe applies the live transfer and search rules.
func (it *Item) observe(searching bool, transfer *models.Transfer, now time.Time) {
	switch {
	case transfer != nil:
		it.download(*transfer, now)
	case searching && it.status == models.StatusWaiting:
		it.status = models.StatusSearching
	}
}

// Retry resets a Failed item to Waiting. Any other status fails with [shared.ErrRetryNotAllowed].
func (it *Item) Retry() error {
	if it.status != models.StatusFailed {
		return fmt.Errorf("%w: %s is %s", shared.ErrRetryNotAllowed, it.name, it.status)
	}

	it.status = models.StatusWaiting
	it.progress = 0
	it.detail = ""
	it.failure = models.FailureNone
	it.retryPending = true
	return nil
}

// Cancel moves a Waiting, Searching or Downloading item to Cancelled.
func (it *Item) Cancel() bool {
	switch it.status {
	case models.StatusWaiting, models.StatusSearching, models.StatusDownloading:
		it.status = models.StatusCancelled
		return true
	default:
		return false
	}
}

// View returns the presentation record of the item at position.
func (it *Item) View(position int) ItemView {
	return ItemView{
		Position:   position,
		TrackID:    it.trackID,
		Name:       it.name,
		Status:     it.status,
		StatusText: formatter.StatusText(it.status, it.progress, it.failure),
		Progress:   it.progress,
		Detail:     it.detail,
		Path:       it.path,
		Failure:    it.failure.Label(),
	}
}

// record converts the item to its stored form.
func (it *Item) record(position int) models.SessionItem {
	return models.SessionItem{
		Position: position,
		TrackID:  it.trackID,
		Name:     it.name,
		Status:   it.status,
		Progress: it.progress,
		Detail:   it.detail,
		Path:     it.path,
		Failure:  it.failure,
	}
}

// complete freezes the detail from the winning source. Progress stays at its last observed value.
func (it *Item) complete(src *models.Source) {
	it.status = models.StatusCompleted
	it.failure = models.FailureNone
	it.detail = ""
	if src != nil {
		it.detail = formatter.SourceDetail(src.Peer, src.File, "")
	}
}

func (it *Item) fail(track models.Track) {
	reason := track.FailureReason
	if reason == models.FailureNone {
		reason = models.FailureUnknown
		if track.State == models.TrackNotFoundLastTime {
			reason = models.FailureNotFound
		}
	}

	it.status = models.StatusFailed
	it.failure = reason
	it.detail = reason.Label()
}

func (it *Item) download(tr models.Transfer, now time.Time) {
	it.status = models.StatusDownloading

	if tr.File.Size > 0 {
		it.progress = clampPercent(float64(tr.BytesTransferred) / float64(tr.File.Size) * 100)
	}

	rate := ""
	if elapsed := now.Sub(tr.StartedAt); elapsed > rateWindow {
		rate = formatter.FormatSpeed(float64(tr.BytesTransferred) / elapsed.Seconds())
	}
	it.detail = formatter.SourceDetail(tr.Peer, tr.File, rate)
}

func isFailure(s models.TrackState) bool {
	return s == models.TrackFailed || s == models.TrackNotFoundLastTime
}

func clampPercent(p float64) float64 {
	return max(0, min(100, p))
}
