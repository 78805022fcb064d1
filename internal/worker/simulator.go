package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
)

// Outcome is how the simulator resolves one attempt at a track.
type Outcome struct {
	State  models.TrackState
	Reason models.FailureReason
	Source *models.Source // Required when State is TrackDownloaded
}

// PlanFunc picks the outcome of attempt n (starting at 1) for a track.
type PlanFunc func(track models.Track, attempt int) Outcome

// SimulatorOptions tunes a [Simulator]. Zero values fall back to demo-friendly defaults.
type SimulatorOptions struct {
	Tracks       []models.Track // Tracks to "extract"; generated from a built-in catalogue when empty
	TrackCount   int            // Number of generated tracks (default: 8)
	ExtractDelay time.Duration  // Delay before the track list is published
	SearchDelay  time.Duration  // Time each track spends in the searching set
	Step         time.Duration  // Interval between transfer progress updates
	Chunk        int64          // Bytes transferred per step
	SearchRate   float64        // Searches started per second; <= 0 means unlimited
	Plan         PlanFunc
	Logger       *log.Logger
}

// DefaultSimulatorOptions are the timings used by the CLI and TUI demo mode.
func DefaultSimulatorOptions() SimulatorOptions {
	return SimulatorOptions{
		TrackCount:   8,
		ExtractDelay: 700 * time.Millisecond,
		SearchDelay:  900 * time.Millisecond,
		Step:         100 * time.Millisecond,
		Chunk:        256 * 1024,
		SearchRate:   4,
	}
}

// Simulator is an in-process [Downloader] that fakes extraction, searching and transfers.
//
// Tracks are processed by a bounded pool of goroutines. Failed tracks may be re-queued with
// [Simulator.Retry] while Run is active; queued retries run once the current batch drains.
type Simulator struct {
	state   *LiveState
	params  Params
	opts    SimulatorOptions
	limiter *rate.Limiter
	logger  *log.Logger

	mu       sync.Mutex
	started  bool
	closed   bool
	attempts map[string]int
	retries  []string
}

// NewSimulator creates a simulator for one run.
func NewSimulator(params Params, opts SimulatorOptions) *Simulator {
	if opts.TrackCount <= 0 {
		opts.TrackCount = 8
	}
	if opts.Chunk <= 0 {
		opts.Chunk = 256 * 1024
	}
	if opts.Plan == nil {
		opts.Plan = DefaultPlan(params)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if params.Concurrency <= 0 {
		params.Concurrency = 2
	}

	limit := rate.Inf
	if opts.SearchRate > 0 {
		limit = rate.Limit(opts.SearchRate)
	}

	return &Simulator{
		state:    NewLiveState(),
		params:   params,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   opts.Logger.With("port", params.ListenPort),
		attempts: make(map[string]int),
	}
}

// SimulatorFactory returns a [Factory] producing simulators configured with opts.
func SimulatorFactory(opts SimulatorOptions) Factory {
	return func(p Params) (Downloader, error) {
		return NewSimulator(p, opts), nil
	}
}

func (s *Simulator) Tracks() []models.Track        { return s.state.Tracks() }
func (s *Simulator) Searches() map[string]struct{} { return s.state.Searches() }
func (s *Simulator) Transfers() []models.Transfer  { return s.state.Transfers() }

// Run extracts the track list and processes every track, then any queued retries.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("simulator can only run once")
	}
	s.started = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}()

	if err := sleep(ctx, s.opts.ExtractDelay); err != nil {
		return err
	}

	tracks := s.extract()
	s.state.SetTracks(tracks)
	s.logger.Info("extracted tracks", "input", s.params.Input, "count", len(tracks))

	batch := make([]string, len(tracks))
	for i, t := range tracks {
		batch[i] = t.ID
	}

	for len(batch) > 0 {
		if err := s.runBatch(ctx, batch); err != nil {
			return err
		}
		batch = s.drainRetries()
	}

	s.logger.Info("batch finished")
	return nil
}

// Retry re-queues a failed track. It fails with [shared.ErrNotRunning] once Run has returned.
func (s *Simulator) Retry(trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed {
		return shared.ErrNotRunning
	}

	track, ok := s.state.Track(trackID)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
	}
	if track.State != models.TrackFailed && track.State != models.TrackNotFoundLastTime {
		return fmt.Errorf("%w: track is %s", shared.ErrRetryNotAllowed, track.State)
	}

	s.state.UpdateTrack(trackID, func(t *models.Track) {
		t.State = models.TrackInitial
		t.FailureReason = models.FailureNone
		t.DownloadPath = ""
		t.FirstSource = nil
	})
	s.retries = append(s.retries, trackID)
	s.logger.Debug("queued retry", "track", trackID)
	return nil
}

func (s *Simulator) runBatch(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.params.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			return s.process(gctx, id)
		})
	}
	return g.Wait()
}

// drainRetries takes the queued retries. When the queue is empty the simulator stops accepting
// new ones, so no retry can be queued after the final batch.
func (s *Simulator) drainRetries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.retries
	s.retries = nil
	if len(batch) == 0 {
		s.closed = true
	}
	return batch
}

func (s *Simulator) process(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.attempts[id]++
	attempt := s.attempts[id]
	s.mu.Unlock()

	track, ok := s.state.Track(id)
	if !ok {
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	s.state.BeginSearch(id)
	err := sleep(ctx, s.opts.SearchDelay)
	s.state.EndSearch(id)
	if err != nil {
		return err
	}

	outcome := s.opts.Plan(track, attempt)
	if outcome.State != models.TrackDownloaded || outcome.Source == nil {
		s.state.UpdateTrack(id, func(t *models.Track) {
			t.State = outcome.State
			t.FailureReason = outcome.Reason
		})
		s.logger.Debug("track resolved", "track", id, "state", outcome.State, "reason", outcome.Reason)
		return nil
	}

	src := *outcome.Source
	if err := s.transfer(ctx, id, src); err != nil {
		return err
	}

	path := filepath.Join(s.params.OutputPath, fileName(track, src.File.Extension))
	s.state.UpdateTrack(id, func(t *models.Track) {
		t.State = models.TrackDownloaded
		t.FailureReason = models.FailureNone
		t.DownloadPath = path
		t.FirstSource = &src
	})
	s.state.EndTransfer(id)
	s.logger.Debug("track downloaded", "track", id, "peer", src.Peer, "path", path)
	return nil
}

func (s *Simulator) transfer(ctx context.Context, id string, src models.Source) error {
	s.state.StartTransfer(id, src.Peer, src.File, time.Now())

	for sent := int64(0); sent < src.File.Size; sent += s.opts.Chunk {
		if err := sleep(ctx, s.opts.Step); err != nil {
			s.state.EndTransfer(id)
			return err
		}
		s.state.AddBytes(id, s.opts.Chunk)
	}
	return nil
}

func (s *Simulator) extract() []models.Track {
	if len(s.opts.Tracks) > 0 {
		return s.opts.Tracks
	}

	tracks := make([]models.Track, s.opts.TrackCount)
	for i := range tracks {
		entry := catalogue[i%len(catalogue)]
		tracks[i] = models.Track{
			ID:     shared.GenerateID(),
			Artist: entry[0],
			Title:  entry[1],
			Album:  entry[2],
		}
	}
	return tracks
}

// DefaultPlan fails roughly one track in five on the first attempt and succeeds otherwise.
// Outcomes are derived from the track ID so a run is reproducible for a given list.
func DefaultPlan(p Params) PlanFunc {
	ext := "." + strings.ToLower(p.Format)
	if p.Format == "" {
		ext = ".mp3"
	}

	return func(track models.Track, attempt int) Outcome {
		h := fnv.New32a()
		h.Write([]byte(track.ID))
		n := h.Sum32()

		if attempt == 1 {
			switch n % 10 {
			case 0:
				return Outcome{State: models.TrackNotFoundLastTime, Reason: models.FailureNotFound}
			case 1:
				return Outcome{State: models.TrackFailed, Reason: models.FailureAllSourcesFailed}
			}
		}

		return Outcome{
			State: models.TrackDownloaded,
			Source: &models.Source{
				Peer: fmt.Sprintf("peer%03d", n%1000),
				File: models.FileInfo{
					Name:      fileName(track, ext),
					Extension: ext,
					BitRate:   p.Bitrate,
					Size:      int64(3+n%6) * 1024 * 1024,
				},
			},
		}
	}
}

func fileName(track models.Track, ext string) string {
	name := track.Title
	if track.Artist != "" && name != "" {
		name = track.Artist + " - " + name
	}
	if name == "" {
		name = track.ID
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name) + ext
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var catalogue = [][3]string{
	{"Boards of Canada", "Roygbiv", "Music Has the Right to Children"},
	{"Aphex Twin", "Xtal", "Selected Ambient Works 85-92"},
	{"Burial", "Archangel", "Untrue"},
	{"", "Untitled Interlude", ""},
	{"Four Tet", "Angel Echoes", "There Is Love in You"},
	{"Jon Hopkins", "", "Immunity"},
	{"Bonobo", "Kerala", "Migration"},
	{"Caribou", "Odessa", "Swim"},
	{"Floating Points", "Silhouettes", "Elaenia"},
	{"Nils Frahm", "Says", "Spaces"},
}
