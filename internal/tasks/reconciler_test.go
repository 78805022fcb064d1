package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
	th "github.com/desertthunder/sldlx/internal/testing"
	"github.com/desertthunder/sldlx/internal/worker"
)

type memRecorder struct {
	mu      sync.Mutex
	records []*models.SessionRecord
	err     error
}

func (m *memRecorder) Record(ctx context.Context, rec *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *memRecorder) all() []*models.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.SessionRecord(nil), m.records...)
}

// sequence hands out the given downloaders one per run.
func sequence(mocks ...*th.MockDownloader) worker.Factory {
	var mu sync.Mutex
	return func(worker.Params) (worker.Downloader, error) {
		mu.Lock()
		defer mu.Unlock()
		m := mocks[0]
		mocks = mocks[1:]
		return m, nil
	}
}

type fixture struct {
	r        *Reconciler
	clock    *ManualClock
	recorder *memRecorder
	cfg      *shared.Config
}

func newFixture(factory worker.Factory) *fixture {
	f := &fixture{
		clock:    NewManualClock(t0),
		recorder: &memRecorder{},
		cfg:      testConfig(),
	}
	f.r = NewReconciler(ReconcilerOpts{
		Config:   f.cfg,
		Factory:  factory,
		Clock:    f.clock,
		Recorder: f.recorder,
	})
	return f
}

func threeTracks() []models.Track {
	return []models.Track{
		{ID: "t1", Artist: "A", Title: "One"},
		{ID: "t2", Artist: "B", Title: "Two"},
		{ID: "t3", Title: "Three"},
	}
}

func statusOf(snap Snapshot, id string) models.Status {
	for _, v := range snap.Items {
		if v.TrackID == id {
			return v.Status
		}
	}
	return -1
}

func itemOf(t *testing.T, snap Snapshot, id string) ItemView {
	t.Helper()
	for _, v := range snap.Items {
		if v.TrackID == id {
			return v
		}
	}
	t.Fatalf("item %s not in snapshot", id)
	return ItemView{}
}

// finish ends the mock run and ticks until the reconciler notices.
func finish(t *testing.T, f *fixture, mock *th.MockDownloader, err error) {
	t.Helper()
	mock.Finish(err)
	waitFor(t, func() bool {
		f.r.Tick()
		return !f.r.IsActive()
	})
}

func TestReconcilerStart(t *testing.T) {
	t.Run("unsupported input", func(t *testing.T) {
		f := newFixture(th.NewMockDownloader().Factory())

		if err := f.r.Start("https://example.com/x"); !errors.Is(err, shared.ErrUnsupportedInput) {
			t.Fatalf("expected ErrUnsupportedInput, got %v", err)
		}
		if got := f.r.Snapshot().Status; got != shared.UnsupportedInputMessage {
			t.Errorf("status = %q", got)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(th.NewMockDownloader().Factory())
		f.cfg.Credentials.Soulseek.Password = ""

		if err := f.r.Start("spotify-likes"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
		if got := f.r.Snapshot().Status; got != StatusMissingCredentials {
			t.Errorf("status = %q", got)
		}
		if f.r.IsActive() {
			t.Error("no session should be active")
		}
	})

	t.Run("starting status and ticker", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		defer mock.Finish(nil)

		if err := f.r.Start("  spotify-likes "); err != nil {
			t.Fatalf("Start() error: %v", err)
		}

		snap := f.r.Snapshot()
		if !snap.Active || snap.Status != "Starting: spotify-likes" || snap.SessionID == "" {
			t.Errorf("unexpected snapshot %+v", snap)
		}

		tickers := f.clock.Tickers()
		if len(tickers) != 1 || tickers[0].Interval != 500*time.Millisecond {
			t.Fatalf("expected one 500ms ticker, got %+v", tickers)
		}
	})

	t.Run("second start is rejected", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		defer mock.Finish(nil)

		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		mock.SetTracks(threeTracks()...)
		f.r.Tick()
		before := f.r.Snapshot()

		if err := f.r.Start("spotify-albums"); !errors.Is(err, shared.ErrAlreadyRunning) {
			t.Fatalf("expected ErrAlreadyRunning, got %v", err)
		}

		after := f.r.Snapshot()
		if after.SessionID != before.SessionID || after.Status != before.Status || len(after.Items) != 3 {
			t.Errorf("active session altered: before %+v after %+v", before, after)
		}
	})

	t.Run("factory failure", func(t *testing.T) {
		f := newFixture(th.FailingFactory(errors.New("binary missing")))

		err := f.r.Start("spotify-likes")
		if !errors.Is(err, shared.ErrWorkerFailure) {
			t.Fatalf("expected ErrWorkerFailure, got %v", err)
		}
		snap := f.r.Snapshot()
		if snap.Active || !strings.HasPrefix(snap.Status, "Error: ") {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		select {
		case <-f.r.Done():
		default:
			t.Error("Done should be closed after a failed start")
		}
	})
}

func TestReconcilerTick(t *testing.T) {
	t.Run("items are populated once in worker order", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		defer mock.Finish(nil)
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}

		f.r.Tick()
		if n := len(f.r.Snapshot().Items); n != 0 {
			t.Fatalf("expected no items before extraction, got %d", n)
		}

		mock.SetTracks(threeTracks()...)
		f.r.Tick()
		snap := f.r.Snapshot()
		if snap.Status != "Downloading: 3 tracks" {
			t.Errorf("status = %q", snap.Status)
		}
		for i, want := range []string{"t1", "t2", "t3"} {
			if snap.Items[i].TrackID != want || snap.Items[i].Status != models.StatusWaiting {
				t.Errorf("item %d = %+v, want waiting %s", i, snap.Items[i], want)
			}
		}
		if snap.Items[0].Name != "A - One" || snap.Items[2].Name != "Three" {
			t.Errorf("unexpected names %q %q", snap.Items[0].Name, snap.Items[2].Name)
		}

		mock.SetTracks(append(threeTracks(), models.Track{ID: "t4"})...)
		f.r.Tick()
		if n := len(f.r.Snapshot().Items); n != 3 {
			t.Errorf("items must not be repopulated, got %d", n)
		}
	})

	t.Run("download scenario", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		defer mock.Finish(nil)
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		mock.SetTracks(threeTracks()...)
		f.r.Tick()

		mock.SetSearches("t2")
		mock.SetTransfers(*transferOf("t1", 512, 1024, t0))
		f.r.Tick()

		snap := f.r.Snapshot()
		t1 := itemOf(t, snap, "t1")
		if t1.Status != models.StatusDownloading || t1.Progress != 50 {
			t.Fatalf("expected t1 downloading at 50%%, got %+v", t1)
		}
		if statusOf(snap, "t2") != models.StatusSearching || statusOf(snap, "t3") != models.StatusWaiting {
			t.Errorf("unexpected statuses %+v", snap.Items)
		}

		mock.UpdateTrack("t1", func(tr *models.Track) {
			tr.State = models.TrackDownloaded
			tr.FirstSource = mp3Source()
			tr.DownloadPath = "/music/A - One.mp3"
		})
		f.r.Tick()

		t1 = itemOf(t, f.r.Snapshot(), "t1")
		if t1.Status != models.StatusCompleted || t1.Detail != "peer1 • MP3 • 320kbps • 4.2 MB" || t1.Path != "/music/A - One.mp3" {
			t.Fatalf("expected t1 completed, got %+v", t1)
		}

		mock.SetTransfers(*transferOf("t1", 900, 1024, t0))
		f.clock.Advance(time.Minute)
		f.r.Tick()

		stale := itemOf(t, f.r.Snapshot(), "t1")
		if stale != t1 {
			t.Errorf("stale transfer changed a completed item: %+v", stale)
		}

		m := f.r.Metrics()
		if m.Completed != 1 || m.Total != 3 {
			t.Errorf("unexpected metrics %+v", m)
		}
	})

	t.Run("every item is reconciled once per pass", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		defer mock.Finish(nil)
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		mock.SetTracks(threeTracks()...)
		f.r.Tick()

		// t3 leaves the worker's list but is still being transferred; t1 shows up twice.
		failedDup := models.Track{ID: "t1", State: models.TrackFailed, FailureReason: models.FailureNotFound}
		mock.SetTracks(threeTracks()[0], threeTracks()[1], failedDup)
		mock.SetTransfers(*transferOf("t3", 256, 1024, t0))
		f.r.Tick()

		snap := f.r.Snapshot()
		if t3 := itemOf(t, snap, "t3"); t3.Status != models.StatusDownloading || t3.Progress != 25 {
			t.Errorf("expected t3 downloading at 25%%, got %+v", t3)
		}
		if got := statusOf(snap, "t1"); got != models.StatusWaiting {
			t.Errorf("first entry for a duplicate ID should win, got %v", got)
		}
	})

	t.Run("session done", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		mock.SetTracks(threeTracks()...)
		mock.UpdateTrack("t1", func(tr *models.Track) { tr.State = models.TrackDownloaded })
		mock.UpdateTrack("t2", func(tr *models.Track) { tr.State = models.TrackAlreadyExists })
		mock.UpdateTrack("t3", func(tr *models.Track) { tr.State = models.TrackNotFoundLastTime })

		finish(t, f, mock, nil)

		snap := f.r.Snapshot()
		if snap.Status != "Done: 2/3 tracks downloaded" || snap.Active {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if got := f.clock.Tickers()[0].Stops(); got != 1 {
			t.Errorf("ticker stopped %d times, want 1", got)
		}

		recs := f.recorder.all()
		if len(recs) != 1 {
			t.Fatalf("expected one history record, got %d", len(recs))
		}
		rec := recs[0]
		if rec.Outcome() != models.OutcomeCompleted || rec.TracksCompleted() != 2 || rec.TracksFailed() != 1 || len(rec.Items()) != 3 {
			t.Errorf("unexpected record %+v", rec)
		}
		if rec.ID() != snap.SessionID {
			t.Errorf("record id %q != session id %q", rec.ID(), snap.SessionID)
		}

		mock.UpdateTrack("t3", func(tr *models.Track) { tr.State = models.TrackDownloaded })
		f.r.Tick()
		f.r.Tick()
		if after := f.r.Snapshot(); statusOf(after, "t3") != models.StatusFailed || after.Status != snap.Status {
			t.Errorf("Tick after the session ended changed state: %+v", after)
		}
		if got := f.clock.Tickers()[0].Stops(); got != 1 {
			t.Errorf("ticker stopped %d times after extra ticks, want 1", got)
		}
		if len(f.recorder.all()) != 1 {
			t.Error("history must be recorded once")
		}
		select {
		case <-f.r.Done():
		default:
			t.Error("Done should be closed")
		}
	})

	t.Run("worker failure", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}

		finish(t, f, mock, errors.New("disk full"))

		snap := f.r.Snapshot()
		if !strings.HasPrefix(snap.Status, "Error: ") || !strings.Contains(snap.Status, "disk full") {
			t.Errorf("status = %q", snap.Status)
		}
		recs := f.recorder.all()
		if len(recs) != 1 || recs[0].Outcome() != models.OutcomeFailed || !strings.Contains(recs[0].ErrorMessage(), "disk full") {
			t.Errorf("unexpected records %+v", recs)
		}
	})

	t.Run("ticker drives passes", func(t *testing.T) {
		mock := th.NewMockDownloader()
		mock.SetTracks(threeTracks()...)
		f := newFixture(mock.Factory())
		defer mock.Finish(nil)
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}

		f.clock.Tickers()[0].TickChan <- t0
		waitFor(t, func() bool { return len(f.r.Snapshot().Items) == 3 })
	})

	t.Run("recorder errors are not fatal", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		f.recorder.err = errors.New("database locked")
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}

		finish(t, f, mock, nil)
		if !strings.HasPrefix(f.r.Snapshot().Status, "Done: ") {
			t.Errorf("status = %q", f.r.Snapshot().Status)
		}
	})
}

func TestReconcilerStop(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		f := newFixture(th.NewMockDownloader().Factory())
		if err := f.r.Stop(); !errors.Is(err, shared.ErrNotRunning) {
			t.Errorf("expected ErrNotRunning, got %v", err)
		}
	})

	t.Run("cancels unfinished items only", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		mock.SetTracks(append(threeTracks(), models.Track{ID: "t4", Title: "Four"})...)
		mock.UpdateTrack("t1", func(tr *models.Track) { tr.State = models.TrackDownloaded })
		mock.UpdateTrack("t4", func(tr *models.Track) { tr.State = models.TrackFailed })
		mock.SetSearches("t2")
		mock.SetTransfers(*transferOf("t3", 10, 100, t0))
		f.r.Tick()

		before := f.r.Metrics()
		if err := f.r.Stop(); err != nil {
			t.Fatalf("Stop() error: %v", err)
		}

		snap := f.r.Snapshot()
		want := map[string]models.Status{
			"t1": models.StatusCompleted,
			"t2": models.StatusCancelled,
			"t3": models.StatusCancelled,
			"t4": models.StatusFailed,
		}
		for id, status := range want {
			if got := statusOf(snap, id); got != status {
				t.Errorf("%s status = %v, want %v", id, got, status)
			}
		}
		if snap.Metrics.Completed != before.Completed {
			t.Errorf("completed count changed from %d to %d", before.Completed, snap.Metrics.Completed)
		}
		if snap.Status != "Cancelled: 1/4 tracks downloaded" || snap.Active {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if got := f.clock.Tickers()[0].Stops(); got != 1 {
			t.Errorf("ticker stopped %d times, want 1", got)
		}

		recs := f.recorder.all()
		if len(recs) != 1 || recs[0].Outcome() != models.OutcomeCancelled {
			t.Errorf("unexpected records %+v", recs)
		}

		f.r.Tick()
		if statusOf(f.r.Snapshot(), "t3") != models.StatusCancelled {
			t.Error("Tick after Stop must be a no-op")
		}
		if err := f.r.Stop(); !errors.Is(err, shared.ErrNotRunning) {
			t.Errorf("second Stop should fail with ErrNotRunning, got %v", err)
		}
	})
}

func TestReconcilerRetry(t *testing.T) {
	mock := th.NewMockDownloader()
	f := newFixture(mock.Factory())
	defer mock.Finish(nil)
	if err := f.r.Start("spotify-likes"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	mock.SetTracks(threeTracks()...)
	mock.UpdateTrack("t2", func(tr *models.Track) {
		tr.State = models.TrackFailed
		tr.FailureReason = models.FailureAllSourcesFailed
	})
	f.r.Tick()

	if err := f.r.Retry("t1"); !errors.Is(err, shared.ErrRetryNotAllowed) {
		t.Errorf("expected ErrRetryNotAllowed, got %v", err)
	}
	if err := f.r.Retry("nope"); !errors.Is(err, shared.ErrTrackNotFound) {
		t.Errorf("expected ErrTrackNotFound, got %v", err)
	}

	if err := f.r.Retry("t2"); err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if got := mock.Retried(); len(got) != 1 || got[0] != "t2" {
		t.Errorf("retry not forwarded: %v", got)
	}

	t2 := itemOf(t, f.r.Snapshot(), "t2")
	if t2.Status != models.StatusWaiting || t2.Progress != 0 || t2.Detail != "" || t2.Failure != "" {
		t.Fatalf("expected reset item, got %+v", t2)
	}
	if f.r.Metrics().Failed != 0 {
		t.Error("metrics should be recomputed after a retry")
	}

	f.r.Tick()
	if statusOf(f.r.Snapshot(), "t2") != models.StatusWaiting {
		t.Fatal("stale failure should be ignored while the retry is pending")
	}

	mock.UpdateTrack("t2", func(tr *models.Track) {
		tr.State = models.TrackInitial
		tr.FailureReason = models.FailureNone
	})
	mock.SetSearches("t2")
	f.r.Tick()
	if statusOf(f.r.Snapshot(), "t2") != models.StatusSearching {
		t.Errorf("expected Searching after the worker picked the track up again")
	}
}

func TestReconcilerRetryRejectedByWorker(t *testing.T) {
	mock := th.NewMockDownloader()
	mock.RetryErr = shared.ErrNotRunning
	f := newFixture(mock.Factory())
	defer mock.Finish(nil)
	if err := f.r.Start("spotify-likes"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	mock.SetTracks(models.Track{ID: "t1", State: models.TrackFailed})
	f.r.Tick()

	if err := f.r.Retry("t1"); !errors.Is(err, shared.ErrNotRunning) {
		t.Fatalf("expected worker error, got %v", err)
	}
	if statusOf(f.r.Snapshot(), "t1") != models.StatusFailed {
		t.Error("item must stay Failed when the worker rejects the retry")
	}
}

func TestReconcilerWait(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		f := newFixture(th.NewMockDownloader().Factory())
		if err := f.r.Wait(context.Background()); err != nil {
			t.Errorf("expected nil before any session, got %v", err)
		}
	})

	t.Run("returns once the stopped worker exits", func(t *testing.T) {
		release := make(chan struct{})
		mock := th.NewMockDownloader()
		mock.RunFunc = func(ctx context.Context) error {
			<-ctx.Done()
			<-release
			return ctx.Err()
		}
		f := newFixture(mock.Factory())
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		if err := f.r.Stop(); err != nil {
			t.Fatalf("Stop() error: %v", err)
		}

		select {
		case <-f.r.Done():
		default:
			t.Fatal("Stop should end the session at once")
		}

		short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := f.r.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected Wait to block on the worker, got %v", err)
		}

		close(release)
		ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := f.r.Wait(ctx); err != nil {
			t.Errorf("expected Wait to return after the worker exits, got %v", err)
		}
	})
}

func TestReconcilerRestart(t *testing.T) {
	t.Run("new session clears items", func(t *testing.T) {
		first, second := th.NewMockDownloader(), th.NewMockDownloader()
		f := newFixture(sequence(first, second))
		defer second.Finish(nil)

		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		first.SetTracks(threeTracks()...)
		finish(t, f, first, nil)
		firstID := f.r.Snapshot().SessionID

		if err := f.r.Start("spotify-albums"); err != nil {
			t.Fatalf("second Start() error: %v", err)
		}
		snap := f.r.Snapshot()
		if len(snap.Items) != 0 || snap.Metrics != (Metrics{}) || snap.SessionID == firstID {
			t.Errorf("expected a fresh session, got %+v", snap)
		}
		if len(f.clock.Tickers()) != 2 {
			t.Errorf("expected a ticker per session")
		}
	})

	t.Run("stubborn previous run is abandoned after the grace timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		stubborn := th.NewMockDownloader()
		stubborn.RunFunc = func(context.Context) error {
			<-release
			return nil
		}
		next := th.NewMockDownloader()
		defer next.Finish(nil)

		f := newFixture(sequence(stubborn, next))
		f.cfg.Engine.GraceTimeoutMs = 20

		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		if err := f.r.Stop(); err != nil {
			t.Fatalf("Stop() error: %v", err)
		}

		begin := time.Now()
		if err := f.r.Start("spotify-albums"); err != nil {
			t.Fatalf("Start() after abandon error: %v", err)
		}
		if elapsed := time.Since(begin); elapsed < 20*time.Millisecond {
			t.Errorf("Start returned after %v, expected to wait for the grace timeout", elapsed)
		}
		if snap := f.r.Snapshot(); !snap.Active || snap.Input != "spotify-albums" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})
}

func TestSendUpdate(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		sendUpdate(nil, Snapshot{})
	})

	t.Run("latest wins", func(t *testing.T) {
		ch := make(chan Snapshot, 1)
		sendUpdate(ch, Snapshot{Status: "first"})
		sendUpdate(ch, Snapshot{Status: "second"})

		if got := (<-ch).Status; got != "second" {
			t.Errorf("expected latest snapshot, got %q", got)
		}
		select {
		case s := <-ch:
			t.Errorf("unexpected extra snapshot %+v", s)
		default:
		}
	})

	t.Run("reconciler publishes", func(t *testing.T) {
		mock := th.NewMockDownloader()
		f := newFixture(mock.Factory())
		defer mock.Finish(nil)
		if err := f.r.Start("spotify-likes"); err != nil {
			t.Fatalf("Start() error: %v", err)
		}

		select {
		case snap := <-f.r.Updates():
			if !snap.Active {
				t.Errorf("expected an active snapshot, got %+v", snap)
			}
		case <-time.After(time.Second):
			t.Fatal("no snapshot published")
		}
	})
}
