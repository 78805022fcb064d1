package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/worker"
)

// Status lines shown outside of a running session.
const (
	StatusReady              = "Ready"
	StatusMissingCredentials = "Set Soulseek credentials in Settings first"
)

const recordTimeout = 5 * time.Second

// Recorder persists finished sessions.
type Recorder interface {
	Record(ctx context.Context, session *models.SessionRecord) error
}

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	Config   *shared.Config // Required
	Factory  worker.Factory // Required
	Clock    Clock          // Default: RealClock
	Recorder Recorder       // Optional session history
	Logger   *log.Logger
}

// Reconciler drives one session at a time: it starts the downloader through a [Controller],
// samples it on every tick and keeps the ordered [Item] list, [Metrics] and status line current.
//
// All methods are safe for concurrent use.
type Reconciler struct {
	factory  worker.Factory
	clock    Clock
	recorder Recorder
	logger   *log.Logger
	updates  chan Snapshot

	mu          sync.Mutex
	cfg         *shared.Config
	controller  *Controller
	session     *Session
	items       []*Item
	index       map[string]*Item
	populated   bool
	metrics     Metrics
	status      string
	active      bool
	stopTicking func()
	done        chan struct{}
}

// NewReconciler creates an idle reconciler.
func NewReconciler(opts ReconcilerOpts) *Reconciler {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	done := make(chan struct{})
	close(done)

	return &Reconciler{
		factory:  opts.Factory,
		clock:    opts.Clock,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		updates:  make(chan Snapshot, 1),
		cfg:      opts.Config,
		index:    make(map[string]*Item),
		status:   StatusReady,
		done:     done,
	}
}

// Updates delivers a snapshot after every pass that may have changed state.
func (r *Reconciler) Updates() <-chan Snapshot {
	return r.updates
}

// Done is closed when the current session ends. It is already closed when no session is active.
func (r *Reconciler) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Wait blocks until the current worker run has returned or ctx ends. The session itself may
// already be over: Stop ends it at once while the worker winds down in the background.
func (r *Reconciler) Wait(ctx context.Context) error {
	r.mu.Lock()
	ctrl := r.controller
	r.mu.Unlock()

	if ctrl == nil {
		return nil
	}
	return ctrl.Wait(ctx)
}

// Config returns the settings used for the next session.
func (r *Reconciler) Config() *shared.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetConfig replaces the settings used for the next session.
func (r *Reconciler) SetConfig(cfg *shared.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// Start validates input and begins a new session.
//
// The previous run, if still winding down, is awaited for the configured grace timeout and then
// abandoned.
func (r *Reconciler) Start(input string) error {
	input, err := shared.ValidateInput(input)
	if err != nil {
		r.setStatus(shared.UnsupportedInputMessage)
		return err
	}

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return shared.ErrAlreadyRunning
	}
	cfg := r.cfg
	if !cfg.HasCredentials() {
		r.status = StatusMissingCredentials
		r.mu.Unlock()
		r.publish()
		return shared.ErrMissingCredentials
	}

	prev := r.controller
	r.active = true
	r.session = nil
	r.items = nil
	r.index = make(map[string]*Item)
	r.populated = false
	r.metrics = Metrics{}
	r.status = "Starting: " + input
	r.done = make(chan struct{})
	r.mu.Unlock()
	r.publish()

	if prev != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GraceTimeout())
		if err := prev.Wait(ctx); err != nil {
			r.logger.Warn("previous run did not stop in time, abandoning it", "timeout", cfg.GraceTimeout())
		}
		cancel()
	}

	ctrl := NewController(r.factory, r.logger)
	session, err := ctrl.Start(input, cfg)

	r.mu.Lock()
	if err != nil {
		r.active = false
		r.status = "Error: " + err.Error()
		close(r.done)
		r.mu.Unlock()
		r.publish()
		return err
	}

	r.controller = ctrl
	r.session = session
	r.startTickerLocked(session, cfg.PollInterval())
	r.mu.Unlock()

	r.logger.Info("session started", "session", session.ID, "input", input)
	return nil
}

// Stop cancels the running session. Unfinished items become Cancelled; completed ones are kept.
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	if !r.active || r.session == nil {
		r.mu.Unlock()
		return shared.ErrNotRunning
	}

	r.controller.Cancel()
	r.stopTicking()
	for _, it := range r.items {
		it.Cancel()
	}
	r.metrics = ComputeMetrics(r.items)
	r.status = fmt.Sprintf("Cancelled: %d/%d tracks downloaded", r.metrics.Completed, r.metrics.Total)
	rec := r.endLocked(models.OutcomeCancelled, "")
	r.mu.Unlock()

	r.logger.Info("session cancelled", "session", rec.ID())
	r.record(rec)
	r.publish()
	return nil
}

// Retry resets one Failed item and asks the downloader to re-attempt it.
func (r *Reconciler) Retry(trackID string) error {
	r.mu.Lock()
	if !r.active || r.session == nil {
		r.mu.Unlock()
		return shared.ErrNotRunning
	}

	it, ok := r.index[trackID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
	}
	if it.Status() != models.StatusFailed {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", shared.ErrRetryNotAllowed, it.Name(), it.Status())
	}

	if err := r.controller.Retry(trackID); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := it.Retry(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.metrics = ComputeMetrics(r.items)
	r.mu.Unlock()

	r.logger.Info("retrying track", "track", trackID)
	r.publish()
	return nil
}

// Tick runs one reconciliation pass for the current session. It is a no-op once the session
// has ended.
func (r *Reconciler) Tick() {
	r.tick(nil)
}

// tick runs a pass for session, or for the current session when session is nil. Passes for a
// session other than the current one are dropped.
func (r *Reconciler) tick(session *Session) {
	r.mu.Lock()
	if session == nil {
		session = r.session
	}
	if !r.active || session == nil || r.session != session {
		r.mu.Unlock()
		return
	}
	rec := r.passLocked()
	r.mu.Unlock()

	if rec != nil {
		r.logger.Info("session finished", "session", rec.ID(), "outcome", rec.Outcome(),
			"completed", rec.TracksCompleted(), "total", rec.TracksTotal())
		r.record(rec)
	}
	r.publish()
}

// passLocked samples the controller once and reconciles every item. When the run has finished it
// ends the session and returns the history record.
func (r *Reconciler) passLocked() *models.SessionRecord {
	ctrl := r.controller
	running := ctrl.IsRunning()

	tracks := ctrl.Tracks()
	if !r.populated && len(tracks) > 0 {
		r.populateLocked(tracks)
	}

	if r.populated {
		searches := ctrl.Searches()
		transfers := make(map[string]models.Transfer)
		for _, tr := range ctrl.Transfers() {
			transfers[tr.TrackID] = tr
		}

		latest := make(map[string]models.Track, len(tracks))
		for _, t := range tracks {
			if _, seen := latest[t.ID]; !seen {
				latest[t.ID] = t
			}
		}

		now := r.clock.Now()
		for _, it := range r.items {
			id := it.TrackID()
			t, ok := latest[id]
			if !ok {
				t = models.Track{ID: id}
			}
			_, searching := searches[id]
			var transfer *models.Transfer
			if tr, ok := transfers[id]; ok {
				transfer = &tr
			}
			it.Reconcile(t, searching, transfer, now)
		}
	}

	r.metrics = ComputeMetrics(r.items)

	if running {
		return nil
	}

	r.stopTicking()
	if err := ctrl.Err(); err != nil {
		r.status = "Error: " + err.Error()
		return r.endLocked(models.OutcomeFailed, err.Error())
	}
	r.status = fmt.Sprintf("Done: %d/%d tracks downloaded", r.metrics.Completed, r.metrics.Total)
	return r.endLocked(models.OutcomeCompleted, "")
}

// populateLocked creates the items once, in worker order.
func (r *Reconciler) populateLocked(tracks []models.Track) {
	r.items = make([]*Item, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := r.index[t.ID]; dup {
			continue
		}
		it := NewItem(t)
		r.items = append(r.items, it)
		r.index[t.ID] = it
	}
	r.populated = true
	r.status = fmt.Sprintf("Downloading: %d tracks", len(r.items))
	r.logger.Info("tracks extracted", "session", r.session.ID, "count", len(r.items))
}

// Snapshot returns the current presentation state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// IsActive reports whether a session is in progress.
func (r *Reconciler) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Metrics returns the current aggregate counters.
func (r *Reconciler) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

func (r *Reconciler) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:  r.status,
		Active:  r.active,
		Metrics: r.metrics,
		Items:   make([]ItemView, len(r.items)),
	}
	if r.session != nil {
		snap.SessionID = r.session.ID
		snap.Input = r.session.Input
		snap.StartedAt = r.session.StartedAt
	}
	for i, it := range r.items {
		snap.Items[i] = it.View(i)
	}
	return snap
}

// startTickerLocked launches the sampling goroutine for session. The returned stop function is
// idempotent so the ticker is stopped exactly once.
func (r *Reconciler) startTickerLocked(session *Session, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	stop := make(chan struct{})
	var once sync.Once

	r.stopTicking = func() {
		once.Do(func() {
			close(stop)
			ticker.Stop()
		})
	}

	go func() {
		for {
			select {
			case <-stop:
				return
			case _, ok := <-ticker.C():
				if !ok {
					return
				}
				r.tick(session)
			}
		}
	}()
}

// endLocked marks the session inactive and builds its history record.
func (r *Reconciler) endLocked(outcome models.SessionOutcome, errMsg string) *models.SessionRecord {
	r.active = false
	close(r.done)

	now := r.clock.Now()
	rec := models.NewSessionRecord(0, r.session.Input, r.session.StartedAt)
	rec.SetID(r.session.ID)

	items := make([]models.SessionItem, len(r.items))
	for i, it := range r.items {
		items[i] = it.record(i)
	}
	rec.SetItems(items)
	rec.Finish(outcome, r.metrics.Total, r.metrics.Completed, r.metrics.Failed, errMsg, now)
	return rec
}

func (r *Reconciler) record(rec *models.SessionRecord) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.recorder.Record(ctx, rec); err != nil {
		r.logger.Error("failed to record session", "session", rec.ID(), "error", err)
	}
}

func (r *Reconciler) setStatus(status string) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return
	}
	r.status = status
	r.mu.Unlock()
	r.publish()
}

func (r *Reconciler) publish() {
	sendUpdate(r.updates, r.Snapshot())
}
