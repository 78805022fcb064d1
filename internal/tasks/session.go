package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/worker"
)

// Session identifies one downloader run.
type Session struct {
	ID        string
	Input     string
	Params    worker.Params
	StartedAt time.Time
}

// Controller owns at most one downloader run at a time.
//
// The run executes in a detached goroutine. Errors returned by the downloader and panics raised
// by it are captured as the session error and never propagate to the caller.
type Controller struct {
	factory worker.Factory
	logger  *log.Logger

	mu         sync.Mutex
	downloader worker.Downloader
	session    *Session
	cancel     context.CancelFunc
	done       chan struct{}
	running    bool
	err        error
}

// NewController creates an idle controller that builds downloaders with factory.
func NewController(factory worker.Factory, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{factory: factory, logger: logger}
}

// Start launches a new run and returns immediately.
//
// It fails with [shared.ErrAlreadyRunning] while the previous run's goroutine has not finished,
// leaving that run untouched.
func (c *Controller) Start(input string, cfg *shared.Config) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, shared.ErrAlreadyRunning
	}
	c.err = nil

	params := worker.BuildParams(input, cfg)
	d, err := c.factory(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrWorkerFailure, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &Session{
		ID:        shared.GenerateID(),
		Input:     input,
		Params:    params,
		StartedAt: time.Now(),
	}

	c.downloader = d
	c.session = session
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(ctx, d, c.done)

	c.logger.Info("downloader started", "session", session.ID, "input", input, "port", params.ListenPort)
	return session, nil
}

func (c *Controller) run(ctx context.Context, d worker.Downloader, done chan struct{}) {
	defer close(done)

	err := invoke(ctx, d)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	c.cancel()

	switch {
	case err == nil:
		c.logger.Info("downloader finished")
	case errors.Is(err, context.Canceled):
		c.logger.Info("downloader cancelled")
	default:
		c.err = fmt.Errorf("%w: %w", shared.ErrWorkerFailure, err)
		c.logger.Error("downloader failed", "error", err)
	}
}

// invoke runs the downloader, converting a panic into an error.
func invoke(ctx context.Context, d worker.Downloader) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Run(ctx)
}

// Cancel requests cooperative cancellation of the current run. It is a no-op when idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until the current run finishes or ctx is done. It returns nil at once when nothing
// was started.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether a run was launched and has not finished.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Err returns the failure of the last run, wrapped in [shared.ErrWorkerFailure]. Cooperative
// cancellation is not a failure.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Session returns the current or last session, or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Tracks returns a copy of the downloader's track list.
func (c *Controller) Tracks() []models.Track {
	if d := c.current(); d != nil {
		return d.Tracks()
	}
	return []models.Track{}
}

// Searches returns a copy of the downloader's searching set.
func (c *Controller) Searches() map[string]struct{} {
	if d := c.current(); d != nil {
		return d.Searches()
	}
	return map[string]struct{}{}
}

// Transfers returns a copy of the downloader's in-flight transfers.
func (c *Controller) Transfers() []models.Transfer {
	if d := c.current(); d != nil {
		return d.Transfers()
	}
	return []models.Transfer{}
}

// Retry asks the downloader to re-attempt one track.
func (c *Controller) Retry(trackID string) error {
	c.mu.Lock()
	d, running := c.downloader, c.running
	c.mu.Unlock()

	if !running {
		return shared.ErrNotRunning
	}
	r, ok := d.(worker.Retrier)
	if !ok {
		return shared.ErrRetryUnsupported
	}
	return r.Retry(trackID)
}

func (c *Controller) current() worker.Downloader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloader
}
