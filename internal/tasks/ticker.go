package tasks

import (
	"sync"
	"time"
)

// Ticker is the subset of [time.Ticker] the reconciler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock provides the current time and tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// RealClock implements [Clock] with the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.ticker.C }
func (r *realTicker) Stop()               { r.ticker.Stop() }

// ManualClock is a [Clock] whose time only moves when told to. Its tickers fire only when a test
// sends on them.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*ManualTicker
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &ManualTicker{TickChan: make(chan time.Time), Interval: d}
	c.tickers = append(c.tickers, t)
	return t
}

// Tickers returns every ticker created so far, oldest first.
func (c *ManualClock) Tickers() []*ManualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ManualTicker(nil), c.tickers...)
}

// ManualTicker closes TickChan on the first Stop and counts every call.
type ManualTicker struct {
	TickChan chan time.Time
	Interval time.Duration

	mu    sync.Mutex
	stops int
}

func (m *ManualTicker) C() <-chan time.Time { return m.TickChan }

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stops == 0 {
		close(m.TickChan)
	}
	m.stops++
}

// Stops reports how many times Stop was called.
func (m *ManualTicker) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
