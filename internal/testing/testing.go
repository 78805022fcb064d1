// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/worker"
)

// MockDownloader is a test double for [worker.Downloader] and [worker.Retrier] whose live state
// is set directly by the test.
//
// Run blocks until [MockDownloader.Finish] is called or its context is cancelled, unless RunFunc
// is set.
type MockDownloader struct {
	RunFunc  func(ctx context.Context) error
	RetryErr error

	mu        sync.Mutex
	tracks    []models.Track
	searches  map[string]struct{}
	transfers []models.Transfer
	retried   []string
	params    []worker.Params

	once   sync.Once
	done   chan struct{}
	result error
}

func NewMockDownloader() *MockDownloader {
	return &MockDownloader{searches: map[string]struct{}{}, done: make(chan struct{})}
}

func (m *MockDownloader) Run(ctx context.Context) error {
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return m.result
	}
}

// Finish makes Run return err. Only the first call has an effect.
func (m *MockDownloader) Finish(err error) {
	m.once.Do(func() {
		m.result = err
		close(m.done)
	})
}

func (m *MockDownloader) Tracks() []models.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Track(nil), m.tracks...)
}

func (m *MockDownloader) Searches() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.searches))
	for id := range m.searches {
		out[id] = struct{}{}
	}
	return out
}

func (m *MockDownloader) Transfers() []models.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Transfer(nil), m.transfers...)
}

func (m *MockDownloader) Retry(trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RetryErr != nil {
		return m.RetryErr
	}
	m.retried = append(m.retried, trackID)
	return nil
}

func (m *MockDownloader) SetTracks(tracks ...models.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = append([]models.Track(nil), tracks...)
}

// UpdateTrack applies fn to the track with the given ID, if present.
func (m *MockDownloader) UpdateTrack(id string, fn func(*models.Track)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tracks {
		if m.tracks[i].ID == id {
			fn(&m.tracks[i])
		}
	}
}

func (m *MockDownloader) SetSearches(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m.searches[id] = struct{}{}
	}
}

func (m *MockDownloader) SetTransfers(transfers ...models.Transfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append([]models.Transfer(nil), transfers...)
}

// Retried returns the track IDs passed to Retry.
func (m *MockDownloader) Retried() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.retried...)
}

// Params returns the parameters of every run created through [MockDownloader.Factory].
func (m *MockDownloader) Params() []worker.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]worker.Params(nil), m.params...)
}

// Factory returns a [worker.Factory] that always hands out m and records the parameters.
func (m *MockDownloader) Factory() worker.Factory {
	return func(p worker.Params) (worker.Downloader, error) {
		m.mu.Lock()
		m.params = append(m.params, p)
		m.mu.Unlock()
		return m, nil
	}
}

// FailingFactory returns a [worker.Factory] that always fails with err.
func FailingFactory(err error) worker.Factory {
	return func(worker.Params) (worker.Downloader, error) {
		return nil, err
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
