// package shared defines shared helpers
package shared

import (
	"io"
	"math/rand/v2"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Listen port range handed to each downloader run so concurrent instances don't collide.
const (
	MinListenPort = 50000
	MaxListenPort = 65000
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel parses level and applies it to l, falling back to [log.InfoLevel] when it is not recognized.
func SetLogLevel(l *log.Logger, level string) {
	ll, err := log.ParseLevel(level)
	if err != nil {
		ll = log.InfoLevel
	}
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// RandomListenPort picks a port in [MinListenPort, MaxListenPort).
func RandomListenPort() int {
	return MinListenPort + rand.IntN(MaxListenPort-MinListenPort)
}
