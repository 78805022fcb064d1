package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/tasks"
)

// SnapshotSource is the read side of a reconciler.
type SnapshotSource interface {
	Snapshot() tasks.Snapshot
}

// StatusHandler serves the current session snapshot as JSON.
//
// GET /status returns the full [tasks.Snapshot]; GET /health returns {"status":"ok"}.
type StatusHandler struct {
	source SnapshotSource
	logger *log.Logger
}

// NewStatusHandler creates a handler reading from source.
func NewStatusHandler(source SnapshotSource, logger *log.Logger) *StatusHandler {
	return &StatusHandler{source: source, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *StatusHandler) Routes() []string {
	return []string{"/status", "/health"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/status":
		h.writeJSON(w, h.source.Snapshot())
	case "/health":
		h.writeJSON(w, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// NewStatusRouter builds a router serving h with logging and panic recovery.
func NewStatusRouter(source SnapshotSource, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(RecoverMiddleware(logger), LoggingMiddleware(logger))
	router.Handler(NewStatusHandler(source, logger))
	return router
}
