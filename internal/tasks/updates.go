package tasks

import (
	"time"

	"github.com/desertthunder/sldlx/internal/models"
)

// ItemView is the read-only presentation record of one item.
type ItemView struct {
	Position   int           `json:"position"`
	TrackID    string        `json:"track_id"`
	Name       string        `json:"name"`
	Status     models.Status `json:"status"`
	StatusText string        `json:"status_text"`
	Progress   float64       `json:"progress"`
	Detail     string        `json:"detail,omitempty"`
	Path       string        `json:"path,omitempty"`
	Failure    string        `json:"failure,omitempty"`
}

// Snapshot is the full presentation state after one reconciliation pass.
type Snapshot struct {
	SessionID string     `json:"session_id,omitempty"`
	Input     string     `json:"input,omitempty"`
	StartedAt time.Time  `json:"started_at,omitzero"`
	Status    string     `json:"status"`
	Active    bool       `json:"active"`
	Metrics   Metrics    `json:"metrics"`
	Items     []ItemView `json:"items"`
}

// sendUpdate publishes snap without blocking. When the consumer has not drained the previous
// snapshot it is replaced, so a slow reader always sees the latest state.
func sendUpdate(updates chan Snapshot, snap Snapshot) {
	if updates == nil {
		return
	}
	select {
	case updates <- snap:
		return
	default:
	}

	select {
	case <-updates:
	default:
	}

	select {
	case updates <- snap:
	default:
		// Another publisher won the slot; its snapshot is at least as recent.
	}
}
