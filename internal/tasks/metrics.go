package tasks

import "github.com/desertthunder/sldlx/internal/models"

// Metrics are the aggregate counters of a session.
type Metrics struct {
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Total     int     `json:"total"`
	Progress  float64 `json:"progress"` // Completed/Total*100, 0 when Total is 0
}

// ComputeMetrics recomputes the counters from scratch.
func ComputeMetrics(items []*Item) Metrics {
	m := Metrics{Total: len(items)}
	for _, it := range items {
		switch it.Status() {
		case models.StatusCompleted:
			m.Completed++
		case models.StatusFailed:
			m.Failed++
		}
	}
	if m.Total > 0 {
		m.Progress = float64(m.Completed) / float64(m.Total) * 100
	}
	return m
}
