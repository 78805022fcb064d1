package models

import (
	"fmt"
	"strings"
	"time"
)

// SessionOutcome is how a downloader run ended.
type SessionOutcome string

const (
	OutcomeRunning   SessionOutcome = "running"
	OutcomeCompleted SessionOutcome = "completed"
	OutcomeCancelled SessionOutcome = "cancelled"
	OutcomeFailed    SessionOutcome = "failed"
)

// SessionItem is the final presentation state of one tracked item in a stored session.
type SessionItem struct {
	Position int           `json:"position"`
	TrackID  string        `json:"track_id"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Progress float64       `json:"progress"`
	Detail   string        `json:"detail,omitempty"`
	Path     string        `json:"path,omitempty"`
	Failure  FailureReason `json:"-"`
}

// SessionRecord is a persisted downloader run.
type SessionRecord struct {
	id              string
	sequence        int
	input           string
	outcome         SessionOutcome
	tracksTotal     int
	tracksCompleted int
	tracksFailed    int
	errorMessage    string
	startedAt       time.Time
	completedAt     *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
	items           []SessionItem
}

// NewSessionRecord creates a running [SessionRecord] for the given input.
func NewSessionRecord(sequence int, input string, startedAt time.Time) *SessionRecord {
	now := time.Now()
	return &SessionRecord{
		sequence:  sequence,
		input:     input,
		outcome:   OutcomeRunning,
		startedAt: startedAt,
		createdAt: now,
		updatedAt: now,
	}
}

func (s *SessionRecord) ID() string                   { return s.id }
func (s *SessionRecord) Sequence() int                { return s.sequence }
func (s *SessionRecord) Input() string                { return s.input }
func (s *SessionRecord) Outcome() SessionOutcome      { return s.outcome }
func (s *SessionRecord) TracksTotal() int             { return s.tracksTotal }
func (s *SessionRecord) TracksCompleted() int         { return s.tracksCompleted }
func (s *SessionRecord) TracksFailed() int            { return s.tracksFailed }
func (s *SessionRecord) ErrorMessage() string         { return s.errorMessage }
func (s *SessionRecord) StartedAt() time.Time         { return s.startedAt }
func (s *SessionRecord) CompletedAt() *time.Time      { return s.completedAt }
func (s *SessionRecord) CreatedAt() time.Time         { return s.createdAt }
func (s *SessionRecord) UpdatedAt() time.Time         { return s.updatedAt }
func (s *SessionRecord) DeletedAt() *time.Time        { return s.deletedAt }
func (s *SessionRecord) Items() []SessionItem         { return s.items }
func (s *SessionRecord) SetID(id string)              { s.id = id }
func (s *SessionRecord) SetSequence(seq int)          { s.sequence = seq }
func (s *SessionRecord) SetUpdatedAt(t time.Time)     { s.updatedAt = t }
func (s *SessionRecord) SetCreatedAt(t time.Time)     { s.createdAt = t }
func (s *SessionRecord) SetDeletedAt(t *time.Time)    { s.deletedAt = t }
func (s *SessionRecord) SetItems(items []SessionItem) { s.items = items }

// Finish records the final counters and outcome of the run.
func (s *SessionRecord) Finish(outcome SessionOutcome, total, completed, failed int, errMsg string, at time.Time) {
	s.outcome = outcome
	s.tracksTotal = total
	s.tracksCompleted = completed
	s.tracksFailed = failed
	s.errorMessage = errMsg
	s.completedAt = &at
	s.updatedAt = at
}

// Restore sets the fields read back from storage.
func (s *SessionRecord) Restore(outcome SessionOutcome, total, completed, failed int, errMsg string, completedAt *time.Time) {
	s.outcome = outcome
	s.tracksTotal = total
	s.tracksCompleted = completed
	s.tracksFailed = failed
	s.errorMessage = errMsg
	s.completedAt = completedAt
}

// Validate checks the record before it is written.
func (s *SessionRecord) Validate() error {
	if strings.TrimSpace(s.input) == "" {
		return fmt.Errorf("session input is required")
	}
	switch s.outcome {
	case OutcomeRunning, OutcomeCompleted, OutcomeCancelled, OutcomeFailed:
	default:
		return fmt.Errorf("invalid session outcome: %q", s.outcome)
	}
	if s.tracksCompleted+s.tracksFailed > s.tracksTotal {
		return fmt.Errorf("completed (%d) and failed (%d) exceed total (%d)", s.tracksCompleted, s.tracksFailed, s.tracksTotal)
	}
	return nil
}

var _ Model = (*SessionRecord)(nil)
