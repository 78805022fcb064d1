package models

import "fmt"

// Status is the presentation state of a tracked item.
type Status int

const (
	StatusWaiting Status = iota
	StatusSearching
	StatusDownloading
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusSkipped
)

// IsTerminal reports whether no further automatic transition may occur.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsActive reports whether the worker is currently busy with the item.
func (s Status) IsActive() bool {
	return s == StatusSearching || s == StatusDownloading
}

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusSearching:
		return "searching"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus is the inverse of [Status.String].
func ParseStatus(s string) (Status, error) {
	for st := StatusWaiting; st <= StatusSkipped; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusWaiting, fmt.Errorf("unknown status %q", s)
}

// MarshalText encodes the status by name so JSON and TOML output stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
