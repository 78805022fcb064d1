package models

import (
	"fmt"
	"time"
)

// TrackState is the worker's own outcome for a track.
type TrackState int

const (
	TrackInitial TrackState = iota
	TrackDownloaded
	TrackFailed
	TrackAlreadyExists
	TrackNotFoundLastTime
	TrackSkipped
)

func (s TrackState) String() string {
	switch s {
	case TrackInitial:
		return "initial"
	case TrackDownloaded:
		return "downloaded"
	case TrackFailed:
		return "failed"
	case TrackAlreadyExists:
		return "already_exists"
	case TrackNotFoundLastTime:
		return "not_found_last_time"
	case TrackSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("track_state(%d)", int(s))
	}
}

// IsFinal reports whether the worker is done with the track.
func (s TrackState) IsFinal() bool {
	return s != TrackInitial
}

// FailureReason classifies why the worker gave up on a track.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureNotFound
	FailureInvalidSearch
	FailureRetriesExhausted
	FailureAllSourcesFailed
	FailureUnknown
)

// Label returns the short user-facing text for the reason.
func (r FailureReason) Label() string {
	switch r {
	case FailureNone:
		return ""
	case FailureNotFound:
		return "Not found"
	case FailureInvalidSearch:
		return "Invalid input"
	case FailureRetriesExhausted:
		return "Retries exhausted"
	case FailureAllSourcesFailed:
		return "All sources failed"
	default:
		return "Failed"
	}
}

func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureNotFound:
		return "not_found"
	case FailureInvalidSearch:
		return "invalid_search"
	case FailureRetriesExhausted:
		return "retries_exhausted"
	case FailureAllSourcesFailed:
		return "all_sources_failed"
	default:
		return "unknown"
	}
}

// ParseFailureReason is the inverse of [FailureReason.String]; unrecognized values map to [FailureUnknown].
func ParseFailureReason(s string) FailureReason {
	switch s {
	case "", "none":
		return FailureNone
	case "not_found":
		return FailureNotFound
	case "invalid_search":
		return FailureInvalidSearch
	case "retries_exhausted":
		return FailureRetriesExhausted
	case "all_sources_failed":
		return FailureAllSourcesFailed
	default:
		return FailureUnknown
	}
}

// FileInfo describes a remote file offered by a peer.
type FileInfo struct {
	Name      string `json:"name"`
	Extension string `json:"extension"` // e.g. ".mp3"
	BitRate   int    `json:"bit_rate"`  // kbps, 0 when unknown
	Size      int64  `json:"size"`      // bytes
}

// Source is the peer and file a track was downloaded from.
type Source struct {
	Peer string   `json:"peer"`
	File FileInfo `json:"file"`
}

// Track is a copy of one work item as reported by the worker.
//
// ID is assigned by the worker at extraction and stays stable for the whole run.
type Track struct {
	ID            string        `json:"id"`
	Artist        string        `json:"artist"`
	Title         string        `json:"title"`
	Album         string        `json:"album"`
	State         TrackState    `json:"state"`
	FailureReason FailureReason `json:"failure_reason"`
	DownloadPath  string        `json:"download_path"`
	FirstSource   *Source       `json:"first_source,omitempty"`
}

// Transfer is a point-in-time read of an in-progress download.
type Transfer struct {
	TrackID          string    `json:"track_id"`
	Peer             string    `json:"peer"`
	File             FileInfo  `json:"file"`
	BytesTransferred int64     `json:"bytes_transferred"`
	StartedAt        time.Time `json:"started_at"`
}
