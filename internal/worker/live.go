package worker

import (
	"sync"
	"time"

	"github.com/desertthunder/sldlx/internal/models"
)

// LiveState holds a downloader's mutable progress behind a read-write lock.
//
// Writers are the downloader's own goroutines. Readers only ever receive copies.
type LiveState struct {
	mu        sync.RWMutex
	tracks    []models.Track
	index     map[string]int
	searches  map[string]struct{}
	transfers map[string]models.Transfer
}

// NewLiveState returns an empty state.
func NewLiveState() *LiveState {
	return &LiveState{
		index:     make(map[string]int),
		searches:  make(map[string]struct{}),
		transfers: make(map[string]models.Transfer),
	}
}

// SetTracks publishes the extracted track list. Order is preserved.
func (s *LiveState) SetTracks(tracks []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks = make([]models.Track, len(tracks))
	s.index = make(map[string]int, len(tracks))
	for i, t := range tracks {
		s.tracks[i] = copyTrack(t)
		s.index[t.ID] = i
	}
}

// UpdateTrack applies fn to the stored track with the given ID. It reports false for unknown IDs.
func (s *LiveState) UpdateTrack(id string, fn func(*models.Track)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	fn(&s.tracks[i])
	return true
}

// Track returns a copy of one track.
func (s *LiveState) Track(id string) (models.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Track{}, false
	}
	return copyTrack(s.tracks[i]), true
}

// BeginSearch marks a track as being searched.
func (s *LiveState) BeginSearch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches[id] = struct{}{}
}

// EndSearch clears the searching mark.
func (s *LiveState) EndSearch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.searches, id)
}

// StartTransfer registers an in-flight transfer for the track.
func (s *LiveState) StartTransfer(id, peer string, file models.FileInfo, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[id] = models.Transfer{TrackID: id, Peer: peer, File: file, StartedAt: at}
}

// AddBytes advances a transfer's counter, never past the file size when the size is known.
func (s *LiveState) AddBytes(id string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.transfers[id]
	if !ok {
		return
	}
	tr.BytesTransferred += n
	if tr.File.Size > 0 && tr.BytesTransferred > tr.File.Size {
		tr.BytesTransferred = tr.File.Size
	}
	s.transfers[id] = tr
}

// EndTransfer removes the transfer.
func (s *LiveState) EndTransfer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transfers, id)
}

// Tracks returns a copy of the ordered track list.
func (s *LiveState) Tracks() []models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = copyTrack(t)
	}
	return out
}

// Searches returns a copy of the searching set.
func (s *LiveState) Searches() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.searches))
	for id := range s.searches {
		out[id] = struct{}{}
	}
	return out
}

// Transfers returns a copy of the in-flight transfers in track order.
func (s *LiveState) Transfers() []models.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Transfer, 0, len(s.transfers))
	for _, t := range s.tracks {
		if tr, ok := s.transfers[t.ID]; ok {
			out = append(out, tr)
		}
	}
	return out
}

func copyTrack(t models.Track) models.Track {
	if t.FirstSource != nil {
		src := *t.FirstSource
		t.FirstSource = &src
	}
	return t
}
