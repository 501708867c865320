package agenda

import (
	"sync/atomic"
	"time"

	"famcal/internal/model"
)

// Snapshot is one published refresh result. It is never mutated after
// Publish; a refresh builds and publishes a new one.
type Snapshot struct {
	Events    []model.Event
	UpdatedAt time.Time
	// FeedErrors lists per-feed failures of the cycle that built this
	// snapshot.
	FeedErrors []string
}

// Store holds the currently published snapshot. Readers never block and
// always observe a complete list.
type Store struct {
	current atomic.Pointer[Snapshot]
}

func NewStore() *Store {
	return &Store{}
}

// Load returns the published snapshot, or an empty one before the first
// successful refresh.
func (s *Store) Load() *Snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return &Snapshot{Events: []model.Event{}}
}

// Loaded reports whether any snapshot has been published.
func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}

// Publish replaces the current snapshot.
func (s *Store) Publish(snap *Snapshot) {
	if snap.Events == nil {
		snap.Events = []model.Event{}
	}
	s.current.Store(snap)
}
