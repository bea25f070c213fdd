// Package store holds the single active run and the last snapshot observed
// for it. Writers swap in a whole new state value, so a reader never sees a
// run id from one run paired with a snapshot from another, or a half-applied
// refresh.
package store

import (
	"sync/atomic"

	"github.com/kingrea/reflex-console/internal/pipeline"
)

type state struct {
	runID    string
	snapshot *pipeline.Snapshot
}

// Store is safe for concurrent use.
type Store struct {
	current atomic.Pointer[state]
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	s.current.Store(&state{})
	return s
}

func (s *Store) load() *state {
	if st := s.current.Load(); st != nil {
		return st
	}
	s.current.CompareAndSwap(nil, &state{})
	return s.current.Load()
}

// SetRunID activates runID. Any snapshot from a previous run is dropped.
func (s *Store) SetRunID(runID string) {
	s.current.Store(&state{runID: runID})
}

// SetSnapshot replaces the snapshot. Snapshots for a run other than the
// active one are ignored and reported as not applied.
func (s *Store) SetSnapshot(snap *pipeline.Snapshot) bool {
	for {
		prev := s.load()
		if snap != nil && prev.runID != "" && snap.RunID != "" && snap.RunID != prev.runID {
			return false
		}
		next := &state{runID: prev.runID, snapshot: snap}
		if s.current.CompareAndSwap(prev, next) {
			return true
		}
	}
}

// RunID returns the active run id, or "" before a run is created.
func (s *Store) RunID() string {
	return s.load().runID
}

// Snapshot returns the last applied snapshot, or nil before the first poll.
// Callers must treat it as read-only.
func (s *Store) Snapshot() *pipeline.Snapshot {
	return s.load().snapshot
}

// Active reports whether a run id is set.
func (s *Store) Active() bool {
	return s.RunID() != ""
}

// Reset forgets the run and its snapshot.
func (s *Store) Reset() {
	s.current.Store(&state{})
}
