// Package memory provides an in-process timeoff.Repository for tests and
// local development.
package memory

import (
	"context"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps one versioned snapshot. Everything crossing the boundary is
// deep-copied, so callers never share record slices with the store.
type Store struct {
	mu        sync.RWMutex
	version   int64
	employees []timeoff.Employee
}

var _ timeoff.Repository = (*Store)(nil)

func New(seed ...timeoff.Employee) *Store {
	return &Store{employees: cloneAll(seed)}
}

// LoadAll returns a copy of the current snapshot.
func (s *Store) LoadAll(_ context.Context) (timeoff.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return timeoff.Snapshot{Version: s.version, Employees: cloneAll(s.employees)}, nil
}

// SaveAll replaces the snapshot if nobody saved since it was loaded.
func (s *Store) SaveAll(_ context.Context, snap timeoff.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Version != s.version {
		return generic.ErrConcurrentModification
	}
	s.employees = cloneAll(snap.Employees)
	s.version++
	return nil
}

// Version is the number of successful saves.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func cloneAll(in []timeoff.Employee) []timeoff.Employee {
	out := make([]timeoff.Employee, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
