// Package memory implements an in-memory checkpoint store for tests and
// dry runs. Watermarks do not survive a restart.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/wavefrontHQ/newrelic/internal/ports"
)

// Store keeps per-stream watermarks in memory with RW locking.
type Store struct {
	marks map[string]string
	mu    sync.RWMutex
}

var _ ports.CheckpointStore = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{marks: make(map[string]string)}
}

// Get returns the stream's watermark, or ok=false when none was set.
func (s *Store) Get(_ context.Context, streamID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.marks[streamID]
	return v, ok, nil
}

// Set stores the stream's watermark.
func (s *Store) Set(_ context.Context, streamID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[streamID] = value
	return nil
}

// Snapshot copies the current watermarks, mostly for operator tooling.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.marks))
	maps.Copy(out, s.marks)
	return out
}
