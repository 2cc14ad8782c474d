// Package pebble implements the default checkpoint store on the embedded
// Pebble database. Every Set is a synced write, so a watermark returned from
// Set survives an immediate process crash.
package pebble

import (
	"context"
	"fmt"

	"github.com/wavefrontHQ/newrelic/internal/ports"
	pebblestore "github.com/wavefrontHQ/newrelic/internal/storage/pebble"
)

const keyPrefix = "checkpoint/"

// Store persists per-stream watermarks under the "checkpoint/" key prefix.
type Store struct {
	db *pebblestore.DB
}

var _ ports.CheckpointStore = (*Store)(nil)

// New wraps an open database. The database may be shared with other
// components (the reference-data cache uses its own prefix).
func New(db *pebblestore.DB) *Store {
	return &Store{db: db}
}

// Get returns the stream's watermark, or ok=false when none was committed.
func (s *Store) Get(_ context.Context, streamID string) (string, bool, error) {
	v, ok, err := s.db.Get([]byte(keyPrefix + streamID))
	if err != nil {
		return "", false, fmt.Errorf("checkpoint get %s: %w", streamID, err)
	}
	if !ok {
		return "", false, nil
	}
	return string(v), true, nil
}

// Set durably persists the stream's watermark before returning.
func (s *Store) Set(_ context.Context, streamID, value string) error {
	if err := s.db.Set([]byte(keyPrefix+streamID), []byte(value)); err != nil {
		return fmt.Errorf("checkpoint set %s: %w", streamID, err)
	}
	return nil
}

// Reset removes the stream's watermark. Operator action only: the next run
// falls back to the configured first-run lookback.
func (s *Store) Reset(_ context.Context, streamID string) error {
	if err := s.db.Delete([]byte(keyPrefix + streamID)); err != nil {
		return fmt.Errorf("checkpoint reset %s: %w", streamID, err)
	}
	return nil
}

// List returns all stream watermarks, for operator tooling.
func (s *Store) List(context.Context) (map[string]string, error) {
	raw, err := s.db.ListPrefix([]byte(keyPrefix))
	if err != nil {
		return nil, fmt.Errorf("checkpoint list: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = string(v)
	}
	return out, nil
}
