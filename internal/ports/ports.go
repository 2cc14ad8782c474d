// Package ports declares the interfaces between the collection engine and
// its collaborators.
package ports

import (
	"context"
	"time"

	"github.com/wavefrontHQ/newrelic/internal/domain"
)

// CheckpointStore persists per-stream watermarks. Set must be durable before
// it returns; concurrent Sets for different stream ids must not corrupt each
// other. Watermarks are opaque strings: the window walker stores RFC3339Nano
// timestamps, record-id based collectors store whatever identifies their
// position.
type CheckpointStore interface {
	Get(ctx context.Context, streamID string) (value string, ok bool, err error)
	Set(ctx context.Context, streamID, value string) error
}

// Sender forwards one normalized point to the metrics receiver. Failures are
// transient from the engine's point of view and go through the retry policy.
type Sender interface {
	Send(p domain.MetricPoint) error
}

// Source is a collection driver for one upstream system. Items builds the
// independent fan-out work for a single time window; the engine executes the
// items on the bounded pool.
type Source interface {
	Name() string
	Items(ctx context.Context, r domain.TimeRange) ([]domain.WorkItem, error)
}

// RefCache is the TTL-bounded reference-data cache consulted by work items
// for slow-changing side lookups (tag maps, metric-name catalogs).
type RefCache interface {
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error)
}
