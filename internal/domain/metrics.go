// Package domain holds the data types shared by the collection engine.
package domain

import (
	"context"
	"fmt"
	"time"
)

// MetricPoint is one normalized sample headed for the metrics receiver.
type MetricPoint struct {
	Name      string
	Value     float64
	Timestamp time.Time
	Source    string
	Tags      map[string]string
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IsZero reports whether both bounds are unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// WorkItem is a single independent unit of fetch/transform/send work.
// Items are immutable once enqueued and executed at most once by the pool.
type WorkItem struct {
	Name string
	Do   func(ctx context.Context) error
}
