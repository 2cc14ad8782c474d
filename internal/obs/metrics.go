// Package obs carries the engine's self-observability: Prometheus metrics,
// goroutine stack dumps, and the ops HTTP endpoint.
package obs

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsTotal counts executed work items per stream and outcome
	// (ok, failed, panic).
	ItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "work_items_total",
		Help:      "Work items executed, by stream and outcome.",
	}, []string{"stream", "outcome"})

	// ChunksCommitted counts time-window chunks whose watermark was persisted.
	ChunksCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "chunks_committed_total",
		Help:      "Time-window chunks committed to the checkpoint store.",
	}, []string{"stream"})

	// CacheLookups counts reference-data cache lookups by result
	// (hit, stale, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "refcache_lookups_total",
		Help:      "Reference-data cache lookups, by result.",
	}, []string{"result"})

	// PointsSent counts metric points written to the receiver.
	PointsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "points_sent_total",
		Help:      "Metric points transmitted to the receiver.",
	})

	// WatchdogDumps counts stack dumps emitted by the pool watchdog.
	WatchdogDumps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "watchdog_stack_dumps_total",
		Help:      "Stack dumps triggered by the stalled-pool watchdog.",
	})
)

// AllStacks returns the stacks of every live goroutine, the diagnostic
// snapshot the pool watchdog and /debug/stacks expose.
func AllStacks() []byte {
	buf := make([]byte, 1<<20)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, len(buf)*2)
	}
}
