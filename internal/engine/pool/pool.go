// Package pool executes a queue of independent work items on a fixed number
// of workers. Items are handed out FIFO through a single shared channel;
// completion order across items is unspecified. A failing item never aborts
// its siblings.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wavefrontHQ/newrelic/internal/domain"
	"github.com/wavefrontHQ/newrelic/internal/obs"
	"github.com/wavefrontHQ/newrelic/pkg/cancel"
)

const (
	// defaultWatchdog is how long the pool tolerates zero completed items
	// before dumping all goroutine stacks for operator diagnosis.
	defaultWatchdog = 60 * time.Second
	// joinPoll bounds how long Run keeps blocking after cancellation.
	joinPoll = time.Second
)

// Pool fans work items out to a bounded set of workers for one stream.
type Pool struct {
	stream   string
	token    *cancel.Token
	log      *zap.Logger
	watchdog time.Duration
}

// Option adjusts pool behavior.
type Option func(*Pool)

// WithWatchdog overrides the stalled-pool watchdog interval.
func WithWatchdog(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.watchdog = d
		}
	}
}

// New returns a pool bound to one stream's cancellation token and logger.
func New(stream string, token *cancel.Token, log *zap.Logger, opts ...Option) *Pool {
	p := &Pool{
		stream:   stream,
		token:    token,
		log:      log,
		watchdog: defaultWatchdog,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run blocks until every item has been attempted exactly once or cancellation
// is observed. Workers that are mid-item when the token is set finish that
// item but take no new one; Run itself stops waiting within joinPoll of the
// token being set even if a worker is hung in upstream I/O.
func (p *Pool) Run(items []domain.WorkItem, concurrency int) {
	if len(items) == 0 {
		return
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	ctx, stop := p.token.Context(context.Background())
	defer stop()

	// Unbuffered: the channel is the shared FIFO cursor over items.
	queue := make(chan domain.WorkItem)
	go func() {
		defer close(queue)
		for _, it := range items {
			select {
			case queue <- it:
			case <-p.token.Done():
				return
			}
		}
	}()

	var completed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for it := range queue {
				if p.token.IsSet() {
					return
				}
				p.runItem(ctx, id, it)
				completed.Add(1)
			}
		}(i + 1)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	p.join(done, &completed, int64(len(items)))
}

// join waits for the workers, emitting a stack dump when no item completes
// for a full watchdog interval. After cancellation it gives in-flight workers
// one joinPoll to finish, then returns without them.
func (p *Pool) join(done <-chan struct{}, completed *atomic.Int64, total int64) {
	ticker := time.NewTicker(joinPoll)
	defer ticker.Stop()

	last := completed.Load()
	lastProgress := time.Now()
	for {
		select {
		case <-done:
			return
		case <-p.token.Done():
			select {
			case <-done:
			case <-time.After(joinPoll):
				p.log.Info("cancellation observed, abandoning in-flight workers",
					zap.String("stream", p.stream),
					zap.Int64("completed", completed.Load()),
					zap.Int64("total", total))
			}
			return
		case <-ticker.C:
			if n := completed.Load(); n != last {
				last = n
				lastProgress = time.Now()
				continue
			}
			if time.Since(lastProgress) >= p.watchdog {
				p.log.Warn("no work item completed within watchdog interval",
					zap.String("stream", p.stream),
					zap.Int64("completed", last),
					zap.Int64("total", total),
					zap.ByteString("stacks", obs.AllStacks()))
				obs.WatchdogDumps.Inc()
				lastProgress = time.Now()
			}
		}
	}
}

func (p *Pool) runItem(ctx context.Context, worker int, it domain.WorkItem) {
	defer func() {
		if r := recover(); r != nil {
			obs.ItemsTotal.WithLabelValues(p.stream, "panic").Inc()
			p.log.Error("work item panicked",
				zap.String("stream", p.stream),
				zap.Int("worker", worker),
				zap.String("item", it.Name),
				zap.Any("panic", r))
		}
	}()

	err := it.Do(ctx)
	switch {
	case err == nil:
		obs.ItemsTotal.WithLabelValues(p.stream, "ok").Inc()
	case errors.Is(err, domain.ErrCanceled):
		// Not a failure; the item will be redone after the watermark.
		p.log.Debug("work item canceled",
			zap.String("stream", p.stream),
			zap.String("item", it.Name))
	default:
		obs.ItemsTotal.WithLabelValues(p.stream, "failed").Inc()
		p.log.Warn("work item failed",
			zap.String("stream", p.stream),
			zap.Int("worker", worker),
			zap.String("item", it.Name),
			zap.Error(err))
	}
}
