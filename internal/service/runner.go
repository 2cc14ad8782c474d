// Package service drives the collection cycle: for every configured stream
// it walks the pending time window, fans the stream's work items out to a
// bounded pool, and commits the watermark chunk by chunk. In daemon mode the
// cycle repeats with a configurable delay until the cancellation token fires.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wavefrontHQ/newrelic/internal/config"
	"github.com/wavefrontHQ/newrelic/internal/domain"
	"github.com/wavefrontHQ/newrelic/internal/engine/pool"
	"github.com/wavefrontHQ/newrelic/internal/engine/window"
	"github.com/wavefrontHQ/newrelic/internal/ports"
	"github.com/wavefrontHQ/newrelic/pkg/cancel"
	"github.com/wavefrontHQ/newrelic/pkg/observer"
)

// CycleEvent describes the outcome of one stream within a cycle.
type CycleEvent struct {
	Stream   string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Runner owns the per-stream drive loop.
type Runner struct {
	streams []config.Stream
	sources map[string]ports.Source
	store   ports.CheckpointStore
	token   *cancel.Token
	log     *zap.Logger
	events  *observer.Subject[CycleEvent]
	now     func() time.Time
}

// New wires a runner. Every stream's source must be present in sources;
// that is checked here so a typo fails at startup, not mid-cycle.
func New(streams []config.Stream, sources map[string]ports.Source, store ports.CheckpointStore, token *cancel.Token, log *zap.Logger) (*Runner, error) {
	for _, s := range streams {
		if _, ok := sources[s.Source]; !ok {
			return nil, fmt.Errorf("stream %q: %w: source %q", s.Name, domain.ErrNotFound, s.Source)
		}
	}
	return &Runner{
		streams: streams,
		sources: sources,
		store:   store,
		token:   token,
		log:     log,
		events:  observer.NewSubject[CycleEvent](),
		now:     time.Now,
	}, nil
}

// Events exposes the cycle event subject for listeners (metrics, tests).
func (r *Runner) Events() *observer.Subject[CycleEvent] { return r.events }

// RunOnce executes one full cycle over every stream. A failing stream is
// logged and published but does not stop its siblings; cancellation does.
// The returned error joins all stream failures.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error
	for _, s := range r.streams {
		if r.token.IsSet() {
			return domain.ErrCanceled
		}

		started := r.now()
		err := r.runStream(ctx, s)
		if evErr := r.events.Publish(ctx, CycleEvent{
			Stream:   s.Name,
			Started:  started,
			Duration: r.now().Sub(started),
			Err:      err,
		}); evErr != nil {
			r.log.Warn("cycle event listener failed",
				zap.String("stream", s.Name),
				zap.Error(evErr))
		}

		switch {
		case err == nil:
		case errors.Is(err, domain.ErrCanceled):
			return domain.ErrCanceled
		default:
			r.log.Error("stream cycle failed",
				zap.String("stream", s.Name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("stream %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run repeats RunOnce until the token fires. Cycle errors are already
// logged; the next cycle proceeds regardless.
func (r *Runner) Run(ctx context.Context, delay time.Duration) error {
	for {
		if err := r.RunOnce(ctx); errors.Is(err, domain.ErrCanceled) {
			return domain.ErrCanceled
		}
		r.log.Debug("cycle complete, sleeping", zap.Duration("delay", delay))
		if !r.token.Sleep(delay) {
			return domain.ErrCanceled
		}
	}
}

// runStream walks the stream's pending window. Each chunk's items come from
// the source and run on a pool bounded by the stream's worker count. A
// panicking source is contained to this stream.
func (r *Runner) runStream(ctx context.Context, s config.Stream) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stream %s panicked: %v", s.Name, rec)
		}
	}()

	src := r.sources[s.Source]
	w := window.New(r.store, r.token, r.log,
		window.WithChunkCap(s.ChunkCap),
		window.WithMinSpan(s.MinSpan),
		window.WithPause(s.Pause),
	)
	p := pool.New(s.Name, r.token, r.log)

	end := r.now().UTC().Truncate(time.Second)
	start := end.Add(-s.Lookback)

	return w.Walk(ctx, s.Name, start, end, func(ctx context.Context, chunk domain.TimeRange) error {
		items, err := src.Items(ctx, chunk)
		if err != nil {
			return fmt.Errorf("list work items: %w", err)
		}
		p.Run(items, s.Workers)
		if r.token.IsSet() {
			return domain.ErrCanceled
		}
		return nil
	})
}
