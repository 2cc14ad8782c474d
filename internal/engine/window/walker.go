// Package window walks a time range in bounded chunks, committing a
// watermark after each chunk so an interrupted run resumes where it left
// off. Chunks tile the range contiguously and a chunk is only marked done
// after its processor returns, which gives at-least-once delivery for the
// data inside it.
package window

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wavefrontHQ/newrelic/internal/domain"
	"github.com/wavefrontHQ/newrelic/internal/obs"
	"github.com/wavefrontHQ/newrelic/internal/ports"
	"github.com/wavefrontHQ/newrelic/pkg/cancel"
)

const (
	// DefaultChunkCap bounds a single chunk so one request never asks the
	// upstream API for more than ten minutes of data.
	DefaultChunkCap = 10 * time.Minute
	// DefaultMinSpan is the smallest window worth querying. Anything
	// shorter is left for the next run.
	DefaultMinSpan = time.Minute
	// DefaultPause is the breather between chunks when the backlog is
	// deep, so catch-up runs do not hammer the upstream API.
	DefaultPause = 30 * time.Second
)

// watermarkLayout is the wire form of a committed watermark. Stores treat
// the value as opaque; only the walker parses it.
const watermarkLayout = time.RFC3339Nano

// Processor handles one chunk of the range. Returning an error stops the
// walk before the chunk's watermark is committed, so the same chunk is
// retried on the next run.
type Processor func(ctx context.Context, r domain.TimeRange) error

// Walker splits [start, end) into chunks and runs a processor over each.
type Walker struct {
	store    ports.CheckpointStore
	token    *cancel.Token
	log      *zap.Logger
	chunkCap time.Duration
	minSpan  time.Duration
	pause    time.Duration
}

// Option configures a Walker.
type Option func(*Walker)

// WithChunkCap overrides the maximum chunk duration.
func WithChunkCap(d time.Duration) Option {
	return func(w *Walker) { w.chunkCap = d }
}

// WithMinSpan overrides the smallest span worth processing.
func WithMinSpan(d time.Duration) Option {
	return func(w *Walker) { w.minSpan = d }
}

// WithPause overrides the inter-chunk pause.
func WithPause(d time.Duration) Option {
	return func(w *Walker) { w.pause = d }
}

// New returns a Walker committing progress to store and honoring token.
func New(store ports.CheckpointStore, token *cancel.Token, log *zap.Logger, opts ...Option) *Walker {
	w := &Walker{
		store:    store,
		token:    token,
		log:      log,
		chunkCap: DefaultChunkCap,
		minSpan:  DefaultMinSpan,
		pause:    DefaultPause,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk processes [start, end) for streamID chunk by chunk. A committed
// watermark later than start takes precedence, so re-running with the same
// arguments never reprocesses finished chunks. Walk returns
// domain.ErrCanceled when the token fires between chunks or during a pause;
// the watermark already reflects every finished chunk at that point.
func (w *Walker) Walk(ctx context.Context, streamID string, start, end time.Time, process Processor) error {
	cur, err := w.resume(ctx, streamID, start)
	if err != nil {
		return err
	}

	if end.Sub(cur) < w.minSpan {
		w.log.Debug("window below minimum span, deferring to next run",
			zap.String("stream", streamID),
			zap.Duration("span", end.Sub(cur)))
		return nil
	}

	for cur.Before(end) {
		if w.token.IsSet() {
			return domain.ErrCanceled
		}

		chunk := w.nextChunk(cur, end)
		w.log.Info("processing chunk",
			zap.String("stream", streamID),
			zap.Time("from", chunk.Start),
			zap.Time("to", chunk.End))

		if err := process(ctx, chunk); err != nil {
			return fmt.Errorf("process chunk %s: %w", chunk, err)
		}
		if err := w.store.Set(ctx, streamID, chunk.End.Format(watermarkLayout)); err != nil {
			return fmt.Errorf("commit watermark for %s: %w", streamID, err)
		}
		obs.ChunksCommitted.WithLabelValues(streamID).Inc()
		cur = chunk.End

		// Deep backlog: give the upstream API room to breathe.
		if end.Sub(cur) > w.chunkCap && w.pause > 0 {
			if !w.token.Sleep(w.pause) {
				return domain.ErrCanceled
			}
		}
	}
	return nil
}

// resume returns the later of start and the committed watermark.
func (w *Walker) resume(ctx context.Context, streamID string, start time.Time) (time.Time, error) {
	mark, ok, err := w.store.Get(ctx, streamID)
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark for %s: %w", streamID, err)
	}
	if !ok {
		return start, nil
	}
	t, err := time.Parse(watermarkLayout, mark)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt watermark for %s: %w", streamID, err)
	}
	if t.After(start) {
		return t, nil
	}
	return start, nil
}

// nextChunk caps the chunk at chunkCap and folds a trailing sliver shorter
// than minSpan into the final chunk rather than leaving it for a useless
// extra pass. Chunks never extend past end.
func (w *Walker) nextChunk(cur, end time.Time) domain.TimeRange {
	remaining := end.Sub(cur)
	chunk := remaining
	if chunk > w.chunkCap {
		chunk = w.chunkCap
		if tail := remaining - chunk; tail > 0 && tail < w.minSpan {
			chunk = remaining
		}
	}
	return domain.TimeRange{Start: cur, End: cur.Add(chunk)}
}
