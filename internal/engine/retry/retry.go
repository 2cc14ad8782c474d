// Package retry wraps a single upstream operation with exponential backoff.
// Transient-versus-fatal classification is injected by the caller so every
// upstream integration shares one implementation. Logging individual attempt
// failures is the caller's job.
package retry

import (
	"context"
	"time"

	"github.com/wavefrontHQ/newrelic/internal/domain"
)

// Policy describes how one logical operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the sleep before the second attempt; attempt n sleeps
	// BaseDelay * 2^(n-1).
	BaseDelay time.Duration
	// MaxDelay caps a single backoff sleep. Zero means no cap.
	MaxDelay time.Duration
	// Classify reports whether the error is transient and worth retrying.
	// A nil Classify treats every error as fatal.
	Classify func(error) bool
}

// Default matches the delays the upstream pollers used historically.
var Default = Policy{
	MaxAttempts: 4,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
}

// Do runs op under the policy. It returns nil on success, the last error
// after MaxAttempts transient failures, the error itself on a fatal
// classification, and domain.ErrCanceled when ctx is done - cancellation is
// checked before and after every backoff sleep and never triggers one.
func (p Policy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return domain.ErrCanceled
		}
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return domain.ErrCanceled
		}
		if attempt >= p.MaxAttempts || p.Classify == nil || !p.Classify(err) {
			return err
		}
		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.ErrCanceled
		case <-timer.C:
		}
	}
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
