// Package cancel implements the shared cancellation token observed by every
// suspend point of a collection run.
package cancel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// pollInterval bounds how long a blocked wait may go without observing Set.
const pollInterval = time.Second

// Token is a set-once cancellation flag. A run owns exactly one token; it is
// passed explicitly to every component so tests can create independent
// tokens. There is no reset: a new run starts with a fresh token.
type Token struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// New returns a fresh, unsignaled token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Set signals cancellation. Safe to call repeatedly from any goroutine.
func (t *Token) Set() {
	t.once.Do(func() {
		t.set.Store(true)
		close(t.done)
	})
}

// IsSet reports whether cancellation has been signaled. Lock-free.
func (t *Token) IsSet() bool {
	return t.set.Load()
}

// Done returns a channel closed when the token is set.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Sleep waits for d, waking early when the token is set. It returns true when
// the full duration elapsed and false when interrupted. Long sleeps are split
// so cancellation is observed within pollInterval even on platforms with
// coarse timers.
func (t *Token) Sleep(d time.Duration) bool {
	for d > 0 {
		if t.IsSet() {
			return false
		}
		step := d
		if step > pollInterval {
			step = pollInterval
		}
		timer := time.NewTimer(step)
		select {
		case <-t.done:
			timer.Stop()
			return false
		case <-timer.C:
		}
		d -= step
	}
	return !t.IsSet()
}

// Context derives a context that is canceled when the token is set or the
// parent is done. Blocking collaborators (database stores, HTTP fetches) take
// this context instead of polling the token directly.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
