// Package observer provides a small typed publish/subscribe subject used to
// fan out collection lifecycle events to interested listeners.
package observer

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify executes the wrapped function.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Subject fans events out to registered observers in registration order.
type Subject[T any] struct {
	mu        sync.RWMutex
	observers []Observer[T]
}

// NewSubject constructs a Subject with optional initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	return &Subject[T]{observers: slices.Clone(observers)}
}

// Attach registers additional observers.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, observers...)
	s.mu.Unlock()
}

// Publish delivers evt to every observer. A failing observer never stops
// the fan-out; Publish returns the joined failures for the caller to log.
func (s *Subject[T]) Publish(ctx context.Context, evt T) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	observers := slices.Clone(s.observers)
	s.mu.RUnlock()

	var errs []error
	for _, obs := range observers {
		if obs == nil {
			continue
		}
		if err := obs.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
