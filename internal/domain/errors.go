package domain

import "errors"

var (
	// ErrCanceled is returned by engine components when the run's
	// cancellation token was set. It is never a failure of the operation
	// itself and must not be logged as an error.
	ErrCanceled = errors.New("collection canceled")
	// ErrNotFound is returned when a requested checkpoint or cache entry
	// does not exist.
	ErrNotFound = errors.New("not found")
)
