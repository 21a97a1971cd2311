package reconcile

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRepositoryRequired is returned when a Reconciler is built without its stores.
	ErrRepositoryRequired = errors.New("entity and identifier repositories are required")
)
