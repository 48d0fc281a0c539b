package updater

import "errors"

var (
	// ErrStopped is returned by Submit once the worker is shutting down.
	ErrStopped = errors.New("updater: worker stopped")

	// ErrRunning is returned when Run is called on a worker that already
	// ran.
	ErrRunning = errors.New("updater: worker already started")

	// ErrInvalidConfig is returned by New for unusable options.
	ErrInvalidConfig = errors.New("updater: invalid configuration")
)
