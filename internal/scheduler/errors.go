package scheduler

import "errors"

var (
	// ErrInvalidCommand is returned for a schedule command that does not
	// parse.
	ErrInvalidCommand = errors.New("scheduler: invalid command")

	// ErrInvalidSpec is returned for a cron expression cron cannot parse.
	ErrInvalidSpec = errors.New("scheduler: invalid schedule spec")

	// ErrNotFound is returned when removing an entry that does not exist.
	ErrNotFound = errors.New("scheduler: no such schedule")
)
