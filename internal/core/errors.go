package core

import "errors"

var (
	// ErrUnknownParam is returned when a parameter name is not part of the
	// vocabulary.
	ErrUnknownParam = errors.New("core: unknown parameter")

	// ErrInvalidValue is returned when a parameter value has the wrong type
	// or lies outside the accepted range.
	ErrInvalidValue = errors.New("core: invalid parameter value")

	// ErrDerivedParam is returned when a derived parameter reaches the wire
	// encoder without being expanded first.
	ErrDerivedParam = errors.New("core: derived parameter must be expanded")
)
