package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrCommunication is returned when the bridge could not be reached or
	// the exchange failed at the transport level. The gateway retries it.
	ErrCommunication = errors.New("bridge: communication failure")

	// ErrBridgeBusy is returned when the bridge reports an internal error,
	// which in practice means it is overloaded with requests. The gateway
	// does not retry it; callers that can afford to wait do.
	ErrBridgeBusy = errors.New("bridge: bridge busy")

	// ErrUnknownLight is returned when a light ID or name does not exist on
	// the bridge.
	ErrUnknownLight = errors.New("bridge: unknown light")

	// ErrInvalidConfig is returned when a component is constructed with
	// nonsensical settings.
	ErrInvalidConfig = errors.New("bridge: invalid configuration")
)
