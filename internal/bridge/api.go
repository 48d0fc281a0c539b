// Package bridge talks to the lighting bridge. Gateway wraps the remote API
// with parameter expansion, bounded retries and the redundancy cache; Client
// is the HTTP implementation of the remote API.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"hue-toys/internal/core"
)

// Error types reported by the bridge that the pipeline cares about.
const (
	ErrorTypeUnavailable = 3
	ErrorTypeLinkButton  = 101
	ErrorTypeDeviceOff   = 201
	ErrorTypeInternal    = 901
)

// API is the remote bridge as seen by the gateway. Implementations are not
// required to be safe for concurrent use.
type API interface {
	// SetLightState sends primitive params to one light. Per-parameter
	// failures reported by the bridge come back as APIErrors; the error
	// return is reserved for failures of the exchange itself.
	SetLightState(ctx context.Context, light int, params core.Set) ([]*APIError, error)
	// LightState reads the current state of one light.
	LightState(ctx context.Context, light int) (core.LightState, error)
	// Lights lists the lights known to the bridge by ID.
	Lights(ctx context.Context) (map[int]string, error)
}

// APIError is one error entry of a bridge reply.
type APIError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge error %d at %s: %s", e.Type, e.Address, e.Description)
}

// Is makes errors.Is(err, ErrBridgeBusy) true for internal bridge errors.
func (e *APIError) Is(target error) bool {
	return target == ErrBridgeBusy && e.Type == ErrorTypeInternal
}

// Result is what one light replied to a state change.
type Result struct {
	Light  int
	Params core.Set
	Errors []*APIError
}

// Busy reports whether the bridge was too busy to apply the change.
func (r Result) Busy() bool {
	for _, e := range r.Errors {
		if errors.Is(e, ErrBridgeBusy) {
			return true
		}
	}
	return false
}
