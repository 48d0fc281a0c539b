// Package snapshot captures the state of lights and puts it back later.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"hue-toys/internal/bridge"
	"hue-toys/internal/core"
)

// Gateway is the part of bridge.Gateway capture and restore use.
type Gateway interface {
	State(ctx context.Context, light int) (core.LightState, error)
	Send(ctx context.Context, lights []int, params core.Set) ([]bridge.Result, error)
}

// Snapshot holds the captured state of a set of lights. It is immutable;
// Capture builds new snapshots instead of modifying old ones.
type Snapshot struct {
	lights map[int]core.LightState
}

// Lights returns the IDs the snapshot knows about, sorted.
func (s *Snapshot) Lights() []int {
	if s == nil {
		return nil
	}
	ids := make([]int, 0, len(s.lights))
	for id := range s.lights {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Has reports whether the snapshot knows about light.
func (s *Snapshot) Has(light int) bool {
	if s == nil {
		return false
	}
	_, ok := s.lights[light]
	return ok
}

// Without returns a copy of the snapshot that no longer knows about lights.
func (s *Snapshot) Without(lights ...int) *Snapshot {
	out := s.clone()
	for _, l := range lights {
		delete(out.lights, l)
	}
	return out
}

func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{lights: make(map[int]core.LightState)}
	if s == nil {
		return out
	}
	for id, st := range s.lights {
		out.lights[id] = st.Clone()
	}
	return out
}

// CaptureOptions controls Capture.
type CaptureOptions struct {
	// IncludeDefault also captures lights that are in the factory power-on
	// state. Usually that state is what a restore is meant to undo.
	IncludeDefault bool
}

// Capture reads the state of every light and returns a new snapshot seeded
// with the entries of previous, which may be nil.
//
// A reachable light replaces its previous entry unless it is in the default
// state and opts.IncludeDefault is off. An unreachable light keeps its
// previous entry; without one it is left out. Lights that could not be read
// keep their previous entry too, and the read errors are returned joined
// together with the snapshot.
func Capture(ctx context.Context, gw Gateway, lights []int, previous *Snapshot, opts CaptureOptions) (*Snapshot, error) {
	snap := previous.clone()
	var errs []error

	for _, light := range lights {
		logger := log.WithField("light", light)

		st, err := gw.State(ctx, light)
		if err != nil {
			logger.WithError(err).Warn("[Snapshot] Could not read light state")
			errs = append(errs, fmt.Errorf("snapshot: light %d: %w", light, err))
			continue
		}

		switch {
		case !st.Reachable:
			if snap.Has(light) {
				logger.Info("[Snapshot] Light unreachable, keeping last known state")
			} else {
				logger.Info("[Snapshot] Light unreachable and never seen, not recording it")
			}
		case core.IsDefault(st) && !opts.IncludeDefault:
			logger.Debug("[Snapshot] Light in default state, not saving it")
		default:
			snap.lights[light] = st.Clone()
		}
	}

	return snap, errors.Join(errs...)
}

// Restore sends every light its captured state, reduced by core.Normalize,
// with the given transition time in deciseconds. Lights the snapshot does
// not know are skipped.
//
// The first failure stops the restore. An error wrapping
// bridge.ErrBridgeBusy means the bridge was overloaded and a later attempt
// may succeed.
func Restore(ctx context.Context, gw Gateway, lights []int, snap *Snapshot, transition int) error {
	for _, light := range lights {
		st, ok := snap.lookup(light)
		if !ok {
			log.WithField("light", light).Info("[Snapshot] State of light not known, not restoring it")
			continue
		}

		params := core.Normalize(st).With(core.TransitionTime(transition))
		if _, err := gw.Send(ctx, []int{light}, params); err != nil {
			return fmt.Errorf("snapshot: restoring light %d: %w", light, err)
		}
	}
	return nil
}

// RestoreWithRetry runs Restore, repeating it up to maxRetries times with
// wait in between while the bridge reports being busy. Restoring is best
// effort: once the retries are used up it logs and returns nil. Other errors
// are returned as they are.
func RestoreWithRetry(ctx context.Context, gw Gateway, lights []int, snap *Snapshot, transition, maxRetries int, wait time.Duration) error {
	if maxRetries < 0 {
		return fmt.Errorf("%w: restore retries must not be negative, got %d", bridge.ErrInvalidConfig, maxRetries)
	}
	if wait < 0 {
		return fmt.Errorf("%w: restore wait must not be negative, got %s", bridge.ErrInvalidConfig, wait)
	}

	for attempt := 0; ; attempt++ {
		err := Restore(ctx, gw, lights, snap, transition)
		if !errors.Is(err, bridge.ErrBridgeBusy) {
			return err
		}
		if attempt >= maxRetries {
			log.WithField("attempts", attempt+1).Warn("[Snapshot] Bridge still busy, giving up on restore")
			return nil
		}

		log.WithFields(log.Fields{"attempt": attempt + 1, "wait": wait}).Info("[Snapshot] Bridge busy, retrying restore")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Snapshot) lookup(light int) (core.LightState, bool) {
	if s == nil {
		return core.LightState{}, false
	}
	st, ok := s.lights[light]
	return st, ok
}
