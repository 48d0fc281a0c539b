// Package monitor puts lights back into their last known state after they
// lose power and come back in the factory default state.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"hue-toys/internal/core"
	"hue-toys/internal/snapshot"
)

// Gateway is what the monitor needs from bridge.Gateway.
type Gateway interface {
	snapshot.Gateway
	ClearCache()
}

// Options configures a Monitor.
type Options struct {
	Lights []int
	// Individual restores every light on its own as soon as it is found in
	// the default state. Otherwise lights are only restored once all of
	// them are, which is what a power cut looks like.
	Individual bool

	Transition   int
	RestoreTries int
	RestoreWait  time.Duration
}

// Monitor keeps a snapshot of the monitored lights up to date and restores
// it when the lights reset. Call Tick periodically.
type Monitor struct {
	gw   Gateway
	opts Options
	bus  *core.EventBus

	mu   sync.Mutex
	snap *snapshot.Snapshot
}

// New returns a monitor. bus may be nil.
func New(gw Gateway, bus *core.EventBus, opts Options) (*Monitor, error) {
	if gw == nil {
		return nil, errors.New("monitor: nil gateway")
	}
	if len(opts.Lights) == 0 {
		return nil, errors.New("monitor: no lights to monitor")
	}
	if opts.RestoreTries < 0 || opts.RestoreWait < 0 || opts.Transition < 0 {
		return nil, fmt.Errorf("monitor: negative restore settings %+v", opts)
	}
	return &Monitor{gw: gw, bus: bus, opts: opts}, nil
}

// Snapshot returns the current snapshot, nil before the first Tick.
func (m *Monitor) Snapshot() *snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Tick restores lights that are in the default state and then captures the
// state of the others. Lights restored in this tick are not captured, since
// the bridge may still report their reset state.
func (m *Monitor) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	restored, err := m.restoreReset(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	capture := make([]int, 0, len(m.opts.Lights))
	for _, l := range m.opts.Lights {
		if !restored[l] {
			capture = append(capture, l)
		}
	}
	if len(restored) > 0 {
		log.WithField("lights", keys(restored)).Info("[Monitor] Skipping state save for newly restored lights")
	}

	snap, err := snapshot.Capture(ctx, m.gw, capture, m.snap, snapshot.CaptureOptions{})
	m.snap = snap
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (m *Monitor) restoreReset(ctx context.Context) (map[int]bool, error) {
	if m.snap == nil || len(m.snap.Lights()) == 0 {
		return nil, nil
	}

	var reset []int
	for _, l := range m.opts.Lights {
		st, err := m.gw.State(ctx, l)
		if err != nil {
			return nil, fmt.Errorf("monitor: checking light %d: %w", l, err)
		}
		if core.IsDefault(st) {
			reset = append(reset, l)
		} else if !m.opts.Individual {
			return nil, nil
		}
	}
	if len(reset) == 0 {
		return nil, nil
	}

	if m.opts.Individual {
		log.WithField("lights", reset).Info("[Monitor] Restoring lights found in default state")
	} else {
		log.Info("[Monitor] All lights in default state, restoring original state")
	}

	err := snapshot.RestoreWithRetry(ctx, m.gw, reset, m.snap, m.opts.Transition, m.opts.RestoreTries, m.opts.RestoreWait)
	m.gw.ClearCache()
	if err != nil {
		return nil, err
	}

	restored := make(map[int]bool, len(reset))
	for _, l := range reset {
		restored[l] = true
	}
	m.bus.PublishLightsRestored(reset)
	return restored, nil
}

func keys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
