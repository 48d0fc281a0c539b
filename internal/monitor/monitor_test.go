package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-toys/internal/bridge"
	"hue-toys/internal/core"
)

type fakeGateway struct {
	states  map[int]core.LightState
	sent    map[int]core.Set
	cleared int
}

func newFake() *fakeGateway {
	return &fakeGateway{states: map[int]core.LightState{}, sent: map[int]core.Set{}}
}

func (f *fakeGateway) State(_ context.Context, light int) (core.LightState, error) {
	return f.states[light], nil
}

func (f *fakeGateway) Send(_ context.Context, lights []int, params core.Set) ([]bridge.Result, error) {
	for _, l := range lights {
		f.sent[l] = params
	}
	return nil, nil
}

func (f *fakeGateway) ClearCache() { f.cleared++ }

var (
	warm = core.LightState{Reachable: true, ColorMode: core.ModeCT,
		Params: core.NewSet(core.On(true), core.Brightness(40), core.ColorTemp(450))}
	reset = core.LightState{Reachable: true, ColorMode: core.ModeCT,
		Params: core.NewSet(core.On(true), core.Brightness(254), core.ColorTemp(366))}
)

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, nil, Options{Lights: []int{1}})
	assert.Error(t, err)
	_, err = New(newFake(), nil, Options{})
	assert.Error(t, err)
	_, err = New(newFake(), nil, Options{Lights: []int{1}, RestoreTries: -1})
	assert.Error(t, err)
}

func TestTick_GroupMode(t *testing.T) {
	gw := newFake()
	bus := core.NewEventBus()
	events := bus.Subscribe(core.LightsRestoredEvent)
	m, err := New(gw, bus, Options{Lights: []int{1, 2}, Transition: 4, RestoreWait: time.Millisecond})
	require.NoError(t, err)
	ctx := context.Background()

	gw.states[1], gw.states[2] = warm, warm
	require.NoError(t, m.Tick(ctx))
	assert.Equal(t, []int{1, 2}, m.Snapshot().Lights())

	gw.states[1] = reset
	require.NoError(t, m.Tick(ctx))
	assert.Empty(t, gw.sent, "one light in default state is not a power loss")

	gw.states[2] = reset
	require.NoError(t, m.Tick(ctx))
	want := core.NewSet(core.On(true), core.Brightness(40), core.ColorTemp(450), core.TransitionTime(4))
	assert.Equal(t, map[int]core.Set{1: want, 2: want}, gw.sent)
	assert.Equal(t, 1, gw.cleared)

	select {
	case ev := <-events:
		assert.Equal(t, core.LightsRestored{Lights: []int{1, 2}}, ev.Payload)
	default:
		t.Fatal("no restore event published")
	}
}

func TestTick_IndividualMode(t *testing.T) {
	gw := newFake()
	m, err := New(gw, nil, Options{Lights: []int{1, 2}, Individual: true})
	require.NoError(t, err)
	ctx := context.Background()

	gw.states[1], gw.states[2] = warm, warm
	require.NoError(t, m.Tick(ctx))

	gw.states[1] = reset
	require.NoError(t, m.Tick(ctx))
	assert.Contains(t, gw.sent, 1)
	assert.NotContains(t, gw.sent, 2)
}

func TestTick_RestoredLightsNotRecaptured(t *testing.T) {
	gw := newFake()
	m, err := New(gw, nil, Options{Lights: []int{1}, Individual: true})
	require.NoError(t, err)
	ctx := context.Background()

	gw.states[1] = warm
	require.NoError(t, m.Tick(ctx))

	// The bridge keeps reporting a stale but non-default state right after
	// the restore; it must not replace the snapshot entry.
	stale := warm.Clone()
	stale.Params.Put(core.Brightness(200))
	calls := 0
	gw.states[1] = reset
	m.gw = &sequenced{fakeGateway: gw, after: func() { calls++; gw.states[1] = stale }}
	require.NoError(t, m.Tick(ctx))

	gw.states[1] = reset
	gw.sent = map[int]core.Set{}
	require.NoError(t, m.Tick(ctx))
	assert.Equal(t, core.Brightness(40), gw.sent[1][core.KeyBri])
	assert.Equal(t, 1, calls)
}

// sequenced runs after once the first restore was sent.
type sequenced struct {
	*fakeGateway
	after func()
	done  bool
}

func (s *sequenced) Send(ctx context.Context, lights []int, params core.Set) ([]bridge.Result, error) {
	res, err := s.fakeGateway.Send(ctx, lights, params)
	if !s.done {
		s.done = true
		s.after()
	}
	return res, err
}
