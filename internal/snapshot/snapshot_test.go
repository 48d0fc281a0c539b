package snapshot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-toys/internal/bridge"
	"hue-toys/internal/core"
)

type sent struct {
	light  int
	params core.Set
}

type fakeGateway struct {
	states  map[int]core.LightState
	readErr map[int]error
	sendErr []error
	sent    []sent
}

func (f *fakeGateway) State(_ context.Context, light int) (core.LightState, error) {
	if err := f.readErr[light]; err != nil {
		return core.LightState{}, err
	}
	return f.states[light], nil
}

func (f *fakeGateway) Send(_ context.Context, lights []int, params core.Set) ([]bridge.Result, error) {
	for _, l := range lights {
		f.sent = append(f.sent, sent{l, params})
	}
	if len(f.sendErr) > 0 {
		err := f.sendErr[0]
		f.sendErr = f.sendErr[1:]
		return nil, err
	}
	return nil, nil
}

var (
	colorful = core.LightState{
		Reachable: true,
		ColorMode: core.ModeXY,
		Params: core.NewSet(core.On(true), core.Brightness(80), core.Hue(1000), core.Saturation(200),
			core.XY{X: 0.6, Y: 0.3}, core.ColorTemp(250)),
	}
	factory = core.LightState{
		Reachable: true,
		ColorMode: core.ModeCT,
		Params:    core.NewSet(core.On(true), core.Brightness(254), core.ColorTemp(366)),
	}
	unreachable = core.LightState{
		Reachable: false,
		ColorMode: core.ModeCT,
		Params:    core.NewSet(core.On(true), core.Brightness(1), core.ColorTemp(153)),
	}
	errBusy = fmt.Errorf("bridge: light 1: %w", bridge.ErrBridgeBusy)
)

func TestCapture(t *testing.T) {
	gw := &fakeGateway{states: map[int]core.LightState{1: colorful, 2: factory, 3: unreachable}}

	snap, err := Capture(context.Background(), gw, []int{1, 2, 3}, nil, CaptureOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, snap.Lights())

	snap, err = Capture(context.Background(), gw, []int{1, 2, 3}, nil, CaptureOptions{IncludeDefault: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, snap.Lights())
}

func TestCapture_KeepsPreviousKnowledge(t *testing.T) {
	gw := &fakeGateway{states: map[int]core.LightState{1: colorful, 2: colorful}}
	first, err := Capture(context.Background(), gw, []int{1, 2}, nil, CaptureOptions{})
	require.NoError(t, err)

	gw.states = map[int]core.LightState{1: unreachable, 2: factory}
	second, err := Capture(context.Background(), gw, []int{1, 2}, first, CaptureOptions{})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, second.Lights())
	st, _ := second.lookup(1)
	assert.Equal(t, colorful, st)
	st, _ = second.lookup(2)
	assert.Equal(t, colorful, st)
}

func TestCapture_DoesNotMutatePrevious(t *testing.T) {
	gw := &fakeGateway{states: map[int]core.LightState{1: colorful}}
	first, err := Capture(context.Background(), gw, []int{1}, nil, CaptureOptions{})
	require.NoError(t, err)

	gw.states = map[int]core.LightState{1: factory, 2: colorful}
	second, err := Capture(context.Background(), gw, []int{1, 2}, first, CaptureOptions{IncludeDefault: true})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, first.Lights())
	st, _ := first.lookup(1)
	assert.Equal(t, colorful, st)

	assert.Equal(t, []int{1, 2}, second.Lights())
	st, _ = second.lookup(1)
	assert.Equal(t, factory, st)
}

func TestCapture_ReadErrors(t *testing.T) {
	gw := &fakeGateway{
		states:  map[int]core.LightState{1: colorful},
		readErr: map[int]error{2: bridge.ErrCommunication},
	}

	snap, err := Capture(context.Background(), gw, []int{1, 2}, nil, CaptureOptions{})
	require.ErrorIs(t, err, bridge.ErrCommunication)
	assert.Contains(t, err.Error(), "light 2")
	assert.Equal(t, []int{1}, snap.Lights())
}

func TestRestore_RoundTrip(t *testing.T) {
	gw := &fakeGateway{states: map[int]core.LightState{1: colorful}}
	snap, err := Capture(context.Background(), gw, []int{1}, nil, CaptureOptions{})
	require.NoError(t, err)

	require.NoError(t, Restore(context.Background(), gw, []int{1, 9}, snap, 4))

	require.Len(t, gw.sent, 1)
	assert.Equal(t, 1, gw.sent[0].light)
	assert.Equal(t, core.NewSet(core.On(true), core.Brightness(80), core.XY{X: 0.6, Y: 0.3}, core.TransitionTime(4)), gw.sent[0].params)
}

func TestRestore_OffLightSendsNoColor(t *testing.T) {
	off := colorful.Clone()
	off.Params.Put(core.On(false))
	gw := &fakeGateway{states: map[int]core.LightState{1: off}}
	snap, err := Capture(context.Background(), gw, []int{1}, nil, CaptureOptions{})
	require.NoError(t, err)

	require.NoError(t, Restore(context.Background(), gw, []int{1}, snap, 0))
	assert.Equal(t, core.NewSet(core.On(false), core.Brightness(80), core.TransitionTime(0)), gw.sent[0].params)
}

func TestRestore_StopsOnBusy(t *testing.T) {
	gw := &fakeGateway{states: map[int]core.LightState{1: colorful, 2: colorful}, sendErr: []error{errBusy}}
	snap, _ := Capture(context.Background(), gw, []int{1, 2}, nil, CaptureOptions{})

	err := Restore(context.Background(), gw, []int{1, 2}, snap, 4)
	require.ErrorIs(t, err, bridge.ErrBridgeBusy)
	assert.Len(t, gw.sent, 1)
}

func TestRestoreWithRetry(t *testing.T) {
	setup := func(sendErr ...error) (*fakeGateway, *Snapshot) {
		gw := &fakeGateway{states: map[int]core.LightState{1: colorful}}
		snap, err := Capture(context.Background(), gw, []int{1}, nil, CaptureOptions{})
		require.NoError(t, err)
		gw.sendErr = sendErr
		return gw, snap
	}

	t.Run("recovers", func(t *testing.T) {
		gw, snap := setup(errBusy, errBusy)
		require.NoError(t, RestoreWithRetry(context.Background(), gw, []int{1}, snap, 4, 5, 0))
		assert.Len(t, gw.sent, 3)
	})

	t.Run("gives up quietly", func(t *testing.T) {
		gw, snap := setup(errBusy, errBusy, errBusy, errBusy)
		require.NoError(t, RestoreWithRetry(context.Background(), gw, []int{1}, snap, 4, 2, 0))
		assert.Len(t, gw.sent, 3)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		gw, snap := setup(boom)
		require.ErrorIs(t, RestoreWithRetry(context.Background(), gw, []int{1}, snap, 4, 5, 0), boom)
		assert.Len(t, gw.sent, 1)
	})

	t.Run("invalid retries", func(t *testing.T) {
		gw, snap := setup()
		require.ErrorIs(t, RestoreWithRetry(context.Background(), gw, []int{1}, snap, 4, -1, 0), bridge.ErrInvalidConfig)
		assert.Empty(t, gw.sent)
	})
}

func TestSnapshotWithout(t *testing.T) {
	gw := &fakeGateway{states: map[int]core.LightState{1: colorful, 2: colorful}}
	snap, _ := Capture(context.Background(), gw, []int{1, 2}, nil, CaptureOptions{})

	trimmed := snap.Without(2)
	assert.Equal(t, []int{1}, trimmed.Lights())
	assert.Equal(t, []int{1, 2}, snap.Lights())
}
