package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name string
		in   Set
		want Set
	}{
		{
			name: "primitives pass through",
			in:   NewSet(On(true), Brightness(100), Hue(300), Saturation(20)),
			want: NewSet(On(true), Brightness(100), Hue(300), Saturation(20)),
		},
		{
			name: "kelvin inside native range becomes mireds",
			in:   NewSet(Kelvin(2700)),
			want: NewSet(ColorTemp(370)),
		},
		{
			name: "kelvin at the warm edge",
			in:   NewSet(Kelvin(2000)),
			want: NewSet(ColorTemp(500)),
		},
		{
			name: "kelvin outside native range becomes xy",
			in:   NewSet(Kelvin(1500)),
			want: NewSet(KelvinToXY(1500)),
		},
		{
			name: "ct outside native range is simulated with xy",
			in:   NewSet(ColorTemp(800)),
			want: NewSet(KelvinToXY(1250)),
		},
		{
			name: "ct inside native range is kept",
			in:   NewSet(ColorTemp(153)),
			want: NewSet(ColorTemp(153)),
		},
		{
			name: "incandescent sets brightness and a tungsten color",
			in:   NewSet(Incandescent(254)),
			want: NewSet(Brightness(254), TungstenKelvin(254).Mired()),
		},
		{
			name: "dim incandescent is warmer than the native range",
			in:   NewSet(Incandescent(10)),
			want: NewSet(Brightness(10), KelvinToXY(TungstenKelvin(10))),
		},
		{
			name: "incandescent wins over explicit brightness and kelvin",
			in:   NewSet(Brightness(3), Kelvin(6000), Incandescent(254)),
			want: NewSet(Brightness(254), TungstenKelvin(254).Mired()),
		},
		{
			name: "explicit kelvin wins over out of range ct",
			in:   NewSet(ColorTemp(900), Kelvin(3000)),
			want: NewSet(ColorTemp(333)),
		},
		{
			name: "transition time is kept",
			in:   NewSet(Kelvin(4000), TransitionTime(4)),
			want: NewSet(ColorTemp(250), TransitionTime(4)),
		},
		{
			name: "non-positive kelvin is dropped",
			in:   NewSet(Kelvin(0), On(true)),
			want: NewSet(On(true)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.in)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestExpandIdempotent(t *testing.T) {
	inputs := []Set{
		NewSet(Incandescent(1)),
		NewSet(Incandescent(128), On(true)),
		NewSet(Kelvin(1000), Brightness(5)),
		NewSet(Kelvin(15000)),
		NewSet(ColorTemp(40), TransitionTime(0)),
		NewSet(ColorTemp(499), XY{0.3, 0.3}),
		NewSet(Hue(1), Saturation(2), XY{0.1, 0.2}, ColorTemp(200)),
	}
	for _, in := range inputs {
		once := Expand(in)
		twice := Expand(once)
		assert.True(t, once.Equal(twice), "expand not idempotent for %v: %v vs %v", in, once, twice)
		for k := range once {
			assert.False(t, k.Domain().IsDerived(), "derived key %s left in %v", k, once)
		}
	}
}

func TestExpandOrderIndependent(t *testing.T) {
	params := []Param{ColorTemp(900), Kelvin(2500), Brightness(7), Incandescent(200)}

	forward := NewSet(params...)
	backward := NewSet()
	for i := len(params) - 1; i >= 0; i-- {
		backward.Put(params[i])
	}
	assert.True(t, Expand(forward).Equal(Expand(backward)))
}

func TestExpandDoesNotMutateInput(t *testing.T) {
	in := NewSet(Incandescent(100))
	_ = Expand(in)
	require.Len(t, in, 1)
	assert.Equal(t, Incandescent(100), in[KeyIncandescent])
}

func TestKelvinToXY(t *testing.T) {
	// Reference points on the Planckian locus.
	xy := KelvinToXY(6504)
	assert.InDelta(t, 0.3135, xy.X, 0.003)
	assert.InDelta(t, 0.3237, xy.Y, 0.003)

	xy = KelvinToXY(2856)
	assert.InDelta(t, 0.4476, xy.X, 0.003)
	assert.InDelta(t, 0.4074, xy.Y, 0.003)
}

func TestNormalize(t *testing.T) {
	full := NewSet(On(true), Brightness(80), Hue(1000), Saturation(200), XY{0.4, 0.4}, ColorTemp(300))

	tests := []struct {
		name string
		st   LightState
		want Set
	}{
		{
			name: "hs mode",
			st:   LightState{Reachable: true, ColorMode: ModeHS, Params: full},
			want: NewSet(On(true), Brightness(80), Hue(1000), Saturation(200)),
		},
		{
			name: "xy mode",
			st:   LightState{Reachable: true, ColorMode: ModeXY, Params: full},
			want: NewSet(On(true), Brightness(80), XY{0.4, 0.4}),
		},
		{
			name: "ct mode",
			st:   LightState{Reachable: true, ColorMode: ModeCT, Params: full},
			want: NewSet(On(true), Brightness(80), ColorTemp(300)),
		},
		{
			name: "off drops all color keys",
			st:   LightState{Reachable: true, ColorMode: ModeXY, Params: full.With(On(false))},
			want: NewSet(On(false), Brightness(80)),
		},
		{
			name: "dimmable light without color mode",
			st:   LightState{Reachable: true, Params: NewSet(On(true), Brightness(10))},
			want: NewSet(On(true), Brightness(10)),
		},
		{
			name: "transition time is never resent",
			st:   LightState{ColorMode: ModeCT, Params: NewSet(On(true), ColorTemp(200), TransitionTime(4))},
			want: NewSet(On(true), ColorTemp(200)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.st)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestIsDefault(t *testing.T) {
	def := LightState{
		Reachable: true,
		ColorMode: ModeCT,
		Params:    NewSet(On(true), Brightness(254), ColorTemp(366), Hue(8418), Saturation(140), XY{0.4573, 0.41}),
	}
	assert.True(t, IsDefault(def))

	unreachable := def.Clone()
	unreachable.Reachable = false
	assert.False(t, IsDefault(unreachable))

	dimmed := def.Clone()
	dimmed.Params.Put(Brightness(200))
	assert.False(t, IsDefault(dimmed))

	colored := def.Clone()
	colored.ColorMode = ModeXY
	assert.False(t, IsDefault(colored))

	off := def.Clone()
	off.Params.Put(On(false))
	assert.False(t, IsDefault(off))

	assert.True(t, IsDefault(def), "clones must not share params")
}
