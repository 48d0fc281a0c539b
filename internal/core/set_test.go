package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetMergeLastWriteWins(t *testing.T) {
	s := NewSet(Brightness(10), Hue(1))
	s.Merge(NewSet(Brightness(20), Saturation(5)))

	assert.True(t, NewSet(Brightness(20), Hue(1), Saturation(5)).Equal(s))
}

func TestSetPersistent(t *testing.T) {
	assert.False(t, NewSet().Persistent())
	assert.False(t, NewSet(TransitionTime(3)).Persistent())
	assert.True(t, NewSet(TransitionTime(3), On(false)).Persistent())
}

func TestSetWire(t *testing.T) {
	body, err := NewSet(On(true), Brightness(5), XY{0.25, 0.5}, TransitionTime(3)).Wire()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"on":             true,
		"bri":            5,
		"xy":             [2]float64{0.25, 0.5},
		"transitiontime": 3,
	}, body)

	_, err = NewSet(Kelvin(3000)).Wire()
	assert.True(t, errors.Is(err, ErrDerivedParam))
}

func TestSetString(t *testing.T) {
	assert.Equal(t, "{bri=5 on=true}", NewSet(On(true), Brightness(5)).String())
}

func TestParseParam(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  Param
		err   error
	}{
		{"on", "on", true, On(true), nil},
		{"bri from json", "bri", float64(200), Brightness(200), nil},
		{"hue from int", "hue", 65535, Hue(65535), nil},
		{"xy", "xy", []any{0.3, 0.4}, XY{0.3, 0.4}, nil},
		{"extended ct", "ct", float64(40), ColorTemp(40), nil},
		{"kelvin", "ctk", 1800, Kelvin(1800), nil},
		{"incandescent", "inc", 50, Incandescent(50), nil},
		{"transition", "transitiontime", 0, TransitionTime(0), nil},
		{"bri too low", "bri", 0, nil, ErrInvalidValue},
		{"sat too high", "sat", 255, nil, ErrInvalidValue},
		{"xy out of range", "xy", []any{1.5, 0.4}, nil, ErrInvalidValue},
		{"xy wrong arity", "xy", []any{0.5}, nil, ErrInvalidValue},
		{"xy NaN", "xy", XY{math.NaN(), math.NaN()}, nil, ErrInvalidValue},
		{"xy Inf array", "xy", [2]float64{math.Inf(1), 0.4}, nil, ErrInvalidValue},
		{"xy from array", "xy", [2]float64{0.3, 0.4}, XY{0.3, 0.4}, nil},
		{"on wrong type", "on", "yes", nil, ErrInvalidValue},
		{"unknown", "effect", "colorloop", nil, ErrUnknownParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParam(tt.key, tt.value)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlternateColorKeys(t *testing.T) {
	assert.ElementsMatch(t, []Key{KeyXY, KeyCT}, AlternateColorKeys(DomainColorHS))
	assert.ElementsMatch(t, []Key{KeyHue, KeySat, KeyCT}, AlternateColorKeys(DomainColorXY))
	assert.ElementsMatch(t, []Key{KeyHue, KeySat, KeyXY}, AlternateColorKeys(DomainColorCT))
	assert.Nil(t, AlternateColorKeys(DomainBrightness))
}

func TestParseSet(t *testing.T) {
	got, err := ParseSet(map[string]any{"on": true, "bri": float64(30), "xy": []any{0.2, 0.4}})
	require.NoError(t, err)
	assert.Equal(t, NewSet(On(true), Brightness(30), XY{X: 0.2, Y: 0.4}), got)

	_, err = ParseSet(map[string]any{"bri": float64(999), "alert": "select"})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorIs(t, err, ErrUnknownParam)
}
