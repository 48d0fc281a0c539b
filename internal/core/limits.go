package core

import (
	"errors"
	"fmt"
	"math"
)

// Native bridge ranges for color temperature.
const (
	CTMin     ColorTemp = 153
	CTMax     ColorTemp = 500
	KelvinMin           = 2000
	KelvinMax           = 6535
)

// Range is an inclusive numeric range.
type Range struct {
	Min, Max float64
}

// Limits is the extended range accepted for each parameter. ct and ctk go far
// beyond the native range; values outside it are simulated through xy.
var Limits = map[Key]Range{
	KeyBri:          {1, 254},
	KeyHue:          {0, 65535},
	KeySat:          {0, 254},
	KeyXY:           {0, 1},
	KeyCT:           {1, 1e6},
	KeyKelvin:       {1, 1e8},
	KeyIncandescent: {1, 254},
	KeyTransition:   {0, 65535},
}

// Contains reports whether v lies inside r.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ParseParam decodes a parameter from its wire name and a loosely typed value
// as produced by encoding/json or a Lua table.
func ParseParam(name string, value any) (Param, error) {
	key := Key(name)
	switch key {
	case KeyOn:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants a boolean, got %T", ErrInvalidValue, name, value)
		}
		return On(b), nil
	case KeyXY:
		x, y, err := pair(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
		}
		r := Limits[KeyXY]
		if !r.Contains(x) || !r.Contains(y) {
			return nil, fmt.Errorf("%w: %s [%v,%v] outside %v..%v", ErrInvalidValue, name, x, y, r.Min, r.Max)
		}
		return XY{X: x, Y: y}, nil
	case KeyBri, KeyHue, KeySat, KeyCT, KeyKelvin, KeyIncandescent, KeyTransition:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}

	n, ok := number(value)
	if !ok {
		return nil, fmt.Errorf("%w: %s wants a number, got %T", ErrInvalidValue, name, value)
	}
	if r := Limits[key]; !r.Contains(n) {
		return nil, fmt.Errorf("%w: %s %v outside %v..%v", ErrInvalidValue, name, n, r.Min, r.Max)
	}
	switch key {
	case KeyBri:
		return Brightness(int(n)), nil
	case KeyHue:
		return Hue(int(n)), nil
	case KeySat:
		return Saturation(int(n)), nil
	case KeyCT:
		return ColorTemp(int(n)), nil
	case KeyKelvin:
		return Kelvin(n), nil
	case KeyIncandescent:
		return Incandescent(int(n)), nil
	default:
		return TransitionTime(int(n)), nil
	}
}

// ParseSet decodes every entry of a loosely typed object such as a JSON
// request body. All invalid entries are reported together.
func ParseSet(values map[string]any) (Set, error) {
	out := make(Set, len(values))
	var errs []error
	for name, v := range values {
		p, err := ParseParam(name, v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.Put(p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func number(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case float32:
		n = float64(t)
	case float64:
		n = t
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func pair(v any) (float64, float64, error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []float64:
		items = []any{}
		for _, f := range t {
			items = append(items, f)
		}
	case [2]float64:
		items = []any{t[0], t[1]}
	case XY:
		items = []any{t.X, t.Y}
	default:
		return 0, 0, fmt.Errorf("want a coordinate pair, got %T", v)
	}
	if len(items) != 2 {
		return 0, 0, fmt.Errorf("want 2 coordinates, got %d", len(items))
	}
	x, okX := number(items[0])
	y, okY := number(items[1])
	if !okX || !okY {
		return 0, 0, fmt.Errorf("coordinates must be numbers")
	}
	return x, y, nil
}
