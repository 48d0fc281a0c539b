// Package core holds the light parameter vocabulary shared by every part of
// the command pipeline: the closed set of parameter variants, parameter sets,
// the translation of derived parameters into bridge primitives and the
// captured light state.
package core

import "fmt"

// Key is the wire name of a light parameter.
type Key string

const (
	KeyOn           Key = "on"
	KeyBri          Key = "bri"
	KeyHue          Key = "hue"
	KeySat          Key = "sat"
	KeyXY           Key = "xy"
	KeyCT           Key = "ct"
	KeyKelvin       Key = "ctk"
	KeyIncandescent Key = "inc"
	KeyTransition   Key = "transitiontime"
)

// Domain groups keys by the physical quantity they control.
type Domain int

const (
	DomainUnknown Domain = iota
	DomainPower
	DomainBrightness
	DomainColorHS
	DomainColorXY
	DomainColorCT
	DomainKelvin
	DomainFilament
	DomainTransition
)

// Domain reports which domain k belongs to.
func (k Key) Domain() Domain {
	switch k {
	case KeyOn:
		return DomainPower
	case KeyBri:
		return DomainBrightness
	case KeyHue, KeySat:
		return DomainColorHS
	case KeyXY:
		return DomainColorXY
	case KeyCT:
		return DomainColorCT
	case KeyKelvin:
		return DomainKelvin
	case KeyIncandescent:
		return DomainFilament
	case KeyTransition:
		return DomainTransition
	}
	return DomainUnknown
}

// IsColor reports whether d is one of the mutually exclusive color
// representations the bridge stores.
func (d Domain) IsColor() bool {
	return d == DomainColorHS || d == DomainColorXY || d == DomainColorCT
}

// IsDerived reports whether d only exists on this side of the bridge and has
// to be expanded before sending.
func (d Domain) IsDerived() bool {
	return d == DomainKelvin || d == DomainFilament
}

// colorKeys lists the bridge keys of every color representation.
var colorKeys = map[Domain][]Key{
	DomainColorHS: {KeyHue, KeySat},
	DomainColorXY: {KeyXY},
	DomainColorCT: {KeyCT},
}

// AlternateColorKeys returns the keys of the color representations other
// than d. It returns nil if d is not a color domain.
func AlternateColorKeys(d Domain) []Key {
	if !d.IsColor() {
		return nil
	}
	var keys []Key
	for _, other := range []Domain{DomainColorHS, DomainColorXY, DomainColorCT} {
		if other != d {
			keys = append(keys, colorKeys[other]...)
		}
	}
	return keys
}

// Param is one light parameter. The set of implementations is closed; use a
// type switch over the variants below.
type Param interface {
	Key() Key
	param()
}

// On switches the light on or off.
type On bool

// Brightness is the bridge brightness level, 1 to 254.
type Brightness int

// Hue is the bridge hue angle, 0 to 65535.
type Hue int

// Saturation is the bridge saturation, 0 to 254.
type Saturation int

// XY is a CIE 1931 chromaticity coordinate.
type XY struct {
	X, Y float64
}

// ColorTemp is a color temperature in mireds.
type ColorTemp int

// Kelvin is a color temperature in Kelvin. It is expanded to ColorTemp when
// the bridge supports the equivalent mired value and to XY otherwise.
type Kelvin float64

// Incandescent simulates a tungsten filament dimmed to the given brightness:
// it sets Brightness and a matching Kelvin temperature.
type Incandescent int

// TransitionTime is the fade duration in deciseconds. It has no persistent
// effect on the light and is therefore always sent.
type TransitionTime int

func (On) Key() Key             { return KeyOn }
func (Brightness) Key() Key     { return KeyBri }
func (Hue) Key() Key            { return KeyHue }
func (Saturation) Key() Key     { return KeySat }
func (XY) Key() Key             { return KeyXY }
func (ColorTemp) Key() Key      { return KeyCT }
func (Kelvin) Key() Key         { return KeyKelvin }
func (Incandescent) Key() Key   { return KeyIncandescent }
func (TransitionTime) Key() Key { return KeyTransition }

func (On) param()             {}
func (Brightness) param()     {}
func (Hue) param()            {}
func (Saturation) param()     {}
func (XY) param()             {}
func (ColorTemp) param()      {}
func (Kelvin) param()         {}
func (Incandescent) param()   {}
func (TransitionTime) param() {}

// Native reports whether ct lies inside the bridge's supported mired range.
func (ct ColorTemp) Native() bool {
	return ct >= CTMin && ct <= CTMax
}

// Mired converts k to mireds, truncating.
func (k Kelvin) Mired() ColorTemp {
	return ColorTemp(int(1e6 / float64(k)))
}

// wireValue returns the JSON-ready value of a primitive parameter.
func wireValue(p Param) (any, error) {
	switch v := p.(type) {
	case On:
		return bool(v), nil
	case Brightness:
		return int(v), nil
	case Hue:
		return int(v), nil
	case Saturation:
		return int(v), nil
	case XY:
		return [2]float64{v.X, v.Y}, nil
	case ColorTemp:
		return int(v), nil
	case TransitionTime:
		return int(v), nil
	case Kelvin, Incandescent:
		return nil, fmt.Errorf("%w: %s", ErrDerivedParam, p.Key())
	default:
		panic(fmt.Sprintf("core: unhandled parameter variant %T", p))
	}
}

func formatValue(p Param) string {
	switch v := p.(type) {
	case XY:
		return fmt.Sprintf("[%.4f,%.4f]", v.X, v.Y)
	case Kelvin:
		return fmt.Sprintf("%.0f", float64(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}
