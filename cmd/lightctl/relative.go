package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hue-toys/internal/core"
)

// relInt is a numeric flag that may be given as +N or -N to change the
// light's current setting instead of replacing it.
type relInt struct {
	set      bool
	relative bool
	n        int
}

func (v *relInt) String() string {
	if !v.set {
		return ""
	}
	if v.relative && v.n >= 0 {
		return "+" + strconv.Itoa(v.n)
	}
	return strconv.Itoa(v.n)
}

func (v *relInt) Set(s string) error {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	v.set = true
	v.n = n
	v.relative = strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
	return nil
}

func (v *relInt) Type() string { return "[+-]int" }

// power is the requested power change.
type power int

const (
	powerKeep power = iota
	powerOn
	powerOff
	powerToggle
)

// request is everything the set command was asked to do, before it is
// resolved against a light.
type request struct {
	power      power
	bri        relInt
	hue        relInt
	sat        relInt
	ct         relInt
	ctk        relInt
	inc        relInt
	xy         []float64
	transition int
	hasTrans   bool
}

// needsState reports whether resolving needs the light's current state.
func (r *request) needsState() bool {
	if r.power == powerToggle {
		return true
	}
	for _, v := range []relInt{r.bri, r.hue, r.sat, r.ct, r.ctk, r.inc} {
		if v.set && v.relative {
			return true
		}
	}
	return false
}

// resolve returns the parameters to send to a light whose state is cur.
// cur is only consulted when needsState is true. Relative values are clipped
// to the native range of the parameter; hue wraps around. Absolute values
// are checked against the accepted ranges.
func (r *request) resolve(cur core.LightState) (core.Set, error) {
	values := map[string]any{}

	switch r.power {
	case powerOn:
		values["on"] = true
	case powerOff:
		values["on"] = false
	case powerToggle:
		values["on"] = !cur.IsOn()
	}

	briNow := func() (int, error) {
		b, ok := cur.Params[core.KeyBri].(core.Brightness)
		if !ok {
			return 0, errors.New("light reports no brightness")
		}
		return int(b), nil
	}
	ctNow := func() (int, error) {
		ct, ok := cur.Params[core.KeyCT].(core.ColorTemp)
		if !ok || ct <= 0 {
			return 0, errors.New("light reports no color temperature")
		}
		return int(ct), nil
	}

	if r.bri.set {
		v := r.bri.n
		if r.bri.relative {
			now, err := briNow()
			if err != nil {
				return nil, err
			}
			v = clip(now+v, core.KeyBri)
		}
		values[string(core.KeyBri)] = v
	}
	if r.hue.set {
		v := r.hue.n
		if r.hue.relative {
			now, _ := cur.Params[core.KeyHue].(core.Hue)
			v = ((int(now)+v)%65536 + 65536) % 65536
		}
		values[string(core.KeyHue)] = v
	}
	if r.sat.set {
		v := r.sat.n
		if r.sat.relative {
			now, _ := cur.Params[core.KeySat].(core.Saturation)
			v = clip(int(now)+v, core.KeySat)
		}
		values[string(core.KeySat)] = v
	}
	if len(r.xy) > 0 {
		if len(r.xy) != 2 {
			return nil, fmt.Errorf("xy wants two coordinates, got %d", len(r.xy))
		}
		values[string(core.KeyXY)] = []any{r.xy[0], r.xy[1]}
	}
	if r.ct.set {
		v := r.ct.n
		if r.ct.relative {
			now, err := ctNow()
			if err != nil {
				return nil, err
			}
			v = clamp(now+v, int(core.CTMin), int(core.CTMax))
		}
		values[string(core.KeyCT)] = v
	}
	if r.ctk.set {
		v := r.ctk.n
		if r.ctk.relative {
			now, err := ctNow()
			if err != nil {
				return nil, err
			}
			v = clamp(int(1e6/float64(now))+v, core.KelvinMin, core.KelvinMax)
		}
		values[string(core.KeyKelvin)] = v
	}
	if r.inc.set {
		v := r.inc.n
		if r.inc.relative {
			now, err := briNow()
			if err != nil {
				return nil, err
			}
			v = clip(now+v, core.KeyIncandescent)
		}
		values[string(core.KeyIncandescent)] = v
	}
	if r.hasTrans {
		values[string(core.KeyTransition)] = r.transition
	}

	params, err := core.ParseSet(values)
	if err != nil {
		return nil, err
	}
	if !params.Persistent() {
		return nil, errNoAction
	}
	return params, nil
}

func clip(v int, key core.Key) int {
	r := core.Limits[key]
	return clamp(v, int(r.Min), int(r.Max))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
