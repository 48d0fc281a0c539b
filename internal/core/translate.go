package core

// Calibration of the tungsten filament approximation used by Incandescent.
const (
	tungstenSlope     = 5.63925392181
	tungstenIntercept = 1423.98106079
)

// TungstenKelvin returns the approximate color temperature of an incandescent
// lamp dimmed to the given bridge brightness (1-254).
func TungstenKelvin(bri int) Kelvin {
	return Kelvin(tungstenSlope*float64(bri) + tungstenIntercept)
}

// KelvinToXY approximates the CIE 1931 chromaticity of a black body at k
// Kelvin. It uses the rational fit of the Planckian locus in CIE 1960 UCS and
// converts the result, which keeps it usable from about 1000 K to 15000 K.
func KelvinToXY(k Kelvin) XY {
	t := float64(k)
	u := (0.860117757 + 1.54118254e-4*t + 1.28641212e-7*t*t) /
		(1 + 8.42420235e-4*t + 7.08145163e-7*t*t)
	v := (0.317398726 + 4.22806245e-5*t + 4.20481691e-8*t*t) /
		(1 - 2.89741816e-5*t + 1.61456053e-7*t*t)

	d := 2*u - 8*v + 4
	return XY{X: 3 * u / d, Y: 2 * v / d}
}

// Expand rewrites derived parameters into primitives the bridge accepts.
// The input is left untouched.
//
// Derived values overwrite explicit primitives with the same key, with the
// fixed precedence Incandescent > Kelvin > out of range ColorTemp, so the
// result depends only on the set's contents. Expand(Expand(s)) equals
// Expand(s).
func Expand(in Set) Set {
	out := in.Clone()

	if inc, ok := out[KeyIncandescent].(Incandescent); ok {
		delete(out, KeyIncandescent)
		out.Put(Brightness(inc))
		out.Put(TungstenKelvin(int(inc)))
	}

	if ct, ok := out[KeyCT].(ColorTemp); ok && !ct.Native() {
		delete(out, KeyCT)
		if _, explicit := out[KeyKelvin]; !explicit && ct > 0 {
			out.Put(Kelvin(int(1e6 / int(ct))))
		}
	}

	if k, ok := out[KeyKelvin].(Kelvin); ok {
		delete(out, KeyKelvin)
		switch {
		case k <= 0:
		case k.Mired().Native():
			out.Put(k.Mired())
		default:
			out.Put(KelvinToXY(k))
		}
	}

	return out
}

// Normalize reduces a captured light state to the parameters that can be
// sent back to restore it: color keys are dropped when the light is off,
// inactive color representations are dropped otherwise, and meta fields are
// never part of the result.
func Normalize(st LightState) Set {
	out := make(Set, len(st.Params))
	for k, p := range st.Params {
		d := k.Domain()
		if d == DomainUnknown || d.IsDerived() || d == DomainTransition {
			continue
		}
		out[k] = p
	}

	if on, ok := out[KeyOn].(On); ok && !bool(on) {
		for _, d := range []Domain{DomainColorHS, DomainColorXY, DomainColorCT} {
			for _, k := range colorKeys[d] {
				delete(out, k)
			}
		}
		return out
	}

	if d := st.ColorMode.Domain(); d != DomainUnknown {
		for _, k := range AlternateColorKeys(d) {
			delete(out, k)
		}
	}
	return out
}
