package core

// ColorMode is the color representation a light currently reports as active.
type ColorMode string

const (
	ModeNone ColorMode = ""
	ModeHS   ColorMode = "hs"
	ModeXY   ColorMode = "xy"
	ModeCT   ColorMode = "ct"
)

// Domain maps the mode to the parameter domain it stores.
func (m ColorMode) Domain() Domain {
	switch m {
	case ModeHS:
		return DomainColorHS
	case ModeXY:
		return DomainColorXY
	case ModeCT:
		return DomainColorCT
	}
	return DomainUnknown
}

// Power-on defaults of Hue lamps.
const (
	DefaultBrightness Brightness = 254
	DefaultColorTemp  ColorTemp  = 366
)

// LightState is the state of one light as read from the bridge. Reachable and
// ColorMode are read-only meta fields; Params holds the primitive parameters.
type LightState struct {
	Name      string
	Reachable bool
	ColorMode ColorMode
	Params    Set
}

// Clone returns a copy that shares nothing with st.
func (st LightState) Clone() LightState {
	out := st
	out.Params = st.Params.Clone()
	return out
}

// IsOn reports the light's power state.
func (st LightState) IsOn() bool {
	on, _ := st.Params[KeyOn].(On)
	return bool(on)
}

// IsDefault reports whether st matches the factory power-on state a lamp
// falls back to after losing power.
func IsDefault(st LightState) bool {
	bri, _ := st.Params[KeyBri].(Brightness)
	ct, _ := st.Params[KeyCT].(ColorTemp)
	return st.Reachable &&
		st.IsOn() &&
		st.ColorMode == ModeCT &&
		bri == DefaultBrightness &&
		ct == DefaultColorTemp
}

// DefaultTransitionTime is the transition the bridge applies when a request
// names none, in deciseconds.
const DefaultTransitionTime = 4
