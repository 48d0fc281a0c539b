package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"hue-toys/internal/core"
)

// ErrBadPayload is returned for a command payload that cannot be decoded.
var ErrBadPayload = errors.New("mqtt: bad payload")

// Request is a decoded light command.
type Request struct {
	Params core.Set
	// Effect names a pattern to run instead of, or after, setting Params.
	Effect string
}

// ParsePayload decodes a light command. It accepts a bare ON/OFF, the Home
// Assistant JSON light schema (state, brightness, color_temp, color,
// transition, effect) and bridge parameter names (on, bri, xy, ctk...),
// which may be mixed in one object.
func ParsePayload(payload []byte) (Request, error) {
	text := strings.TrimSpace(string(payload))
	switch strings.ToUpper(text) {
	case "ON":
		return Request{Params: core.NewSet(core.On(true))}, nil
	case "OFF":
		return Request{Params: core.NewSet(core.On(false))}, nil
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	var req Request
	native := make(map[string]any, len(body))
	extra := core.Set{}
	for k, v := range body {
		switch k {
		case "state":
			s, _ := v.(string)
			switch strings.ToUpper(s) {
			case "ON":
				extra.Put(core.On(true))
			case "OFF":
				extra.Put(core.On(false))
			default:
				return Request{}, fmt.Errorf("%w: state %v", ErrBadPayload, v)
			}
		case "brightness":
			native[string(core.KeyBri)] = v
		case "color_temp":
			native[string(core.KeyCT)] = v
		case "transition":
			secs, ok := v.(float64)
			if !ok || secs < 0 {
				return Request{}, fmt.Errorf("%w: transition %v", ErrBadPayload, v)
			}
			native[string(core.KeyTransition)] = math.Round(secs * 10)
		case "color":
			params, err := parseColor(v)
			if err != nil {
				return Request{}, err
			}
			extra.Merge(params)
		case "effect":
			req.Effect, _ = v.(string)
		default:
			native[k] = v
		}
	}

	params, err := core.ParseSet(native)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	params.Merge(extra)
	req.Params = params
	return req, nil
}

func parseColor(v any) (core.Set, error) {
	color, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: color %v", ErrBadPayload, v)
	}
	if x, ok := color["x"]; ok {
		p, err := core.ParseParam(string(core.KeyXY), []any{x, color["y"]})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return core.NewSet(p), nil
	}
	h, okH := color["h"].(float64)
	s, okS := color["s"].(float64)
	if !okH || !okS || h < 0 || h > 360 || s < 0 || s > 100 {
		return nil, fmt.Errorf("%w: color %v", ErrBadPayload, v)
	}
	return core.NewSet(
		core.Hue(int(math.Round(h*65535/360))),
		core.Saturation(int(math.Round(s*254/100))),
	), nil
}

// StatePayload renders the parameters last sent to a light in the Home
// Assistant JSON light schema.
func StatePayload(params core.Set) map[string]any {
	params = core.Expand(params)
	out := map[string]any{}
	if on, ok := params[core.KeyOn].(core.On); ok {
		out["state"] = "OFF"
		if on {
			out["state"] = "ON"
		}
	}
	if bri, ok := params[core.KeyBri].(core.Brightness); ok {
		out["brightness"] = int(bri)
	}

	hue, hasHue := params[core.KeyHue].(core.Hue)
	sat, hasSat := params[core.KeySat].(core.Saturation)
	xy, hasXY := params[core.KeyXY].(core.XY)
	ct, hasCT := params[core.KeyCT].(core.ColorTemp)
	switch {
	case hasCT:
		out["color_mode"] = "color_temp"
		out["color_temp"] = int(ct)
	case hasXY:
		out["color_mode"] = "xy"
		out["color"] = map[string]any{"x": xy.X, "y": xy.Y}
	case hasHue || hasSat:
		out["color_mode"] = "hs"
		color := map[string]any{}
		if hasHue {
			color["h"] = math.Round(float64(hue)*360/65535*10) / 10
		}
		if hasSat {
			color["s"] = math.Round(float64(sat)*100/254*10) / 10
		}
		out["color"] = color
	}
	return out
}

// parseLightTopic splits "<prefix>/light/<id>/<action>".
func parseLightTopic(prefix, topic string) (light int, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/light/")
	if !found {
		return 0, "", false
	}
	idPart, action, found := strings.Cut(rest, "/")
	if !found || strings.Contains(action, "/") {
		return 0, "", false
	}
	id, err := strconv.Atoi(idPart)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, action, true
}
