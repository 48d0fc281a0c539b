package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"hue-toys/internal/core"
)

// ParseCommand turns a schedule command line into an agent command.
//
//	power on|off [lights]
//	set <lights> key=value...
//	pattern <name>
//	stop
//	capture [lights]
//	restore [lights]
//	clear-cache
//
// lights is a comma separated list of IDs, or "all". Omitting it addresses
// every light on the bridge.
func ParseCommand(command string) (core.Command, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return core.Command{}, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}

	switch parts[0] {
	case "power":
		if len(parts) < 2 || len(parts) > 3 {
			return core.Command{}, fmt.Errorf("%w: usage: power on|off [lights]", ErrInvalidCommand)
		}
		var on bool
		switch parts[1] {
		case "on":
			on = true
		case "off":
		default:
			return core.Command{}, fmt.Errorf("%w: power wants on or off, got %q", ErrInvalidCommand, parts[1])
		}
		lights, err := parseLights(parts[2:])
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Type: core.CmdSetLight, Lights: lights, Params: core.NewSet(core.On(on))}, nil

	case "set":
		if len(parts) < 3 {
			return core.Command{}, fmt.Errorf("%w: usage: set <lights> key=value...", ErrInvalidCommand)
		}
		lights, err := parseLights(parts[1:2])
		if err != nil {
			return core.Command{}, err
		}
		params, err := parseAssignments(parts[2:])
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Type: core.CmdSetLight, Lights: lights, Params: params}, nil

	case "pattern":
		if len(parts) != 2 {
			return core.Command{}, fmt.Errorf("%w: usage: pattern <name>", ErrInvalidCommand)
		}
		return core.Command{Type: core.CmdRunPattern, Name: parts[1]}, nil

	case "stop":
		return core.Command{Type: core.CmdStopPattern}, nil

	case "capture", "restore":
		if len(parts) > 2 {
			return core.Command{}, fmt.Errorf("%w: usage: %s [lights]", ErrInvalidCommand, parts[0])
		}
		lights, err := parseLights(parts[1:])
		if err != nil {
			return core.Command{}, err
		}
		t := core.CmdCaptureState
		if parts[0] == "restore" {
			t = core.CmdRestoreState
		}
		return core.Command{Type: t, Lights: lights}, nil

	case "clear-cache":
		return core.Command{Type: core.CmdClearCache}, nil
	}

	return core.Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, parts[0])
}

func parseLights(args []string) ([]int, error) {
	if len(args) == 0 || args[0] == "all" {
		return nil, nil
	}
	var lights []int
	for _, field := range strings.Split(args[0], ",") {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: bad light %q", ErrInvalidCommand, field)
		}
		lights = append(lights, id)
	}
	return lights, nil
}

// parseAssignments reads key=value pairs. Values are booleans, numbers or a
// comma separated coordinate pair.
func parseAssignments(args []string) (core.Set, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: want key=value, got %q", ErrInvalidCommand, arg)
		}
		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, key, err)
		}
		values[key] = v
	}
	params, err := core.ParseSet(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return params, nil
}

func parseValue(raw string) (any, error) {
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if x, y, ok := strings.Cut(raw, ","); ok {
		fx, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, err
		}
		fy, err := strconv.ParseFloat(y, 64)
		if err != nil {
			return nil, err
		}
		return []any{fx, fy}, nil
	}
	return strconv.ParseFloat(raw, 64)
}
