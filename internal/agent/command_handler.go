package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"hue-toys/internal/core"
	"hue-toys/internal/scheduler"
	"hue-toys/internal/server"
)

var errBadCommand = errors.New("bad command")

// Patterns is the part of lua.Engine the websocket API edits patterns with.
type Patterns interface {
	GetPatternCode(name string) (string, error)
	SavePatternCode(name, code string) error
	DeletePattern(name string) error
	GetPatternList() ([]string, error)
	ExecuteString(code string)
}

// Schedules is the part of scheduler.Scheduler the websocket API uses.
type Schedules interface {
	Add(spec, command string) (cron.EntryID, error)
	Remove(id int) error
	GetAll() map[cron.EntryID]scheduler.ScheduleEntry
}

// LightLister reads the current light list.
type LightLister interface {
	Lights(ctx context.Context) ([]server.LightInfo, error)
}

// CommandHandler turns websocket messages into agent commands. Light and
// pattern commands go to the orchestrator loop; pattern files and schedules
// are edited directly and the result is broadcast.
type CommandHandler struct {
	commands  core.CommandChannel
	patterns  Patterns
	schedules Schedules
	lights    LightLister
}

func NewCommandHandler(commands core.CommandChannel, p Patterns, s Schedules, l LightLister) *CommandHandler {
	return &CommandHandler{commands: commands, patterns: p, schedules: s, lights: l}
}

func (h *CommandHandler) Handle(msg server.Message, hub *server.Hub) {
	if err := h.handle(msg, hub); err != nil {
		log.WithField("session", msg.Session).Warnf("[Handler] %v", err)
		hub.Send(msg.Session, server.ErrorMessage(err))
	}
}

func (h *CommandHandler) handle(msg server.Message, hub *server.Hub) error {
	var cmd server.Command
	if err := json.Unmarshal(msg.Raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", errBadCommand, err)
	}

	switch cmd.Type {
	case "setLight", "updateLight":
		lights, err := lightsArg(cmd.Payload, cmd.Type == "setLight")
		if err != nil {
			return err
		}
		raw, _ := cmd.Payload["params"].(map[string]interface{})
		params, err := core.ParseSet(raw)
		if err != nil {
			return err
		}
		if len(params) == 0 {
			return fmt.Errorf("%w: %s without params", errBadCommand, cmd.Type)
		}
		h.commands <- core.Command{Type: core.CommandType(cmd.Type), Lights: lights, Params: params}

	case "captureState", "restoreState":
		lights, err := lightsArg(cmd.Payload, true)
		if err != nil {
			return err
		}
		h.commands <- core.Command{Type: core.CommandType(cmd.Type), Lights: lights}

	case "clearCache", "stopPattern":
		h.commands <- core.Command{Type: core.CommandType(cmd.Type)}

	case "runPattern":
		name, err := stringArg(cmd.Payload, "name")
		if err != nil {
			return err
		}
		h.commands <- core.Command{Type: core.CmdRunPattern, Name: name}

	case "executeLua":
		code, err := stringArg(cmd.Payload, "code")
		if err != nil {
			return err
		}
		h.patterns.ExecuteString(code)

	case "getLights":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		lights, err := h.lights.Lights(ctx)
		if err != nil {
			log.WithError(err).Warn("[Handler] Light list incomplete")
		}
		if lights == nil {
			lights = []server.LightInfo{}
		}
		hub.Send(msg.Session, server.NewMessage("light_list", lights))

	case "addSchedule":
		spec, err := stringArg(cmd.Payload, "spec")
		if err != nil {
			return err
		}
		command, err := stringArg(cmd.Payload, "command")
		if err != nil {
			return err
		}
		if _, err := h.schedules.Add(spec, command); err != nil {
			return err
		}
		hub.Broadcast(server.NewMessage("schedule_list", h.schedules.GetAll()))

	case "removeSchedule":
		id, err := idArg(cmd.Payload["id"])
		if err != nil {
			return err
		}
		if err := h.schedules.Remove(id); err != nil {
			return err
		}
		hub.Broadcast(server.NewMessage("schedule_list", h.schedules.GetAll()))

	case "getPatternCode":
		name, err := stringArg(cmd.Payload, "name")
		if err != nil {
			return err
		}
		content, err := h.patterns.GetPatternCode(name)
		if err != nil {
			return err
		}
		hub.Send(msg.Session, server.NewMessage("pattern_code", map[string]string{"name": name, "code": content}))

	case "savePatternCode":
		name, err := stringArg(cmd.Payload, "name")
		if err != nil {
			return err
		}
		code, err := stringArg(cmd.Payload, "code")
		if err != nil {
			return err
		}
		if err := h.patterns.SavePatternCode(name, code); err != nil {
			return err
		}
		h.broadcastPatterns(hub)

	case "deletePattern":
		name, err := stringArg(cmd.Payload, "name")
		if err != nil {
			return err
		}
		if err := h.patterns.DeletePattern(name); err != nil {
			return err
		}
		h.broadcastPatterns(hub)

	default:
		return fmt.Errorf("%w: unknown command type %q", errBadCommand, cmd.Type)
	}
	return nil
}

func (h *CommandHandler) broadcastPatterns(hub *server.Hub) {
	patterns, err := h.patterns.GetPatternList()
	if err != nil {
		log.Printf("[Handler] Cannot list patterns: %v", err)
		return
	}
	hub.Broadcast(server.NewMessage("pattern_list", patterns))
}

// lightsArg reads payload["lights"], a list of light IDs. When optional, a
// missing list selects every light.
func lightsArg(payload map[string]interface{}, optional bool) ([]int, error) {
	raw, ok := payload["lights"]
	if !ok || raw == nil {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: lights missing", errBadCommand)
	}
	if single, ok := raw.(float64); ok {
		raw = []interface{}{single}
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: lights must be a list, got %T", errBadCommand, raw)
	}
	lights := make([]int, 0, len(list))
	for _, v := range list {
		id, err := idArg(v)
		if err != nil {
			return nil, err
		}
		lights = append(lights, id)
	}
	if len(lights) == 0 && !optional {
		return nil, fmt.Errorf("%w: lights empty", errBadCommand)
	}
	return lights, nil
}

// idArg accepts a JSON number or a numeric string.
func idArg(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		if t == float64(int(t)) && t > 0 {
			return int(t), nil
		}
	case string:
		if id, err := strconv.Atoi(t); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: bad id %v", errBadCommand, v)
}

func stringArg(payload map[string]interface{}, key string) (string, error) {
	s, ok := payload[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s missing", errBadCommand, key)
	}
	return s, nil
}
