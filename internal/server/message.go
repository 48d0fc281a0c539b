package server

import "hue-toys/internal/core"

// Command represents an incoming JSON command from a WebSocket client.
type Command struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Raw     []byte      `json:"-"`
	// Session identifies the client a received message came from.
	Session string `json:"-"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}

// ErrorMessage reports a failed command back to the client that sent it.
func ErrorMessage(err error) Message {
	return NewMessage("error", map[string]string{"message": err.Error()})
}

// LightInfo is how a light is presented to clients.
type LightInfo struct {
	ID        int                    `json:"id"`
	Name      string                 `json:"name"`
	Reachable bool                   `json:"reachable"`
	ColorMode string                 `json:"colormode,omitempty"`
	State     map[string]interface{} `json:"state"`
}

// NewLightInfo converts a bridge reading. Parameters that have no wire form
// are left out.
func NewLightInfo(id int, st core.LightState) LightInfo {
	info := LightInfo{
		ID:        id,
		Name:      st.Name,
		Reachable: st.Reachable,
		ColorMode: string(st.ColorMode),
		State:     map[string]interface{}{},
	}
	if wire, err := st.Params.Wire(); err == nil {
		info.State = wire
	}
	return info
}

// LightUpdate is broadcast after parameters were sent to a light.
func LightUpdate(light int, params core.Set) Message {
	state, err := core.Expand(params).Without(core.KeyTransition).Wire()
	if err != nil {
		state = map[string]interface{}{}
	}
	return NewMessage("light_update", map[string]interface{}{"id": light, "state": state})
}
