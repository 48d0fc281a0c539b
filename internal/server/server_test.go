package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-toys/internal/core"
	"hue-toys/internal/scheduler"
)

type fakeStatus struct{}

func (fakeStatus) Lights(context.Context) ([]LightInfo, error) {
	return []LightInfo{NewLightInfo(1, core.LightState{
		Name: "Desk", Reachable: true, ColorMode: core.ModeCT,
		Params: core.NewSet(core.On(true), core.Brightness(100), core.ColorTemp(366)),
	})}, nil
}

func (fakeStatus) Patterns() ([]string, error) { return []string{"candle", "sunrise"}, nil }
func (fakeStatus) RunningPattern() string      { return "candle" }

func (fakeStatus) Schedules() map[cron.EntryID]scheduler.ScheduleEntry {
	return map[cron.EntryID]scheduler.ScheduleEntry{1: {Spec: "@daily", Command: "power off"}}
}

type recordingHandler struct {
	got chan Message
}

func (h *recordingHandler) Handle(msg Message, hub *Hub) {
	h.got <- msg
	hub.Send(msg.Session, NewMessage("ack", nil))
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func startServer(t *testing.T, origins []string) (*Server, *recordingHandler, string) {
	t.Helper()
	s := NewServer(fakeStatus{}, "0", t.TempDir(), origins)
	h := &recordingHandler{got: make(chan Message, 4)}
	s.SetHandler(h)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Shutdown(context.Background())
	})
	return s, h, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url, origin string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestInitialMessages(t *testing.T) {
	_, _, url := startServer(t, nil)
	conn := dial(t, url, "http://anywhere")

	hello := read(t, conn)
	assert.Equal(t, "hello", hello.Type)
	assert.Contains(t, string(hello.Payload), `"session"`)

	lights := read(t, conn)
	assert.Equal(t, "light_list", lights.Type)
	assert.JSONEq(t, `[{"id":1,"name":"Desk","reachable":true,"colormode":"ct","state":{"on":true,"bri":100,"ct":366}}]`,
		string(lights.Payload))

	patterns := read(t, conn)
	assert.Equal(t, "pattern_list", patterns.Type)
	assert.JSONEq(t, `["candle","sunrise"]`, string(patterns.Payload))

	status := read(t, conn)
	assert.Equal(t, "pattern_status", status.Type)
	assert.JSONEq(t, `{"running":"candle"}`, string(status.Payload))

	schedules := read(t, conn)
	assert.Equal(t, "schedule_list", schedules.Type)
	assert.JSONEq(t, `{"1":{"spec":"@daily","command":"power off"}}`, string(schedules.Payload))
}

func TestCommandsReachHandlerWithSession(t *testing.T) {
	_, h, url := startServer(t, nil)
	conn := dial(t, url, "http://anywhere")

	var session string
	hello := read(t, conn)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(hello.Payload, &payload))
	session = payload["session"]
	for i := 0; i < 4; i++ {
		read(t, conn)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stopPattern"}`)))

	select {
	case msg := <-h.got:
		assert.Equal(t, session, msg.Session)
		assert.JSONEq(t, `{"type":"stopPattern"}`, string(msg.Raw))
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Equal(t, "ack", read(t, conn).Type)
}

func TestBroadcast(t *testing.T) {
	s, _, url := startServer(t, nil)
	a := dial(t, url, "http://anywhere")
	b := dial(t, url, "http://anywhere")
	for i := 0; i < 5; i++ {
		read(t, a)
		read(t, b)
	}
	require.Eventually(t, func() bool { return s.Hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	s.Hub.Broadcast(LightUpdate(3, core.NewSet(core.Brightness(42), core.TransitionTime(4))))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, "light_update", msg.Type)
		assert.JSONEq(t, `{"id":3,"state":{"bri":42}}`, string(msg.Payload))
	}
}

func TestOriginCheck(t *testing.T) {
	_, _, url := startServer(t, []string{"http://localhost:8080"})

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, url, "http://LOCALHOST:8080")
	assert.Equal(t, "hello", read(t, conn).Type)
}

func TestShutdownDisconnectsClients(t *testing.T) {
	s, _, url := startServer(t, nil)
	conn := dial(t, url, "http://anywhere")
	for i := 0; i < 5; i++ {
		read(t, conn)
	}
	require.Eventually(t, func() bool { return s.Hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
