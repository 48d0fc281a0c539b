package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-toys/internal/core"
)

func TestClientSetLightState(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`[
			{"success":{"/lights/2/state/on":true}},
			{"error":{"type":901,"address":"/lights/2/state/bri","description":"Internal error, 901"}}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user")
	apiErrs, err := c.SetLightState(context.Background(), 2, core.NewSet(core.On(true), core.Brightness(10), core.XY{X: 0.5, Y: 0.25}))

	require.NoError(t, err)
	assert.Equal(t, "PUT /api/user/lights/2/state", gotPath)
	assert.Equal(t, map[string]any{"on": true, "bri": float64(10), "xy": []any{0.5, 0.25}}, gotBody)
	require.Len(t, apiErrs, 1)
	assert.Equal(t, &APIError{Type: 901, Address: "/lights/2/state/bri", Description: "Internal error, 901"}, apiErrs[0])
	assert.ErrorIs(t, apiErrs[0], ErrBridgeBusy)
}

func TestClientSetLightState_RejectsDerived(t *testing.T) {
	c := NewClient("127.0.0.1:1", "user")
	_, err := c.SetLightState(context.Background(), 1, core.NewSet(core.Kelvin(3000)))
	assert.ErrorIs(t, err, core.ErrDerivedParam)
}

func TestClientSetLightState_CommunicationFailures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	truncated := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"success":`))
	}))
	defer truncated.Close()

	gone := httptest.NewServer(http.NotFoundHandler())
	gone.Close()

	for name, url := range map[string]string{
		"server error": failing.URL,
		"truncated":    truncated.URL,
		"unreachable":  gone.URL,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient(url, "user").SetLightState(context.Background(), 1, core.NewSet(core.On(false)))
			assert.ErrorIs(t, err, ErrCommunication)
		})
	}
}

func TestClientLightState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/lights/4", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"name": "Desk",
			"state": {"on": true, "bri": 120, "hue": 8000, "sat": 140, "xy": [0.5, 0.4],
			          "ct": 400, "colormode": "xy", "reachable": true}
		}`))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL, "user").LightState(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, "Desk", st.Name)
	assert.True(t, st.Reachable)
	assert.Equal(t, core.ModeXY, st.ColorMode)
	assert.Equal(t, core.On(true), st.Params[core.KeyOn])
	assert.Equal(t, core.Brightness(120), st.Params[core.KeyBri])
	assert.Equal(t, core.ColorTemp(400), st.Params[core.KeyCT])
	require.IsType(t, core.XY{}, st.Params[core.KeyXY])
	xy := st.Params[core.KeyXY].(core.XY)
	assert.InDelta(t, 0.5, xy.X, 1e-6)
	assert.InDelta(t, 0.4, xy.Y, 1e-6)

	assert.Equal(t, core.NewSet(core.On(true), core.Brightness(120), xy), core.Normalize(st))
}

func TestClientLights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/lights", r.URL.Path)
		_, _ = w.Write([]byte(`{"1": {"name": "Desk", "state": {}}, "3": {"name": "Hall", "state": {}}}`))
	}))
	defer srv.Close()

	lights, err := NewClient(srv.URL, "user").Lights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "Desk", 3: "Hall"}, lights)
}
