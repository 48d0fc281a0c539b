package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amimof/huego"

	"hue-toys/internal/core"
)

// Client implements API against a bridge's v1 REST interface. Reads go
// through huego; state changes are sent as raw PUTs because huego.State
// always serialises "on" and so cannot express a partial update.
type Client struct {
	hue        *huego.Bridge
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the bridge at host (an address or URL)
// using the registered username.
func NewClient(host, username string) *Client {
	base := strings.TrimSuffix(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		hue:        huego.New(base, username),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    base + "/api/" + username,
	}
}

// CreateUser registers a new username with the bridge at host. The link
// button on the bridge must have been pressed shortly before.
func CreateUser(ctx context.Context, host, deviceType string) (string, error) {
	user, err := huego.New(host, "").CreateUserContext(ctx, deviceType)
	if err != nil {
		return "", classify(err)
	}
	return user, nil
}

type reply struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *APIError      `json:"error,omitempty"`
}

// SetLightState implements API.
func (c *Client) SetLightState(ctx context.Context, light int, params core.Set) ([]*APIError, error) {
	body, err := params.Wire()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("bridge: encoding state for light %d: %w", light, err)
	}

	url := fmt.Sprintf("%s/lights/%d/state", c.baseURL, light)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bridge: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrCommunication, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge: light %d: unexpected HTTP %d", light, resp.StatusCode)
	}

	var replies []reply
	if err := json.NewDecoder(resp.Body).Decode(&replies); err != nil {
		return nil, classify(err)
	}

	var apiErrs []*APIError
	for _, r := range replies {
		if r.Error != nil {
			apiErrs = append(apiErrs, r.Error)
		}
	}
	return apiErrs, nil
}

// LightState implements API.
func (c *Client) LightState(ctx context.Context, light int) (core.LightState, error) {
	l, err := c.hue.GetLightContext(ctx, light)
	if err != nil {
		return core.LightState{}, classify(err)
	}
	if l.State == nil {
		return core.LightState{}, fmt.Errorf("%w: %d", ErrUnknownLight, light)
	}
	return fromHue(l.Name, l.State), nil
}

// Lights implements API.
func (c *Client) Lights(ctx context.Context) (map[int]string, error) {
	ls, err := c.hue.GetLightsContext(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make(map[int]string, len(ls))
	for _, l := range ls {
		out[l.ID] = l.Name
	}
	return out, nil
}

// fromHue converts a huego state into the pipeline's representation. Values
// a light does not support are left out.
func fromHue(name string, s *huego.State) core.LightState {
	st := core.LightState{
		Name:      name,
		Reachable: s.Reachable,
		ColorMode: core.ColorMode(s.ColorMode),
		Params:    core.NewSet(core.On(s.On)),
	}
	if s.Bri > 0 {
		st.Params.Put(core.Brightness(int(s.Bri)))
	}
	switch st.ColorMode {
	case core.ModeNone:
		return st
	case core.ModeCT:
	default:
		st.Params.Put(core.Hue(int(s.Hue)))
		st.Params.Put(core.Saturation(int(s.Sat)))
		if len(s.Xy) == 2 {
			st.Params.Put(core.XY{X: float64(s.Xy[0]), Y: float64(s.Xy[1])})
		}
	}
	if s.Ct > 0 {
		st.Params.Put(core.ColorTemp(int(s.Ct)))
	}
	return st
}

// classify marks transport level failures as communication errors so the
// gateway retries them.
func classify(err error) error {
	var apiErr *huego.APIError
	switch {
	case errors.As(err, &apiErr):
		return &APIError{Type: apiErr.Type, Address: apiErr.Address, Description: apiErr.Description}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("bridge: unexpected reply: %w", err)
	}
	return fmt.Errorf("%w: %w", ErrCommunication, err)
}
