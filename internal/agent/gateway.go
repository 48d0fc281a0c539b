package agent

import (
	"context"

	"hue-toys/internal/bridge"
	"hue-toys/internal/core"
)

// scriptGateway is what patterns see: sends go through the dedup cache and
// every light that accepted its parameters is announced.
type scriptGateway struct {
	gw      *bridge.Gateway
	publish func(light int, params core.Set)
}

func (s *scriptGateway) State(ctx context.Context, light int) (core.LightState, error) {
	return s.gw.State(ctx, light)
}

func (s *scriptGateway) Send(ctx context.Context, lights []int, params core.Set) ([]bridge.Result, error) {
	results, err := s.gw.SendOptimized(ctx, lights, params)
	for _, r := range results {
		if len(r.Errors) == 0 {
			s.publish(r.Light, params)
		}
	}
	return results, err
}
