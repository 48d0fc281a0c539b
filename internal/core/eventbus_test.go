package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	eb := NewEventBus()
	lights := eb.Subscribe(LightChangedEvent)
	both := eb.Subscribe(LightChangedEvent, PatternChangedEvent)

	eb.PublishLightChanged(1, NewSet(On(true)))
	eb.PublishPatternChanged("candle.lua")

	assert.Len(t, lights, 1)
	assert.Len(t, both, 2)
	assert.Equal(t, LightChanged{Light: 1, Params: NewSet(On(true))}, (<-lights).Payload)

	eb.Unsubscribe(both, LightChangedEvent, PatternChangedEvent)
	eb.PublishPatternChanged("")
	assert.Len(t, both, 2)
}

func TestEventBusTypedPayloads(t *testing.T) {
	eb := NewEventBus()
	sub := eb.Subscribe(PatternChangedEvent, LightsRestoredEvent)

	eb.PublishPatternChanged("candle.lua")
	eb.PublishLightsRestored([]int{1, 2})

	assert.Equal(t, Event{Type: PatternChangedEvent, Payload: PatternChanged{Running: "candle.lua"}}, <-sub)
	assert.Equal(t, Event{Type: LightsRestoredEvent, Payload: LightsRestored{Lights: []int{1, 2}}}, <-sub)
}

func TestEventBusNeverBlocks(t *testing.T) {
	eb := NewEventBus()
	sub := eb.Subscribe(LightsRestoredEvent)
	for i := 0; i < cap(sub)+10; i++ {
		eb.PublishLightsRestored(nil)
	}
	assert.Len(t, sub, cap(sub))
}

func TestEventBusNil(t *testing.T) {
	var eb *EventBus
	assert.NotPanics(t, func() { eb.PublishPatternChanged("candle.lua") })
}
