package core

import "sync"

// EventType defines the type of event being published.
type EventType string

const (
	LightChangedEvent   EventType = "LightChanged"
	PatternChangedEvent EventType = "PatternChanged"
	LightsRestoredEvent EventType = "LightsRestored"
)

// subscriberBuffer is how many events a subscriber may fall behind before it
// starts missing them.
const subscriberBuffer = 100

// Event is the envelope for all system events. Payload is LightChanged,
// PatternChanged or LightsRestored, matching Type.
type Event struct {
	Type    EventType
	Payload interface{}
}

// LightChanged carries the parameters that were just sent to one light.
type LightChanged struct {
	Light  int
	Params Set
}

// PatternChanged carries the name of the running pattern, empty when none
// runs.
type PatternChanged struct {
	Running string
}

// LightsRestored lists the lights a restore just put back.
type LightsRestored struct {
	Lights []int
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// EventBus fans agent events out to the websocket hub and MQTT publisher.
// A nil *EventBus accepts publishes and drops them.
type EventBus struct {
	mu   sync.RWMutex
	subs map[EventType]map[Subscriber]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[EventType]map[Subscriber]struct{})}
}

// Subscribe returns a channel that receives events of the given types.
func (eb *EventBus) Subscribe(eventTypes ...EventType) Subscriber {
	ch := make(Subscriber, subscriberBuffer)

	eb.mu.Lock()
	defer eb.mu.Unlock()
	for _, t := range eventTypes {
		if eb.subs[t] == nil {
			eb.subs[t] = make(map[Subscriber]struct{})
		}
		eb.subs[t][ch] = struct{}{}
	}
	return ch
}

// Unsubscribe stops delivery of the given types to ch.
func (eb *EventBus) Unsubscribe(ch Subscriber, eventTypes ...EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for _, t := range eventTypes {
		delete(eb.subs[t], ch)
	}
}

// Publish delivers event to every subscriber of its type. A subscriber whose
// buffer is full misses the event; publishers never block.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for sub := range eb.subs[event.Type] {
		select {
		case sub <- event:
		default:
		}
	}
}

func (eb *EventBus) PublishLightChanged(light int, params Set) {
	eb.Publish(Event{Type: LightChangedEvent, Payload: LightChanged{Light: light, Params: params}})
}

func (eb *EventBus) PublishPatternChanged(running string) {
	eb.Publish(Event{Type: PatternChangedEvent, Payload: PatternChanged{Running: running}})
}

func (eb *EventBus) PublishLightsRestored(lights []int) {
	eb.Publish(Event{Type: LightsRestoredEvent, Payload: LightsRestored{Lights: lights}})
}
