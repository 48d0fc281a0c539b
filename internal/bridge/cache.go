package bridge

import (
	"sync"

	"hue-toys/internal/core"
)

// Cache remembers the primitive params last sent to every light so that
// redundant values can be left out of the next request. Entries reflect what
// the pipeline sent, not what the light reports; changes made by other
// clients are not seen.
type Cache struct {
	mu     sync.Mutex
	lights map[int]core.Set
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{lights: make(map[int]core.Set)}
}

// Filter returns the subset of params that differs from what light is known
// to have and records params as the light's new known state.
//
// Turning a light off forgets its brightness, since lamps may report a
// different brightness when they come back on. Sending a color param forgets
// the alternate color representations, since the light switches mode.
// The transition time is never cached or elided.
func (c *Cache) Filter(light int, params core.Set) core.Set {
	c.mu.Lock()
	defer c.mu.Unlock()

	known, ok := c.lights[light]
	if !ok {
		known = core.Set{}
		c.lights[light] = known
	}

	for k, p := range params {
		if on, isOn := p.(core.On); isOn && !bool(on) {
			delete(known, core.KeyBri)
		}
		if d := k.Domain(); d.IsColor() {
			for _, alt := range core.AlternateColorKeys(d) {
				delete(known, alt)
			}
		}
	}

	out := core.Set{}
	for k, p := range params {
		if k == core.KeyTransition {
			out[k] = p
			continue
		}
		if prev, seen := known[k]; !seen || prev != p {
			out[k] = p
		}
	}
	for k, p := range params {
		if k != core.KeyTransition {
			known[k] = p
		}
	}
	return out
}

// Get returns a copy of what is known about light.
func (c *Cache) Get(light int) core.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lights[light].Clone()
}

// Forget drops everything known about light.
func (c *Cache) Forget(light int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lights, light)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lights = make(map[int]core.Set)
}
