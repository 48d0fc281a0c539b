package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinder_MergesSources(t *testing.T) {
	f := &Finder{Sources: []Source{
		func(_ context.Context, add func(Bridge)) {
			add(Bridge{Host: "192.168.1.20", Name: "Hue Bridge - 1A2B3C"})
			add(Bridge{Host: " "})
		},
		func(_ context.Context, add func(Bridge)) {
			add(Bridge{Host: "192.168.1.20", ID: "001788fffe1a2b3c"})
			add(Bridge{Host: "192.168.1.10", ID: "001788fffe000001"})
		},
	}}

	got := f.Find(context.Background())
	assert.Equal(t, []Bridge{
		{Host: "192.168.1.10", ID: "001788fffe000001"},
		{Host: "192.168.1.20", ID: "001788fffe1a2b3c", Name: "Hue Bridge - 1A2B3C"},
	}, got)
}

func TestFinder_NothingFound(t *testing.T) {
	f := &Finder{Sources: []Source{func(context.Context, func(Bridge)) {}}}
	assert.Empty(t, f.Find(context.Background()))
}

func TestBridgeID(t *testing.T) {
	assert.Equal(t, "001788fffe1a2b3c", bridgeID([]string{"modelid=BSB002", "bridgeid=001788fffe1a2b3c"}))
	assert.Empty(t, bridgeID([]string{"modelid=BSB002"}))
}
