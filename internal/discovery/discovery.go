// Package discovery finds Hue bridges on the local network.
package discovery

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amimof/huego"
	"github.com/hashicorp/mdns"
	log "github.com/sirupsen/logrus"
)

// Bridge is a discovered bridge.
type Bridge struct {
	Host string `json:"host"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Source reports the bridges it finds through add.
type Source func(ctx context.Context, add func(Bridge))

// Finder queries several sources concurrently and merges their results by
// host.
type Finder struct {
	Sources []Source
}

// NewFinder returns a finder using mDNS and the Hue cloud discovery service.
func NewFinder(timeout time.Duration) *Finder {
	return &Finder{Sources: []Source{MDNS(timeout), Cloud}}
}

// Find runs every source and returns the bridges found, sorted by host.
func (f *Finder) Find(ctx context.Context) []Bridge {
	var mu sync.Mutex
	found := make(map[string]Bridge)
	add := func(b Bridge) {
		b.Host = strings.TrimSpace(b.Host)
		if b.Host == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		prev, ok := found[b.Host]
		if !ok {
			log.WithField("host", b.Host).Info("[Discovery] Found bridge")
			found[b.Host] = b
			return
		}
		if prev.ID == "" {
			prev.ID = b.ID
		}
		if prev.Name == "" {
			prev.Name = b.Name
		}
		found[b.Host] = prev
	}

	var wg sync.WaitGroup
	for _, src := range f.Sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			src(ctx, add)
		}(src)
	}
	wg.Wait()

	out := make([]Bridge, 0, len(found))
	for _, b := range found {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

// MDNS browses for _hue._tcp services for up to timeout.
func MDNS(timeout time.Duration) Source {
	return func(ctx context.Context, add func(Bridge)) {
		entries := make(chan *mdns.ServiceEntry, 10)
		go func() {
			params := &mdns.QueryParam{
				Service:             "_hue._tcp",
				Domain:              "local",
				Timeout:             timeout,
				Entries:             entries,
				DisableIPv6:         true,
				WantUnicastResponse: true,
			}
			if err := mdns.Query(params); err != nil {
				log.Printf("[Discovery] mDNS query error: %v", err)
			}
			close(entries)
		}()

		for entry := range entries {
			if ctx.Err() != nil {
				continue
			}
			if entry.AddrV4 == nil {
				continue
			}
			add(Bridge{Host: entry.AddrV4.String(), Name: entry.Name, ID: bridgeID(entry.InfoFields)})
		}
	}
}

// Cloud asks the Hue discovery service for bridges registered from this
// network.
func Cloud(ctx context.Context, add func(Bridge)) {
	bridges, err := huego.DiscoverAllContext(ctx)
	if err != nil {
		log.Printf("[Discovery] Cloud discovery error: %v", err)
		return
	}
	for _, b := range bridges {
		add(Bridge{Host: b.Host, ID: b.ID})
	}
}

func bridgeID(fields []string) string {
	for _, f := range fields {
		if id, ok := strings.CutPrefix(f, "bridgeid="); ok {
			return id
		}
	}
	return ""
}
