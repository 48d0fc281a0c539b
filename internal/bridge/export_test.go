package bridge

import (
	"context"
	"time"
)

// SetSleep replaces the wait between retry attempts.
func SetSleep(g *Gateway, sleep func(ctx context.Context, d time.Duration) error) {
	g.sleep = sleep
}
