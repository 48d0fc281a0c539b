package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"hue-toys/internal/core"
)

// Gateway defaults.
const (
	DefaultRetries        = 30
	DefaultRetryWait      = time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Options configures a Gateway. Zero values select the defaults.
type Options struct {
	Retries        int
	RetryWait      time.Duration
	RequestTimeout time.Duration
	// NoRetries makes every call a single attempt regardless of Retries.
	NoRetries bool
}

// Gateway is the pipeline's only way to the bridge. It expands derived
// params, retries communication failures and, for SendOptimized, asks the
// cache which params actually need sending. Calls are serialised.
type Gateway struct {
	mu      sync.Mutex
	api     API
	cache   *Cache
	retries int
	wait    time.Duration
	timeout time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway validates opts and returns a gateway over api. A nil cache
// gets a fresh one.
func NewGateway(api API, cache *Cache, opts Options) (*Gateway, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: nil bridge API", ErrInvalidConfig)
	}
	if opts.Retries < 0 {
		return nil, fmt.Errorf("%w: retries must not be negative, got %d", ErrInvalidConfig, opts.Retries)
	}
	if opts.RetryWait < 0 {
		return nil, fmt.Errorf("%w: retry wait must not be negative, got %s", ErrInvalidConfig, opts.RetryWait)
	}
	if opts.RequestTimeout < 0 {
		return nil, fmt.Errorf("%w: request timeout must not be negative, got %s", ErrInvalidConfig, opts.RequestTimeout)
	}

	if opts.Retries == 0 && !opts.NoRetries {
		opts.Retries = DefaultRetries
	}
	if opts.NoRetries {
		opts.Retries = 0
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = DefaultRetryWait
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if cache == nil {
		cache = NewCache()
	}

	return &Gateway{
		api:     api,
		cache:   cache,
		retries: opts.Retries,
		wait:    opts.RetryWait,
		timeout: opts.RequestTimeout,
		sleep:   sleepContext,
	}, nil
}

// Send expands params and sends them to every light.
//
// Communication failures are retried; when retries run out Send returns an
// error wrapping ErrCommunication. If any light reports the bridge busy, the
// remaining lights are still sent and the returned error wraps
// ErrBridgeBusy. Other per-parameter errors are logged and only reported in
// the results.
func (g *Gateway) Send(ctx context.Context, lights []int, params core.Set) ([]Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	expanded := core.Expand(params)
	return g.send(ctx, lights, func(int) core.Set { return expanded })
}

// SendOptimized is Send with every light's params reduced by the cache
// first. Lights left with nothing persistent to change are not contacted.
func (g *Gateway) SendOptimized(ctx context.Context, lights []int, params core.Set) ([]Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	expanded := core.Expand(params)
	return g.send(ctx, lights, func(light int) core.Set {
		return g.cache.Filter(light, expanded)
	})
}

func (g *Gateway) send(ctx context.Context, lights []int, paramsFor func(int) core.Set) ([]Result, error) {
	var results []Result
	var busy error

	for _, light := range lights {
		params := paramsFor(light)
		if !params.Persistent() {
			log.WithField("light", light).Debug("[Gateway] Nothing to send")
			continue
		}

		var apiErrs []*APIError
		err := g.retry(ctx, "set", light, func(ctx context.Context) error {
			var err error
			apiErrs, err = g.api.SetLightState(ctx, light, params)
			return err
		})
		if err != nil {
			g.cache.Forget(light)
			return results, err
		}

		res := Result{Light: light, Params: params, Errors: apiErrs}
		results = append(results, res)
		if len(apiErrs) == 0 {
			continue
		}

		g.cache.Forget(light)
		for _, e := range apiErrs {
			log.WithFields(log.Fields{
				"light":   light,
				"type":    e.Type,
				"address": e.Address,
			}).Warnf("[Gateway] Bridge rejected state change: %s", e.Description)
		}
		if res.Busy() && busy == nil {
			busy = fmt.Errorf("bridge: light %d: %w", light, ErrBridgeBusy)
		}
	}
	return results, busy
}

// State reads the state of one light with the gateway's retry policy.
func (g *Gateway) State(ctx context.Context, light int) (core.LightState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var st core.LightState
	err := g.retry(ctx, "read", light, func(ctx context.Context) error {
		var err error
		st, err = g.api.LightState(ctx, light)
		return err
	})
	return st, err
}

// Lookup resolves light references, each either a numeric ID or a light
// name, to IDs. Unknown references are logged and reported together in an
// error wrapping ErrUnknownLight; the lights that did resolve are still
// returned. Without refs it returns every light on the bridge, sorted.
func (g *Gateway) Lookup(ctx context.Context, refs ...string) ([]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var known map[int]string
	err := g.retry(ctx, "list", 0, func(ctx context.Context) error {
		var err error
		known, err = g.api.Lights(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(refs) == 0 {
		ids := make([]int, 0, len(known))
		for id := range known {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		return ids, nil
	}

	byName := make(map[string]int, len(known))
	for id, name := range known {
		byName[strings.ToLower(name)] = id
	}

	var ids []int
	var unknown []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if id, err := strconv.Atoi(ref); err == nil {
			if _, ok := known[id]; ok {
				ids = append(ids, id)
				continue
			}
		} else if id, ok := byName[strings.ToLower(ref)]; ok {
			ids = append(ids, id)
			continue
		}
		log.WithField("light", ref).Warn("[Gateway] Unknown light")
		unknown = append(unknown, ref)
	}

	if len(unknown) > 0 {
		return ids, fmt.Errorf("%w: %s", ErrUnknownLight, strings.Join(unknown, ", "))
	}
	return ids, nil
}

// ClearCache forgets everything the cache knows. Use it when the lights may
// have been changed by someone else.
func (g *Gateway) ClearCache() {
	g.cache.Clear()
}

// retry runs fn until it succeeds, fails with something other than a
// communication failure, or the attempts (retries+1) run out.
func (g *Gateway) retry(ctx context.Context, op string, light int, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= g.retries+1; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err = fn(reqCtx)
		cancel()

		if err == nil || !errors.Is(err, ErrCommunication) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("bridge: %s light %d: %w", op, light, err)
		}
		if attempt > g.retries {
			break
		}

		log.WithFields(log.Fields{
			"light":   light,
			"attempt": attempt,
			"error":   err,
		}).Warnf("[Gateway] %s failed, retrying in %s", op, g.wait)
		if serr := g.sleep(ctx, g.wait); serr != nil {
			return fmt.Errorf("bridge: %s light %d: %w", op, light, err)
		}
	}
	return fmt.Errorf("bridge: %s light %d: giving up after %d attempts: %w", op, light, g.retries+1, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
