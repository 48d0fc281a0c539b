// Package updater paces interactive light edits. Producers submit parameter
// changes as fast as they like; the worker merges them per light and hands
// them to the gateway no more often than a minimum interval.
package updater

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"hue-toys/internal/bridge"
	"hue-toys/internal/core"
)

// DefaultQueueSize is the event buffer used when Options.QueueSize is 0.
const DefaultQueueSize = 1024

// Dispatcher sends a merged update. *bridge.Gateway implements it.
type Dispatcher interface {
	SendOptimized(ctx context.Context, lights []int, params core.Set) ([]bridge.Result, error)
}

// State is the lifecycle stage of a Worker.
type State int32

const (
	StateIdle State = iota
	StateDraining
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options configures a Worker.
type Options struct {
	// MinInterval is the shortest time between two dispatches.
	MinInterval time.Duration
	// TransitionTime in deciseconds is added to every dispatch. Zero means
	// MinInterval expressed in deciseconds.
	TransitionTime int
	// QueueSize is the capacity of the event buffer.
	QueueSize int
	// OnDispatch, if set, is called after every dispatch attempt from the
	// worker goroutine.
	OnDispatch func(light int, params core.Set, err error)
}

type event struct {
	light  int
	params core.Set
	stop   bool
}

// Worker coalesces submitted edits per light and dispatches them at a
// bounded rate from a single goroutine (Run).
type Worker struct {
	dispatcher Dispatcher
	limiter    *rate.Limiter
	transition int
	onDispatch func(light int, params core.Set, err error)

	events chan event
	done   chan struct{}
	state  atomic.Int32

	mu       sync.RWMutex
	stopping bool
}

// New returns an idle worker. Start it with Run.
func New(d Dispatcher, opts Options) (*Worker, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil dispatcher", ErrInvalidConfig)
	}
	if opts.MinInterval <= 0 {
		return nil, fmt.Errorf("%w: minimum interval must be positive, got %s", ErrInvalidConfig, opts.MinInterval)
	}
	if opts.TransitionTime < 0 {
		return nil, fmt.Errorf("%w: transition time must not be negative, got %d", ErrInvalidConfig, opts.TransitionTime)
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("%w: queue size must not be negative, got %d", ErrInvalidConfig, opts.QueueSize)
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.TransitionTime == 0 {
		opts.TransitionTime = int(opts.MinInterval / (100 * time.Millisecond))
	}

	return &Worker{
		dispatcher: d,
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		transition: opts.TransitionTime,
		onDispatch: opts.OnDispatch,
		events:     make(chan event, opts.QueueSize),
		done:       make(chan struct{}),
	}, nil
}

// State returns the worker's current lifecycle stage.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Submit queues params for light. Later values for the same key replace
// earlier ones until the light is dispatched. It blocks only while the
// buffer is full.
func (w *Worker) Submit(light int, params ...core.Param) error {
	if len(params) == 0 {
		return nil
	}
	set := core.NewSet(params...)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopping {
		return ErrStopped
	}
	select {
	case <-w.done:
		return ErrStopped
	default:
	}
	select {
	case w.events <- event{light: light, params: set}:
		return nil
	case <-w.done:
		return ErrStopped
	}
}

// Shutdown stops accepting edits, asks the worker to flush everything still
// pending and waits for it to stop or for ctx to end.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	already := w.stopping
	w.stopping = true
	w.mu.Unlock()

	if !already {
		select {
		case w.events <- event{stop: true}:
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// pendingQueue holds the merged edits of every light waiting for dispatch,
// in the order the lights first became pending.
type pendingQueue struct {
	sets  map[int]core.Set
	order []int
}

func (q *pendingQueue) add(light int, params core.Set) {
	if cur, ok := q.sets[light]; ok {
		cur.Merge(params)
		return
	}
	q.sets[light] = params.Clone()
	q.order = append(q.order, light)
}

func (q *pendingQueue) pop() (int, core.Set) {
	light := q.order[0]
	q.order = q.order[1:]
	params := q.sets[light]
	delete(q.sets, light)
	return light, params
}

func (q *pendingQueue) len() int { return len(q.order) }

// Run processes events until Shutdown has been called and every pending
// edit flushed, or until ctx ends, in which case pending edits are dropped.
func (w *Worker) Run(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(StateIdle), int32(StateDraining)) {
		return ErrRunning
	}
	defer func() {
		w.state.Store(int32(StateStopped))
		close(w.done)
	}()

	log.Println("[Updater] Worker started")
	queue := &pendingQueue{sets: make(map[int]core.Set)}

	// accept merges ev and reports whether it was the stop sentinel.
	accept := func(ev event) bool {
		if ev.stop {
			return true
		}
		queue.add(ev.light, ev.params)
		return false
	}

	for {
		if queue.len() == 0 {
			select {
			case ev := <-w.events:
				if accept(ev) {
					return w.flush(ctx, queue)
				}
			case <-ctx.Done():
				return w.abort(ctx, queue)
			}
		}

		stop := false
	drain:
		for !stop {
			select {
			case ev := <-w.events:
				stop = accept(ev)
			default:
				break drain
			}
		}
		if stop {
			return w.flush(ctx, queue)
		}
		if queue.len() == 0 {
			continue
		}

		r := w.limiter.Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case ev := <-w.events:
				timer.Stop()
				if accept(ev) {
					return w.flush(ctx, queue)
				}
			case <-ctx.Done():
				timer.Stop()
				return w.abort(ctx, queue)
			}
			continue
		}

		light, params := queue.pop()
		w.dispatch(ctx, light, params)
	}
}

// flush dispatches everything pending, still paced by the limiter. It runs
// to completion even if ctx is cancelled meanwhile.
func (w *Worker) flush(ctx context.Context, queue *pendingQueue) error {
	w.state.Store(int32(StateShuttingDown))
	log.WithField("pending", queue.len()).Println("[Updater] Shutting down, flushing pending updates")

	ctx = context.WithoutCancel(ctx)
	for queue.len() > 0 {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		light, params := queue.pop()
		w.dispatch(ctx, light, params)
	}
	log.Println("[Updater] Worker stopped")
	return nil
}

func (w *Worker) abort(ctx context.Context, queue *pendingQueue) error {
	if n := queue.len(); n > 0 {
		log.WithField("pending", n).Warn("[Updater] Context cancelled, dropping pending updates")
	}
	return ctx.Err()
}

func (w *Worker) dispatch(ctx context.Context, light int, params core.Set) {
	params = params.With(core.TransitionTime(w.transition))
	_, err := w.dispatcher.SendOptimized(ctx, []int{light}, params)
	if err != nil {
		log.WithFields(log.Fields{
			"light":  light,
			"params": params.String(),
		}).WithError(err).Warn("[Updater] Dispatch failed")
	}
	if w.onDispatch != nil {
		w.onDispatch(light, params, err)
	}
}
