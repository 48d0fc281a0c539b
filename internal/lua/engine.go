// Package lua runs effect scripts. Scripts drive lights through the gateway
// directly, or through the update worker for fast interactive changes.
package lua

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"hue-toys/internal/core"
	"hue-toys/internal/snapshot"
)

// Gateway is the part of bridge.Gateway scripts use.
type Gateway interface {
	snapshot.Gateway
}

// Submitter queues interactive edits. *updater.Worker implements it.
type Submitter interface {
	Submit(light int, params ...core.Param) error
}

// Options configures an Engine.
type Options struct {
	PatternsDir string
	// RestoreAfter puts every light a script touched back into the state it
	// had before the script first changed it.
	RestoreAfter bool
	// RestoreRetries and RestoreWait are passed to snapshot.RestoreWithRetry.
	RestoreRetries int
	RestoreWait    time.Duration
}

// cmdType defines the type of engine command.
type cmdType int

const (
	cmdRunFile cmdType = iota
	cmdRunString
	cmdStop
)

// engineCmd represents a command sent to the Lua engine.
type engineCmd struct {
	kind cmdType
	name string
	code string
}

// Engine manages the Lua scripting environment using a single worker goroutine
// to ensure only one pattern runs at a time.
type Engine struct {
	gw       Gateway
	updates  Submitter
	opts     Options
	eventBus *core.EventBus

	cmdChan   chan engineCmd
	quit      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewEngine creates a new Lua engine and starts its background worker.
// updates and eb may be nil.
func NewEngine(gw Gateway, updates Submitter, eb *core.EventBus, opts Options) *Engine {
	if opts.PatternsDir == "" {
		opts.PatternsDir = "patterns"
	}
	e := &Engine{
		gw:       gw,
		updates:  updates,
		opts:     opts,
		eventBus: eb,
		cmdChan:  make(chan engineCmd, 10),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go e.runLoop()

	return e
}

// Close stops the running script, if any, and the worker goroutine. Commands
// sent after Close are ignored.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	<-e.stopped
}

// enqueue hands cmd to the worker goroutine. With wait unset it gives up when
// the queue is full.
func (e *Engine) enqueue(cmd engineCmd, wait bool) bool {
	select {
	case <-e.quit:
		return false
	default:
	}
	if !wait {
		select {
		case e.cmdChan <- cmd:
			return true
		default:
			return false
		}
	}
	select {
	case e.cmdChan <- cmd:
		return true
	case <-e.quit:
		return false
	}
}

// runLoop is the main worker loop that processes engine commands sequentially.
func (e *Engine) runLoop() {
	defer close(e.stopped)

	var currentCancel context.CancelFunc
	var scriptDone chan struct{}

	stopCurrent := func() {
		if currentCancel == nil {
			return
		}
		currentCancel()
		select {
		case <-scriptDone:
		case <-time.After(2 * time.Second):
			log.Println("[Lua] Timeout waiting for script to stop")
		}
		currentCancel = nil
		scriptDone = nil
	}
	defer stopCurrent()

	for {
		var cmd engineCmd
		select {
		case <-e.quit:
			return
		case cmd = <-e.cmdChan:
		}

		stopCurrent()
		if cmd.kind == cmdStop {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		currentCancel = cancel
		scriptDone = make(chan struct{})

		go func(cmd engineCmd, ctx context.Context, done chan struct{}) {
			defer close(done)
			var err error
			switch cmd.kind {
			case cmdRunFile:
				err = e.run(ctx, cmd.name, func(L *lua.LState) error { return L.DoFile(cmd.code) })
			case cmdRunString:
				err = e.run(ctx, cmd.name, func(L *lua.LState) error { return L.DoString(cmd.code) })
			}
			if err != nil {
				log.Printf("[Lua] Error executing pattern '%s': %v", cmd.name, err)
			}
		}(cmd, ctx, scriptDone)
	}
}

// StopCurrentPattern stops the currently running script if any.
func (e *Engine) StopCurrentPattern() {
	select {
	case <-e.quit:
		return
	default:
	}
	if !e.enqueue(engineCmd{kind: cmdStop}, false) {
		log.Println("[Lua] Command channel full, could not send stop command")
	}
}

// RunPattern prepares and sends a command to execute a Lua script from a file.
func (e *Engine) RunPattern(name string) {
	scriptPath, err := e.GetPatternPath(name)
	if err != nil {
		log.Printf("[Lua] Could not get pattern path for '%s': %v", name, err)
		return
	}

	if !e.enqueue(engineCmd{kind: cmdRunFile, name: name, code: scriptPath}, true) {
		log.Printf("[Lua] Engine closed, not running pattern '%s'", name)
	}
}

// ExecuteString prepares and sends a command to execute a one-off Lua command string.
func (e *Engine) ExecuteString(code string) {
	if !e.enqueue(engineCmd{kind: cmdRunString, name: "single line command", code: code}, true) {
		log.Println("[Lua] Engine closed, command dropped")
	}
}

// Exec runs code synchronously in the calling goroutine. It does not stop or
// wait for a pattern started with RunPattern.
func (e *Engine) Exec(ctx context.Context, code string) error {
	return e.run(ctx, "inline", func(L *lua.LState) error { return L.DoString(code) })
}

// run executes one script in a fresh Lua state.
func (e *Engine) run(ctx context.Context, name string, executor func(*lua.LState) error) error {
	log.Printf("[Lua] Starting pattern '%s'...", name)
	e.publish(name)

	s := &script{engine: e, ctx: ctx}

	defer func() {
		s.restore()
		log.Printf("[Lua] Pattern '%s' finished.", name)
		e.publish("")
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	s.register(L)

	err := executor(L)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		log.Printf("[Lua] Pattern '%s' execution was canceled.", name)
		return nil
	}
	return err
}

func (e *Engine) publish(running string) {
	e.eventBus.PublishPatternChanged(running)
}
