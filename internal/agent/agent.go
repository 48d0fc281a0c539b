// Package agent wires the bridge gateway, the update worker and the
// producers (websocket UI, MQTT, Lua patterns, cron schedules, power-loss
// monitor) together and runs the command loop between them.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"hue-toys/internal/bridge"
	"hue-toys/internal/config"
	"hue-toys/internal/core"
	"hue-toys/internal/lua"
	"hue-toys/internal/monitor"
	"hue-toys/internal/mqtt"
	"hue-toys/internal/scheduler"
	"hue-toys/internal/server"
	"hue-toys/internal/snapshot"
	"hue-toys/internal/updater"
)

const shutdownTimeout = 10 * time.Second

type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup
	loop   sync.WaitGroup

	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	gateway    *bridge.Gateway
	worker     *updater.Worker
	luaEngine  *lua.Engine
	scheduler  *scheduler.Scheduler
	monitor    *monitor.Monitor
	server     *server.Server
	mqttClient *mqtt.Client

	mu      sync.Mutex
	saved   *snapshot.Snapshot
	running string
}

// NewAgent builds every component from cfg. Nothing talks to the bridge
// until Run.
func NewAgent(cfg *config.Config) (*Agent, error) {
	if cfg.Bridge.Address == "" || cfg.Bridge.Username == "" {
		return nil, fmt.Errorf("%w: bridge address and username are required (run lightctl pair)", config.ErrInvalid)
	}
	return newAgent(cfg, bridge.NewClient(cfg.Bridge.Address, cfg.Bridge.Username))
}

func newAgent(cfg *config.Config, api bridge.API) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		config:         cfg,
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, 20),
	}

	gw, err := bridge.NewGateway(api, bridge.NewCache(), bridge.Options{
		Retries:        cfg.Bridge.Retries,
		NoRetries:      cfg.Bridge.Retries == 0,
		RetryWait:      cfg.Bridge.RetryWait,
		RequestTimeout: cfg.Bridge.RequestTimeout,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	a.gateway = gw

	a.worker, err = updater.New(gw, updater.Options{
		MinInterval:    cfg.Pipeline.MinInterval,
		TransitionTime: cfg.Pipeline.TransitionTime,
		QueueSize:      cfg.Pipeline.QueueSize,
		OnDispatch: func(light int, params core.Set, err error) {
			if err == nil {
				a.publishLight(light, params)
			}
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}

	a.luaEngine = lua.NewEngine(&scriptGateway{gw: gw, publish: a.publishLight}, a.worker, a.eventBus, lua.Options{
		PatternsDir:    cfg.PatternsDir,
		RestoreAfter:   cfg.Restore.AfterPattern,
		RestoreRetries: cfg.Restore.Retries,
		RestoreWait:    cfg.Restore.RetryWait,
	})

	a.scheduler = scheduler.NewScheduler(a.commandChannel, cfg.SchedulesFile)

	a.server = server.NewServer(a, cfg.Server.Port, cfg.Server.WebFilesDir, cfg.Server.AllowedOrigins)
	a.server.SetHandler(NewCommandHandler(a.commandChannel, a.luaEngine, a.scheduler, a))

	a.mqttClient = mqtt.NewClient(cfg.MQTT, a.commandChannel, a.eventBus, a)

	return a, nil
}

// Start starts every component and the orchestration loop, then returns.
// Stop the agent with Shutdown.
func (a *Agent) Start() {
	go a.listenEvents()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.worker.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Agent] Update worker stopped: %v", err)
		}
	}()

	if a.config.Monitor.Enabled {
		a.startMonitor()
	}
	a.scheduler.Start()

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				log.Printf("[Agent] MQTT Setup Error: %v", err)
			}
		}()
	}

	log.Printf("[Agent] Running on http://localhost:%s", a.config.Server.Port)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Agent] Server error: %v", err)
		}
	}()

	a.loop.Add(1)
	go a.orchestrate()
}

func (a *Agent) orchestrate() {
	defer a.loop.Done()

	log.Println("[Agent] Orchestrator ready.")
	for {
		select {
		case <-a.ctx.Done():
			log.Println("[Agent] Orchestrator shutting down...")
			return
		case cmd := <-a.commandChannel:
			a.handleCommand(a.ctx, cmd)
		}
	}
}

func (a *Agent) startMonitor() {
	lights := a.config.Monitor.Lights
	if len(lights) == 0 {
		var err error
		if lights, err = a.gateway.Lookup(a.ctx); err != nil {
			log.WithError(err).Error("[Agent] Cannot list lights, power-loss monitor disabled")
			return
		}
	}

	m, err := monitor.New(a.gateway, a.eventBus, monitor.Options{
		Lights:       lights,
		Individual:   a.config.Monitor.Individual,
		Transition:   a.config.Restore.TransitionTime,
		RestoreTries: a.config.Restore.Retries,
		RestoreWait:  a.config.Restore.RetryWait,
	})
	if err != nil {
		log.WithError(err).Error("[Agent] Power-loss monitor disabled")
		return
	}

	_, err = a.scheduler.AddJob(a.config.Monitor.Schedule, func() {
		if err := m.Tick(a.ctx); err != nil && a.ctx.Err() == nil {
			log.WithError(err).Warn("[Agent] Monitor tick incomplete")
		}
	})
	if err != nil {
		log.WithError(err).Error("[Agent] Power-loss monitor disabled")
		return
	}
	a.monitor = m
	log.WithField("lights", lights).Info("[Agent] Power-loss monitor started")
}

func (a *Agent) listenEvents() {
	types := []core.EventType{core.LightChangedEvent, core.PatternChangedEvent, core.LightsRestoredEvent}
	sub := a.eventBus.Subscribe(types...)
	defer a.eventBus.Unsubscribe(sub, types...)

	for {
		select {
		case <-a.ctx.Done():
			return
		case event := <-sub:
			switch event.Type {
			case core.LightChangedEvent:
				if payload, ok := event.Payload.(core.LightChanged); ok {
					a.server.Hub.Broadcast(server.LightUpdate(payload.Light, payload.Params))
				}
			case core.PatternChangedEvent:
				if payload, ok := event.Payload.(core.PatternChanged); ok {
					a.mu.Lock()
					a.running = payload.Running
					a.mu.Unlock()
					a.server.Hub.Broadcast(server.NewMessage("pattern_status", map[string]string{"running": payload.Running}))
				}
			case core.LightsRestoredEvent:
				if payload, ok := event.Payload.(core.LightsRestored); ok {
					a.server.Hub.Broadcast(server.NewMessage("lights_restored", payload.Lights))
				}
				a.broadcastLights()
			}
		}
	}
}

func (a *Agent) publishLight(light int, params core.Set) {
	a.eventBus.PublishLightChanged(light, params)
}

func (a *Agent) broadcastLights() {
	lights, err := a.Lights(a.ctx)
	if err != nil {
		log.WithError(err).Warn("[Agent] Could not refresh light list")
		return
	}
	a.server.Hub.Broadcast(server.NewMessage("light_list", lights))
}

// resolve turns an empty selection into every light on the bridge.
func (a *Agent) resolve(ctx context.Context, lights []int) ([]int, error) {
	if len(lights) > 0 {
		return lights, nil
	}
	return a.gateway.Lookup(ctx)
}

func (a *Agent) handleCommand(ctx context.Context, cmd core.Command) {
	logger := log.WithFields(log.Fields{"command": cmd.Type, "lights": cmd.Lights})
	logger.Debugf("[Agent] Handling command %s %s", cmd.Name, cmd.Params)

	switch cmd.Type {
	case core.CmdSetLight:
		lights, err := a.resolve(ctx, cmd.Lights)
		if err != nil {
			logger.WithError(err).Warn("[Agent] Cannot resolve lights")
			return
		}
		if a.RunningPattern() != "" {
			log.Println("[Agent] Direct light change, stopping pattern.")
			a.luaEngine.StopCurrentPattern()
		}
		results, err := a.gateway.SendOptimized(ctx, lights, cmd.Params)
		if err != nil {
			logger.WithError(err).Warn("[Agent] Set light failed")
		}
		for _, r := range results {
			if len(r.Errors) == 0 {
				a.publishLight(r.Light, cmd.Params)
			}
		}

	case core.CmdUpdateLight:
		params := make([]core.Param, 0, len(cmd.Params))
		for _, k := range cmd.Params.Keys() {
			params = append(params, cmd.Params[k])
		}
		for _, light := range cmd.Lights {
			if err := a.worker.Submit(light, params...); err != nil {
				logger.WithError(err).Warn("[Agent] Update dropped")
				return
			}
		}

	case core.CmdRunPattern:
		a.luaEngine.RunPattern(cmd.Name)

	case core.CmdStopPattern:
		a.luaEngine.StopCurrentPattern()

	case core.CmdCaptureState:
		lights, err := a.resolve(ctx, cmd.Lights)
		if err != nil {
			logger.WithError(err).Warn("[Agent] Cannot resolve lights")
			return
		}
		a.mu.Lock()
		previous := a.saved
		a.mu.Unlock()
		snap, err := snapshot.Capture(ctx, a.gateway, lights, previous,
			snapshot.CaptureOptions{IncludeDefault: a.config.Restore.IncludeDefault})
		if err != nil {
			logger.WithError(err).Warn("[Agent] Capture incomplete")
		}
		a.mu.Lock()
		a.saved = snap
		a.mu.Unlock()
		logger.WithField("captured", snap.Lights()).Info("[Agent] Light states captured")

	case core.CmdRestoreState:
		a.mu.Lock()
		snap := a.saved
		a.mu.Unlock()
		if snap == nil {
			logger.Warn("[Agent] Nothing captured, nothing to restore")
			return
		}
		lights := cmd.Lights
		if len(lights) == 0 {
			lights = snap.Lights()
		}
		err := snapshot.RestoreWithRetry(ctx, a.gateway, lights, snap,
			a.config.Restore.TransitionTime, a.config.Restore.Retries, a.config.Restore.RetryWait)
		a.gateway.ClearCache()
		if err != nil {
			logger.WithError(err).Warn("[Agent] Restore failed")
			return
		}
		a.eventBus.PublishLightsRestored(lights)

	case core.CmdClearCache:
		a.gateway.ClearCache()
		logger.Info("[Agent] Cache cleared")

	default:
		logger.Warnf("[Agent] Unknown command type: %s", cmd.Type)
	}
}

// Lights reads the current state of every light.
func (a *Agent) Lights(ctx context.Context) ([]server.LightInfo, error) {
	ids, err := a.gateway.Lookup(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]server.LightInfo, 0, len(ids))
	var errs []error
	for _, id := range ids {
		st, err := a.gateway.State(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		infos = append(infos, server.NewLightInfo(id, st))
	}
	return infos, errors.Join(errs...)
}

// Patterns lists the pattern files.
func (a *Agent) Patterns() ([]string, error) {
	return a.luaEngine.GetPatternList()
}

// RunningPattern returns the name of the running pattern, or "".
func (a *Agent) RunningPattern() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Schedules returns the persisted cron entries.
func (a *Agent) Schedules() map[cron.EntryID]scheduler.ScheduleEntry {
	return a.scheduler.GetAll()
}

// Shutdown stops the producers first, then drains the update worker so
// every accepted edit reaches the bridge.
func (a *Agent) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.scheduler.Stop()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("[Agent] Server shutdown: %v", err)
	}
	a.mqttClient.Disconnect()

	if err := a.worker.Shutdown(ctx); err != nil {
		log.Printf("[Agent] Update worker did not drain: %v", err)
	}

	a.cancel()
	a.loop.Wait()
	a.luaEngine.Close()
	a.wg.Wait()
}
