package lua

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"hue-toys/internal/core"
	"hue-toys/internal/snapshot"
)

// minStepInterval is the shortest pause between two commands of a built-in
// effect.
const minStepInterval = 300 * time.Millisecond

// script is the state of one running script.
type script struct {
	engine *Engine
	ctx    context.Context

	snap    *snapshot.Snapshot
	touched []int
}

// register exposes Go functions to the given Lua state.
func (s *script) register(L *lua.LState) {
	L.SetGlobal("set_light", L.NewFunction(s.luaSetLight))
	L.SetGlobal("update_light", L.NewFunction(s.luaUpdateLight))
	L.SetGlobal("get_light", L.NewFunction(s.luaGetLight))
	L.SetGlobal("sleep", L.NewFunction(s.luaSleep))
	L.SetGlobal("should_stop", L.NewFunction(s.luaShouldStop))
	L.SetGlobal("print", L.NewFunction(luaPrint))
	L.SetGlobal("incandescent_fade", L.NewFunction(s.luaIncandescentFade))
}

func luaPrint(L *lua.LState) int {
	log.Printf("[Lua] %s", L.ToString(1))
	return 0
}

// set_light(lights, params [, transition]) -> true | nil, err
func (s *script) luaSetLight(L *lua.LState) int {
	lights := checkLights(L, 1)
	params := checkParams(L, 2)
	if L.GetTop() >= 3 {
		params.Put(core.TransitionTime(L.CheckInt(3)))
	}
	return pushResult(L, s.send(lights, params))
}

// update_light(light, params) queues params on the update worker.
func (s *script) luaUpdateLight(L *lua.LState) int {
	light := L.CheckInt(1)
	params := checkParams(L, 2)
	if s.engine.updates == nil {
		L.RaiseError("update_light: no update worker available")
		return 0
	}
	s.track([]int{light})

	list := make([]core.Param, 0, len(params))
	for _, p := range params {
		list = append(list, p)
	}
	return pushResult(L, s.engine.updates.Submit(light, list...))
}

// get_light(light) -> table | nil, err
func (s *script) luaGetLight(L *lua.LState) int {
	light := L.CheckInt(1)
	st, err := s.engine.gw.State(s.ctx, light)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	t := L.NewTable()
	t.RawSetString("name", lua.LString(st.Name))
	t.RawSetString("reachable", lua.LBool(st.Reachable))
	t.RawSetString("colormode", lua.LString(st.ColorMode))
	for k, p := range st.Params {
		t.RawSetString(string(k), toLua(L, p))
	}
	L.Push(t)
	return 1
}

func (s *script) luaSleep(L *lua.LState) int {
	cancellableSleep(s.ctx, time.Duration(L.ToInt(1))*time.Millisecond)
	return 0
}

func (s *script) luaShouldStop(L *lua.LState) int {
	L.Push(lua.LBool(s.ctx.Err() != nil))
	return 1
}

// incandescent_fade(lights, start, final, ms) dims like an incandescent lamp
// on a dimmer from brightness start to final.
func (s *script) luaIncandescentFade(L *lua.LState) int {
	lights := checkLights(L, 1)
	start := L.CheckInt(2)
	final := L.CheckInt(3)
	fade := time.Duration(L.CheckInt(4)) * time.Millisecond
	if fade <= 0 {
		L.ArgError(4, "fade time must be positive")
		return 0
	}
	return pushResult(L, s.incandescentFade(lights, start, final, fade))
}

func (s *script) incandescentFade(lights []int, start, final int, fade time.Duration) error {
	step := int(minStepInterval / (100 * time.Millisecond))
	if err := s.send(lights, core.NewSet(core.On(true), core.Incandescent(start), core.TransitionTime(step))); err != nil {
		return err
	}

	steps := start - final
	if steps < 0 {
		steps = -steps
	}
	if steps == 0 {
		return nil
	}
	stepTime := fade / time.Duration(steps)
	direction := math.Copysign(1, float64(final-start))
	began := time.Now()

	for {
		elapsed := min(time.Since(began), fade)
		bri := start + int(math.Round(direction*float64(elapsed)/float64(stepTime)))
		if err := s.send(lights, core.NewSet(core.Incandescent(bri), core.TransitionTime(step))); err != nil {
			return err
		}
		if elapsed >= fade {
			return nil
		}
		next := stepTime - time.Since(began)%stepTime
		if cancellableSleep(s.ctx, max(minStepInterval, next)) {
			return nil
		}
	}
}

// send captures lights seen for the first time, if restoring is enabled,
// and sends params through the gateway.
func (s *script) send(lights []int, params core.Set) error {
	s.track(lights)
	_, err := s.engine.gw.Send(s.ctx, lights, params)
	return err
}

func (s *script) track(lights []int) {
	if !s.engine.opts.RestoreAfter {
		return
	}
	var fresh []int
	for _, l := range lights {
		if !s.snap.Has(l) && !contains(s.touched, l) {
			fresh = append(fresh, l)
		}
	}
	if len(fresh) == 0 {
		return
	}
	snap, err := snapshot.Capture(s.ctx, s.engine.gw, fresh, s.snap, snapshot.CaptureOptions{IncludeDefault: true})
	if err != nil {
		log.WithError(err).Warn("[Lua] Could not capture light state before changing it")
	}
	s.snap = snap
	s.touched = append(s.touched, fresh...)
}

// restore puts touched lights back once the script has ended.
func (s *script) restore() {
	if len(s.touched) == 0 {
		return
	}
	ctx := context.WithoutCancel(s.ctx)
	err := snapshot.RestoreWithRetry(ctx, s.engine.gw, s.touched, s.snap, 0, s.engine.opts.RestoreRetries, s.engine.opts.RestoreWait)
	if err != nil {
		log.WithError(err).Warn("[Lua] Could not restore light state")
	}
}

// cancellableSleep is a helper to sleep for a duration, but wake up immediately if the context is cancelled.
// It returns true if the context was cancelled during sleep.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}

func checkLights(L *lua.LState, n int) []int {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		return []int{int(v)}
	case *lua.LTable:
		var lights []int
		for i := 1; i <= v.Len(); i++ {
			num, ok := v.RawGetInt(i).(lua.LNumber)
			if !ok {
				L.ArgError(n, "lights must be numbers")
				return nil
			}
			lights = append(lights, int(num))
		}
		return lights
	}
	L.ArgError(n, "light id or list of light ids expected")
	return nil
}

func checkParams(L *lua.LState, n int) core.Set {
	tbl := L.CheckTable(n)
	values := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		values[k.String()] = fromLua(v)
	})
	params, err := core.ParseSet(values)
	if err != nil {
		L.ArgError(n, err.Error())
		return nil
	}
	return params
}

func fromLua(v lua.LValue) any {
	switch t := v.(type) {
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case *lua.LTable:
		var items []any
		for i := 1; i <= t.Len(); i++ {
			items = append(items, fromLua(t.RawGetInt(i)))
		}
		return items
	}
	return v.String()
}

func toLua(L *lua.LState, p core.Param) lua.LValue {
	switch v := p.(type) {
	case core.On:
		return lua.LBool(v)
	case core.Brightness:
		return lua.LNumber(v)
	case core.Hue:
		return lua.LNumber(v)
	case core.Saturation:
		return lua.LNumber(v)
	case core.XY:
		t := L.NewTable()
		t.Append(lua.LNumber(v.X))
		t.Append(lua.LNumber(v.Y))
		return t
	case core.ColorTemp:
		return lua.LNumber(v)
	case core.Kelvin:
		return lua.LNumber(v)
	case core.Incandescent:
		return lua.LNumber(v)
	case core.TransitionTime:
		return lua.LNumber(v)
	}
	panic(fmt.Sprintf("lua: unhandled parameter %T", p))
}

func pushResult(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// contains checks if a light is in a slice.
func contains(s []int, light int) bool {
	for _, v := range s {
		if v == light {
			return true
		}
	}
	return false
}
