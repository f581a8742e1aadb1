package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the tuning scripts.
// Single-goroutine access only (frame loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. Missing directories are skipped so a run without scripts falls
// back to built-in values.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, sub := range []string{"core", "steering"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			e.vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromString builds an engine from a single chunk of Lua source.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// SteeringWeights scales the flocking behaviours of one faction.
type SteeringWeights struct {
	Separation float64
	Alignment  float64
	Cohesion   float64
	Pursuit    float64
}

// DefaultSteeringWeights is used when no script provides weights.
var DefaultSteeringWeights = SteeringWeights{
	Separation: 1.5,
	Alignment:  1.0,
	Cohesion:   1.0,
	Pursuit:    0.5,
}

// GetSteeringWeights calls the Lua steering_weights(faction, fleet)
// function. Fields the script leaves out keep their default.
func (e *Engine) GetSteeringWeights(faction int, fleet string) SteeringWeights {
	w := DefaultSteeringWeights
	fn := e.vm.GetGlobal("steering_weights")
	if fn == lua.LNil {
		e.log.Debug("lua function steering_weights not found, using defaults")
		return w
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(faction), lua.LString(fleet)); err != nil {
		e.log.Error("lua steering_weights error", zap.Error(err))
		return w
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua steering_weights returned non-table", zap.Int("faction", faction))
		return w
	}
	w.Separation = lFloat(rt, "separation", w.Separation)
	w.Alignment = lFloat(rt, "alignment", w.Alignment)
	w.Cohesion = lFloat(rt, "cohesion", w.Cohesion)
	w.Pursuit = lFloat(rt, "pursuit", w.Pursuit)
	return w
}

// CalcSpawnQuota calls the optional Lua spawn_quota(fleet, alive, population)
// hook, letting scripts throttle or boost respawning. Without the hook the
// fleet is topped up to its population.
func (e *Engine) CalcSpawnQuota(fleet string, alive, population int) int {
	fn := e.vm.GetGlobal("spawn_quota")
	if fn == lua.LNil {
		return max(population-alive, 0)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(fleet), lua.LNumber(alive), lua.LNumber(population)); err != nil {
		e.log.Error("lua spawn_quota error", zap.String("fleet", fleet), zap.Error(err))
		return max(population-alive, 0)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return max(int(lua.LVAsNumber(result)), 0)
}

// --- Lua helpers ---

// lFloat reads a number field from a Lua table, def when absent.
func lFloat(t *lua.LTable, key string, def float64) float64 {
	v := t.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
