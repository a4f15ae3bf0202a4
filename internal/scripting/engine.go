package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/core/event"
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/sim"
	"github.com/sweepgrid/server/internal/world"
)

// Engine wraps a single gopher-lua VM running level-design logic. Hooks run
// between frames, so labels and entities a script touches are settled
// before the next solver pass.
// Single-goroutine access only (game loop).
type Engine struct {
	vm     *lua.LState
	sim    *sim.Sim
	log    *zap.Logger
	errors int
}

// NewEngine creates a Lua engine bound to s and loads every script under
// scriptsDir/core.
func NewEngine(scriptsDir string, s *sim.Sim, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, sim: s, log: log}
	e.register()

	corePath := filepath.Join(scriptsDir, "core")
	if err := e.loadDir(corePath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load core scripts: %w", err)
	}
	return e, nil
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
		if err := e.LoadFile(path); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile runs one script, typically the level's own.
func (e *Engine) LoadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

// LoadString runs a chunk of Lua source.
func (e *Engine) LoadString(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load chunk: %w", err)
	}
	return nil
}

// Errors is the number of hook calls that raised.
func (e *Engine) Errors() int { return e.errors }

// OnInit calls on_init(level_name) if defined.
func (e *Engine) OnInit(level string) {
	e.callHook("on_init", lua.LString(level))
}

// OnFrame calls on_frame(frame) if defined.
func (e *Engine) OnFrame(frame uint64) {
	e.callHook("on_frame", lua.LNumber(frame))
}

// OnWallHit calls on_wall_hit(id, col, row) if defined.
func (e *Engine) OnWallHit(ev event.WallHit) {
	col, row := e.sim.Grid().ColRow(ev.Cell)
	e.callHook("on_wall_hit", lua.LNumber(ev.Entity), lua.LNumber(col), lua.LNumber(row))
}

// OnCollision calls on_collision(a, b, outcome) if defined.
func (e *Engine) OnCollision(ev event.EntityCollision) {
	e.callHook("on_collision", lua.LNumber(ev.A), lua.LNumber(ev.B), lua.LString(ev.Outcome.String()))
}

// OnDespawn calls on_despawn(id, reason) if defined.
func (e *Engine) OnDespawn(ev event.EntityDespawned) {
	e.callHook("on_despawn", lua.LNumber(ev.Entity), lua.LString(ev.Reason))
}

// HasHook reports whether the scripts define a global function name.
func (e *Engine) HasHook(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

func (e *Engine) callHook(name string, args ...lua.LValue) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.errors++
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
	}
}

// register installs the Go API. Coordinates are cells, velocities are
// tiles per second, ids are the numbers scripts got back from spawn.
func (e *Engine) register() {
	api := map[string]lua.LGFunction{
		"grid_size":    e.luaGridSize,
		"label":        e.luaLabel,
		"set_label":    e.luaSetLabel,
		"is_wall":      e.luaIsWall,
		"spawn":        e.luaSpawn,
		"despawn":      e.luaDespawn,
		"alive":        e.luaAlive,
		"velocity":     e.luaVelocity,
		"set_velocity": e.luaSetVelocity,
		"position":     e.luaPosition,
		"entity_count": e.luaEntityCount,
		"log":          e.luaLog,
	}
	for name, fn := range api {
		e.vm.SetGlobal(name, e.vm.NewFunction(fn))
	}
}

func (e *Engine) luaGridSize(L *lua.LState) int {
	g := e.sim.Grid()
	L.Push(lua.LNumber(g.Width()))
	L.Push(lua.LNumber(g.Height()))
	return 2
}

func (e *Engine) luaLabel(L *lua.LState) int {
	L.Push(lua.LString(e.sim.Grid().LabelAt(L.CheckInt(1), L.CheckInt(2)).String()))
	return 1
}

func (e *Engine) luaSetLabel(L *lua.LState) int {
	col, row := L.CheckInt(1), L.CheckInt(2)
	label, err := world.ParseLabel(L.CheckString(3))
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}
	g := e.sim.Grid()
	if !g.InBounds(col, row) {
		L.ArgError(1, fmt.Sprintf("cell %d,%d outside grid", col, row))
		return 0
	}
	g.SetLabel(g.Index(col, row), label)
	return 0
}

func (e *Engine) luaIsWall(L *lua.LState) int {
	L.Push(lua.LBool(e.sim.Grid().WallAt(L.CheckInt(1), L.CheckInt(2))))
	return 1
}

// spawn(kind, col, row [, size [, vx, vy]]) -> id | nil, err
func (e *Engine) luaSpawn(L *lua.LState) int {
	kind, err := ecs.ParseKind(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	col, row := L.CheckInt(2), L.CheckInt(3)
	size := float32(L.OptNumber(4, 1))
	v := geom.V(float32(L.OptNumber(5, 0)), float32(L.OptNumber(6, 0)))
	id, err := e.sim.SpawnInCell(kind, col, row, size, v)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LNumber(id))
	return 1
}

func (e *Engine) luaDespawn(L *lua.LState) int {
	L.Push(lua.LBool(e.sim.Despawn(checkID(L, 1), event.ReasonScript)))
	return 1
}

func (e *Engine) luaAlive(L *lua.LState) int {
	L.Push(lua.LBool(e.sim.Store().Alive(checkID(L, 1))))
	return 1
}

func (e *Engine) luaVelocity(L *lua.LState) int {
	id := checkID(L, 1)
	if !e.sim.Store().Alive(id) {
		return 0
	}
	v := e.sim.WorldToTiles(e.sim.Store().Velocity(id))
	L.Push(lua.LNumber(v.X))
	L.Push(lua.LNumber(v.Y))
	return 2
}

func (e *Engine) luaSetVelocity(L *lua.LState) int {
	id := checkID(L, 1)
	v := geom.V(float32(L.CheckNumber(2)), float32(L.CheckNumber(3)))
	if err := e.sim.SetVelocity(id, e.sim.TilesToWorld(v)); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// position(id) -> col, row of the hitbox's top-left corner
func (e *Engine) luaPosition(L *lua.LState) int {
	id := checkID(L, 1)
	if !e.sim.Store().Alive(id) {
		return 0
	}
	tl := e.sim.Store().Hitbox(id)[geom.TopLeft]
	g := e.sim.Grid()
	L.Push(lua.LNumber(g.Column(tl.X)))
	L.Push(lua.LNumber(g.Row(tl.Y)))
	return 2
}

func (e *Engine) luaEntityCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.sim.Store().Len()))
	return 1
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

func checkID(L *lua.LState, n int) ecs.EntityID {
	v := L.CheckInt(n)
	if v < 0 {
		L.ArgError(n, "negative entity id")
	}
	return ecs.EntityID(v)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
