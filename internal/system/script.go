package system

import (
	"time"

	"github.com/sweepgrid/server/internal/core/event"
	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/scripting"
	"github.com/sweepgrid/server/internal/sim"
)

// ScriptSystem runs the level's on_frame hook before the solver so label
// and velocity edits apply to the coming step. Phase 2 (Script).
type ScriptSystem struct {
	engine *scripting.Engine
	sim    *sim.Sim
}

// NewScriptSystem also routes solver events to the engine's hooks.
func NewScriptSystem(engine *scripting.Engine, s *sim.Sim) *ScriptSystem {
	bus := s.Bus()
	event.Subscribe(bus, engine.OnWallHit)
	event.Subscribe(bus, engine.OnCollision)
	event.Subscribe(bus, engine.OnDespawn)
	return &ScriptSystem{engine: engine, sim: s}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseScript }

func (s *ScriptSystem) Update(_ time.Duration) {
	s.engine.OnFrame(s.sim.Frame() + 1)
}
