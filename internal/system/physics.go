package system

import (
	"time"

	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/sim"
)

// PhysicsSystem advances the simulation by the tick's elapsed time.
// Phase 3 (Physics).
type PhysicsSystem struct {
	sim *sim.Sim
}

func NewPhysicsSystem(s *sim.Sim) *PhysicsSystem {
	return &PhysicsSystem{sim: s}
}

func (s *PhysicsSystem) Phase() coresys.Phase { return coresys.PhasePhysics }

func (s *PhysicsSystem) Update(dt time.Duration) {
	s.sim.Step(float32(dt.Seconds()))
}
