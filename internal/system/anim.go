package system

import (
	"time"

	"github.com/sweepgrid/server/internal/core/ecs"
	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/sim"
)

// AnimationSystem advances the sprite frame of moving entities every
// interval ticks; stationary entities rest on frame 0. Phase 4 (Policy).
type AnimationSystem struct {
	sim       *sim.Sim
	tickCount int
	interval  int
	frames    uint16 // frames per cycle
}

func NewAnimationSystem(s *sim.Sim, intervalTicks int, frames uint16) *AnimationSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	if frames < 1 {
		frames = 1
	}
	return &AnimationSystem{sim: s, interval: intervalTicks, frames: frames}
}

func (s *AnimationSystem) Phase() coresys.Phase { return coresys.PhasePolicy }

func (s *AnimationSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	st := s.sim.Store()
	st.Each(func(id ecs.EntityID) {
		if st.Velocity(id).IsZero() {
			st.SetFrame(id, 0)
			return
		}
		st.SetFrame(id, (st.Frame(id)+1)%s.frames)
	})
}
