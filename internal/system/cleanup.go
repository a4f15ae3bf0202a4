package system

import (
	"time"

	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/sim"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 7 (Cleanup).
type CleanupSystem struct {
	sim *sim.Sim
}

func NewCleanupSystem(s *sim.Sim) *CleanupSystem {
	return &CleanupSystem{sim: s}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.sim.Flush()
}
