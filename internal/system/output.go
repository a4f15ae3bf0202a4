package system

import (
	"time"

	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/handler"
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/sim"
)

// OutputSystem broadcasts the frame's snapshot, resends the layout when a
// label changed, and flushes every session's buffered packets to its
// writer goroutine. Phase 5 (Output).
type OutputSystem struct {
	sim         *sim.Sim
	store       *net.SessionStore
	gridVersion uint64
	rows        []sim.EntityState
}

func NewOutputSystem(s *sim.Sim, store *net.SessionStore) *OutputSystem {
	return &OutputSystem{sim: s, store: store, gridVersion: s.Grid().Version()}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	if s.store.Len() == 0 {
		return
	}
	if v := s.sim.Grid().Version(); v != s.gridVersion {
		s.gridVersion = v
		handler.Broadcast(s.store, handler.GridPacket(s.sim))
	}
	var snap []byte
	snap, s.rows = handler.SnapshotPacket(s.sim, s.rows)
	handler.Broadcast(s.store, snap)

	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}
