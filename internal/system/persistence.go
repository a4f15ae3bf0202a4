package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/persist"
	"github.com/sweepgrid/server/internal/sim"
)

// StatsSubmitter accepts aggregated rows without blocking.
type StatsSubmitter interface {
	Submit(row persist.FrameStatsRow) bool
}

// PersistenceSystem periodically hands the solver's aggregates for the
// elapsed interval to the stats sink. Phase 6 (Persist).
type PersistenceSystem struct {
	sim       *sim.Sim
	sink      StatsSubmitter
	name      string
	log       *zap.Logger
	tickCount int
	interval  int // flush every N ticks
	prev      sim.Stats
}

func NewPersistenceSystem(s *sim.Sim, sink StatsSubmitter, name string, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		sim:      s,
		sink:     sink,
		name:     name,
		log:      log,
		interval: intervalTicks,
		prev:     s.Stats(),
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.Flush()
}

// Flush submits whatever accumulated since the last flush. Called for
// graceful shutdown so the final partial interval is kept.
func (s *PersistenceSystem) Flush() {
	cur := s.sim.Stats()
	d := cur.Sub(s.prev)
	if d.Frames == 0 {
		return
	}
	s.prev = cur
	row := persist.FrameStatsRow{
		RecordedAt:     time.Now(),
		SimName:        s.name,
		Frames:         int64(d.Frames),
		Iterations:     int64(d.Iterations),
		CapHits:        int64(d.CapHits),
		DroppedSeconds: d.Dropped,
		WallHits:       int64(d.WallHits),
		Collisions:     int64(d.Collisions),
		Overflows:      int64(d.Overflows),
		Despawned:      int64(d.Despawned),
		Entities:       int32(s.sim.Store().Len()),
	}
	if !s.sink.Submit(row) {
		s.log.Warn("frame stats dropped, sink busy", zap.Int64("frames", row.Frames))
	}
}
