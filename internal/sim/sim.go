// Package sim ties the grid, entity store, spatial hash and solver into one
// steppable simulation and publishes what happened on the event bus.
package sim

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/sweepgrid/server/internal/collision"
	"github.com/sweepgrid/server/internal/config"
	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/core/event"
	"github.com/sweepgrid/server/internal/data"
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/world"
)

// ReasonLevel is the despawn reason used when a new level replaces the
// current population.
const ReasonLevel = "level"

// Owner ties an entity to the network session steering it.
type Owner struct {
	Session uint64
	Name    string
}

// Stats are lifetime counters. Callers wanting per-interval figures diff
// two snapshots.
type Stats struct {
	Frames     uint64
	Iterations uint64
	CapHits    uint64
	WallHits   uint64
	Collisions uint64
	Overflows  uint64
	Spawned    uint64
	Despawned  uint64
	Dropped    float64 // seconds
}

// Sub returns s - prev.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Frames:     s.Frames - prev.Frames,
		Iterations: s.Iterations - prev.Iterations,
		CapHits:    s.CapHits - prev.CapHits,
		WallHits:   s.WallHits - prev.WallHits,
		Collisions: s.Collisions - prev.Collisions,
		Overflows:  s.Overflows - prev.Overflows,
		Spawned:    s.Spawned - prev.Spawned,
		Despawned:  s.Despawned - prev.Despawned,
		Dropped:    s.Dropped - prev.Dropped,
	}
}

// EntityState is one row of a snapshot.
type EntityState struct {
	ID       ecs.EntityID
	Kind     ecs.Kind
	Frame    uint16
	Hitbox   geom.Quad
	Velocity geom.Vec2
}

// Sim is the whole simulation state.
// Accessed only from the game loop goroutine; no locks.
type Sim struct {
	cfg     *config.Config
	grid    *world.Grid
	world   *ecs.World
	buckets *world.Buckets
	solver  *collision.Solver
	owners  *ecs.Components[Owner]
	bus     *event.Bus
	log     *zap.Logger

	maxDT   float32
	offGrid string
	frame   uint64
	stats   Stats
	last    collision.Result
	reasons map[ecs.EntityID]string
	scratch []ecs.EntityID

	released  map[ecs.EntityID]Owner // owners of queued entities, read at Flush
	onRelease []func(ecs.EntityID, Owner)
}

func New(cfg *config.Config, bus *event.Bus, log *zap.Logger) *Sim {
	g := world.NewGrid(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.SurfaceWidth, cfg.Grid.SurfaceHeight)
	w := ecs.NewWorld(cfg.Entities.Capacity)
	b := world.NewBuckets(g, w.Store(), cfg.Grid.BucketCapacity)
	owners := ecs.NewComponents[Owner]()
	w.Registry().Register(owners)

	opts := collision.Options{
		ChainCap:        cfg.ChainCap(),
		RestoreVelocity: cfg.Solver.RestoreVelocity,
		Epsilon:         cfg.Solver.Epsilon,
	}
	return &Sim{
		cfg:     cfg,
		grid:    g,
		world:   w,
		buckets: b,
		solver:  collision.NewSolver(g, w.Store(), b, opts, log.Named("solver")),
		owners:  owners,
		bus:     bus,
		log:     log,
		maxDT:   cfg.Simulation.MaxFrameSeconds,
		offGrid: cfg.Policy.OffGrid,
		reasons: make(map[ecs.EntityID]string),

		released: make(map[ecs.EntityID]Owner),
	}
}

func (s *Sim) Grid() *world.Grid { return s.grid }
func (s *Sim) Store() *ecs.Store { return s.world.Store() }
func (s *Sim) World() *ecs.World { return s.world }
func (s *Sim) Buckets() *world.Buckets { return s.buckets }
func (s *Sim) Bus() *event.Bus { return s.bus }
func (s *Sim) Frame() uint64 { return s.frame }
func (s *Sim) Stats() Stats { return s.stats }
func (s *Sim) Last() collision.Result { return s.last }
func (s *Sim) Owners() *ecs.Components[Owner] { return s.owners }

// OwnedBy reports whether id is live and steered by session.
func (s *Sim) OwnedBy(id ecs.EntityID, session uint64) bool {
	o, ok := s.owners.Get(id)
	return ok && o.Session == session && s.world.Alive(id)
}

// OnRelease registers fn to run inside Flush for every freed entity that
// had an Owner, before any later spawn can reuse the slot.
func (s *Sim) OnRelease(fn func(ecs.EntityID, Owner)) {
	s.onRelease = append(s.onRelease, fn)
}

// ClampFrame maps a raw frame time onto [0, max_frame_seconds]. NaN and
// negative values become 0.
func (s *Sim) ClampFrame(dt float32) float32 {
	if !(dt > 0) {
		return 0
	}
	return math32.Min(dt, s.maxDT)
}

// Step runs one frame: solve, publish events, then apply the off-grid
// policy. Entities removed by the policy are freed on the next Flush.
func (s *Sim) Step(dt float32) collision.Result {
	dt = s.ClampFrame(dt)
	s.frame++
	res := s.solver.Step(dt)
	s.last = res

	s.stats.Frames++
	s.stats.Iterations += uint64(res.Iterations)
	for _, c := range res.Contacts {
		if cell, ok := c.Other.Cell(); ok {
			s.stats.WallHits++
			event.Emit(s.bus, event.WallHit{Entity: c.Entity, Cell: cell, Time: c.Time})
			continue
		}
		other, _ := c.Other.Entity()
		s.stats.Collisions++
		event.Emit(s.bus, event.EntityCollision{
			A:             c.Entity,
			B:             other,
			Time:          c.Time,
			Outcome:       c.Outcome,
			RightOfWay:    c.RightOfWay,
			HasRightOfWay: c.HasRightOfWay,
		})
	}
	if res.CapHit {
		s.stats.CapHits++
		s.stats.Dropped += float64(res.Dropped)
		event.Emit(s.bus, event.ChainCapReached{Frame: s.frame, Iterations: res.Iterations, Dropped: res.Dropped})
	}
	if n := len(res.Overflows); n > 0 {
		s.stats.Overflows += uint64(n)
		s.log.Warn("bucket overflow",
			zap.Uint64("frame", s.frame),
			zap.Int("corners", n),
			zap.Int("capacity", s.buckets.Capacity()),
		)
		for _, o := range res.Overflows {
			event.Emit(s.bus, event.BucketOverflow{Cell: o.Cell, Entity: o.Entity})
		}
	}

	if s.offGrid == config.OffGridDelete {
		s.cullOffGrid()
	}
	return res
}

// cullOffGrid queues every entity whose hitbox no longer overlaps the grid
// at all. Entities straddling the border are flagged off-grid by the
// buckets but stay alive.
func (s *Sim) cullOffGrid() {
	ext := s.grid.Extent()
	surface := geom.Rect(0, 0, ext.X, ext.Y)
	st := s.world.Store()
	s.scratch = st.AppendAlive(s.scratch[:0])
	for _, id := range s.scratch {
		if s.buckets.OffGrid(id) && !st.Hitbox(id).Overlaps(surface) {
			s.Despawn(id, event.ReasonOffGrid)
		}
	}
}

// Spawn adds an entity with the given hitbox and velocity in world units.
func (s *Sim) Spawn(kind ecs.Kind, hitbox geom.Quad, v geom.Vec2) (ecs.EntityID, error) {
	id, err := s.world.Store().Spawn(kind, hitbox)
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", kind, err)
	}
	s.world.Store().SetVelocity(id, v)
	s.stats.Spawned++
	event.Emit(s.bus, event.EntitySpawned{Entity: id, Kind: kind})
	return id, nil
}

// SpawnInCell centres a square of size tiles (0,1] in a cell. The sprite
// covers the whole tile. v is in tiles per second.
func (s *Sim) SpawnInCell(kind ecs.Kind, col, row int, size float32, v geom.Vec2) (ecs.EntityID, error) {
	if !s.grid.InBounds(col, row) {
		return 0, fmt.Errorf("spawn %s: cell %d,%d outside grid", kind, col, row)
	}
	// Larger boxes would span more cells than RebuildOne clears.
	if !(size > 0 && size <= 1) {
		return 0, fmt.Errorf("spawn %s: size %g outside (0,1] tiles", kind, size)
	}
	tw, th := s.grid.TileWidth(), s.grid.TileHeight()
	x, y := s.grid.ColumnEdge(col), s.grid.RowEdge(row)
	w, h := tw*size, th*size
	id, err := s.Spawn(kind, geom.Rect(x+(tw-w)/2, y+(th-h)/2, w, h), s.TilesToWorld(v))
	if err != nil {
		return 0, err
	}
	s.world.Store().SetSprite(id, geom.Rect(x, y, tw, th))
	return id, nil
}

// TilesToWorld converts a tiles-per-second velocity to world units.
func (s *Sim) TilesToWorld(v geom.Vec2) geom.Vec2 {
	return geom.V(v.X*s.grid.TileWidth(), v.Y*s.grid.TileHeight())
}

// WorldToTiles is the inverse of TilesToWorld.
func (s *Sim) WorldToTiles(v geom.Vec2) geom.Vec2 {
	return geom.V(v.X/s.grid.TileWidth(), v.Y/s.grid.TileHeight())
}

// SetVelocity sets a live entity's velocity in world units.
func (s *Sim) SetVelocity(id ecs.EntityID, v geom.Vec2) error {
	if !s.world.Alive(id) {
		return fmt.Errorf("set velocity %s: %w", id, ecs.ErrInvalidID)
	}
	if !v.Finite() {
		return fmt.Errorf("set velocity %s: non-finite %v", id, v)
	}
	s.world.Store().SetVelocity(id, v)
	return nil
}

// Despawn queues a live entity for removal at the next Flush.
func (s *Sim) Despawn(id ecs.EntityID, reason string) bool {
	if !s.world.Alive(id) {
		return false
	}
	if _, queued := s.reasons[id]; queued {
		return true
	}
	s.reasons[id] = reason
	s.world.MarkForDestruction(id)
	return true
}

// Flush frees every queued entity and publishes EntityDespawned for each.
// Owners are captured first because freeing drops the side table entry.
func (s *Sim) Flush() []ecs.EntityID {
	for id := range s.reasons {
		if o, ok := s.owners.Get(id); ok {
			s.released[id] = *o
		}
	}
	freed := s.world.FlushDestroyQueue()
	for _, id := range freed {
		s.stats.Despawned++
		ev := event.EntityDespawned{Entity: id, Reason: s.reasons[id]}
		if o, ok := s.released[id]; ok {
			ev.Session, ev.Owned = o.Session, true
			for _, fn := range s.onRelease {
				fn(id, o)
			}
		}
		event.Emit(s.bus, ev)
	}
	clear(s.reasons)
	clear(s.released)
	return freed
}

// Apply replaces labels and population with a level's.
func (s *Sim) Apply(lvl *data.Level) error {
	if err := lvl.Fit(s.grid); err != nil {
		return err
	}
	for i, l := range lvl.Labels() {
		s.grid.SetLabel(i, l)
	}
	s.world.Store().Each(func(id ecs.EntityID) { s.Despawn(id, ReasonLevel) })
	s.Flush()

	for i, sp := range lvl.Spawns {
		kind, err := ecs.ParseKind(sp.Kind)
		if err != nil {
			return fmt.Errorf("level %q spawn %d: %w", lvl.Name, i, err)
		}
		v := geom.V(sp.Velocity[0], sp.Velocity[1])
		if _, err := s.SpawnInCell(kind, sp.Col, sp.Row, sp.SpawnSize(), v); err != nil {
			return fmt.Errorf("level %q spawn %d: %w", lvl.Name, i, err)
		}
	}
	s.log.Info("level applied",
		zap.String("level", lvl.Name),
		zap.Int("entities", s.world.Store().Len()),
	)
	return nil
}

// Snapshot appends the state of every live entity in id order.
func (s *Sim) Snapshot(buf []EntityState) []EntityState {
	st := s.world.Store()
	st.Each(func(id ecs.EntityID) {
		buf = append(buf, EntityState{
			ID:       id,
			Kind:     st.Kind(id),
			Frame:    st.Frame(id),
			Hitbox:   st.Hitbox(id),
			Velocity: st.Velocity(id),
		})
	})
	return buf
}
