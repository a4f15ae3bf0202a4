// Package collision implements the swept solver: per frame it finds the
// earliest contact between moving boxes (or a box and a wall cell), advances
// everything to that instant, resolves the contact and repeats until the
// frame time or the chain-iteration cap is used up.
package collision

import (
	"errors"
	"sort"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/world"
)

type Options struct {
	ChainCap int // sub-steps allowed per frame
	// RestoreVelocity puts every entity's pre-frame velocity back once the
	// frame is resolved. When false, stops and merges persist.
	RestoreVelocity bool
	Epsilon         float32
}

// Result summarises one Step.
type Result struct {
	Iterations int
	CapHit     bool
	Dropped    float32 // frame seconds discarded because the cap was reached
	Overflows  []world.Overflow
	// Contacts aliases solver scratch and is valid until the next Step.
	Contacts []Contact
}

// Count returns how many contacts resolved with outcome o.
func (r Result) Count(o Outcome) int {
	n := 0
	for _, c := range r.Contacts {
		if c.Outcome == o {
			n++
		}
	}
	return n
}

// Solver holds the per-frame scratch state. It owns nothing it is given;
// grid, store and buckets belong to the caller.
// Accessed only from the game loop goroutine; no locks.
type Solver struct {
	grid    *world.Grid
	store   *ecs.Store
	buckets *world.Buckets
	opts    Options
	log     *zap.Logger
	snapTol float32

	movers   []ecs.EntityID
	outside  []ecs.EntityID // off-grid, possibly absent from every bucket
	records  []Record
	pairs    map[uint64]struct{}
	saved    []geom.Vec2
	contacts []Contact
}

func NewSolver(grid *world.Grid, store *ecs.Store, buckets *world.Buckets, opts Options, log *zap.Logger) *Solver {
	if opts.ChainCap < 1 {
		opts.ChainCap = 2 * grid.Width()
	}
	return &Solver{
		grid:    grid,
		store:   store,
		buckets: buckets,
		opts:    opts,
		log:     log,
		snapTol: 1e-3 * math32.Max(grid.TileWidth(), grid.TileHeight()),
		pairs:   make(map[uint64]struct{}, 64),
		saved:   make([]geom.Vec2, store.Cap()),
	}
}

func (s *Solver) Options() Options { return s.opts }

// Step advances the simulation by dt seconds.
func (s *Solver) Step(dt float32) Result {
	var res Result
	s.contacts = s.contacts[:0]
	if !(dt > 0) || math32.IsInf(dt, 1) {
		dt = 0
	}
	if s.opts.RestoreVelocity {
		s.store.Each(func(id ecs.EntityID) { s.saved[id] = s.store.Velocity(id) })
	}

	s.rebuild(&res, s.buckets.Rebuild())
	remaining := dt
	for remaining > 0 {
		if res.Iterations >= s.opts.ChainCap {
			res.CapHit = true
			res.Dropped = remaining
			s.log.Debug("chain cap reached",
				zap.Int("iterations", res.Iterations),
				zap.Float32("dropped", remaining),
			)
			break
		}
		res.Iterations++

		s.collect(remaining)
		if len(s.records) == 0 {
			s.refresh(&res, s.advance(remaining))
			break
		}
		tmin := s.records[0].Time
		moved := s.advance(tmin)
		s.resolve(tmin)
		remaining -= tmin
		s.refresh(&res, moved)
	}

	if s.opts.RestoreVelocity {
		s.store.Each(func(id ecs.EntityID) { s.store.SetVelocity(id, s.saved[id]) })
	}
	res.Contacts = s.contacts
	return res
}

// collect fills s.records, sorted, with every contact predicted within
// the remaining frame time.
func (s *Solver) collect(remaining float32) {
	s.records = s.records[:0]
	clear(s.pairs)
	s.movers = s.movers[:0]
	s.outside = s.outside[:0]
	var reach float32
	s.store.Each(func(id ecs.EntityID) {
		if s.buckets.OffGrid(id) {
			s.outside = append(s.outside, id)
		}
		v := s.store.Velocity(id)
		if v.IsZero() {
			return
		}
		s.movers = append(s.movers, id)
		reach = math32.Max(reach, math32.Max(math32.Abs(v.X), math32.Abs(v.Y))*remaining)
	})

	eps := s.opts.Epsilon
	for _, id := range s.movers {
		q := s.store.Hitbox(id)
		v := s.store.Velocity(id)

		if _, hit, ok := ClipSweep(s.grid, q, v, remaining, eps); ok {
			s.records = append(s.records, Record{Entity: id, Other: WallTarget(hit.Cell), Impact: hit.Impact})
		}

		for _, other := range s.outside {
			s.pair(id, other, q, v, remaining)
		}
		// Widen by the fastest mover's reach so boxes crossing into the
		// sweep from outside it are still found.
		span, ok := spanOf(s.grid, q.Sweep(v.Scale(remaining)), reach)
		if !ok {
			continue
		}
		for row := span.r0; row <= span.r1; row++ {
			for col := span.c0; col <= span.c1; col++ {
				for _, other := range s.buckets.Bucket(s.grid.Index(col, row)) {
					s.pair(id, other, q, v, remaining)
				}
			}
		}
	}
	sort.Slice(s.records, func(i, j int) bool { return s.records[i].less(s.records[j]) })
}

func (s *Solver) pair(id, other ecs.EntityID, q geom.Quad, v geom.Vec2, remaining float32) {
	if other == id || !s.store.Alive(other) {
		return
	}
	vo := s.store.Velocity(other)
	if vo == v {
		return
	}
	key := pairKey(id, other)
	if _, dup := s.pairs[key]; dup {
		return
	}
	s.pairs[key] = struct{}{}
	hit, ok := TimeOfImpact(q, v, s.store.Hitbox(other), vo, remaining, s.opts.Epsilon)
	if !ok {
		return
	}
	s.records = append(s.records, Record{Entity: id, Other: EntityTarget(other), Impact: hit})
}

func pairKey(a, b ecs.EntityID) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}

// advance moves every live entity by v*t and returns the ids that moved.
func (s *Solver) advance(t float32) []ecs.EntityID {
	s.movers = s.movers[:0]
	if t <= 0 {
		return s.movers
	}
	s.store.Each(func(id ecs.EntityID) {
		v := s.store.Velocity(id)
		if v.IsZero() {
			return
		}
		s.store.Offset(id, v.Scale(t))
		s.movers = append(s.movers, id)
	})
	return s.movers
}

// refresh brings the buckets up to date with the advanced positions.
func (s *Solver) refresh(res *Result, moved []ecs.EntityID) {
	switch len(moved) {
	case 0:
	case 1:
		id := moved[0]
		s.rebuild(res, s.buckets.RebuildOne(id, s.buckets.FirstCell(id)))
	default:
		s.rebuild(res, s.buckets.Rebuild())
	}
}

func (s *Solver) rebuild(res *Result, err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, world.ErrBucketOverflow) {
		s.log.Error("bucket rebuild", zap.Error(err))
		return
	}
	res.Overflows = append(res.Overflows, s.buckets.Overflows()...)
}

// simultaneous is the time window within which records count as the same
// event.
const simultaneous = 1e-6

// resolve applies every record that happens at tmin.
func (s *Solver) resolve(tmin float32) {
	for _, r := range s.records {
		if r.Time > tmin+simultaneous {
			break
		}
		if cell, ok := r.Other.Cell(); ok {
			s.hitWall(r, cell)
			continue
		}
		other, _ := r.Other.Entity()
		s.hitEntity(r, other)
	}
}

func (s *Solver) hitWall(r Record, cell int) {
	id := r.Entity
	v := s.store.Velocity(id)
	if v.IsZero() {
		return
	}
	box := s.grid.CellBounds(cell)
	s.snapMover(id, v, box, r.Impact)
	s.store.SetVelocity(id, geom.Vec2{})
	s.contacts = append(s.contacts, Contact{
		Record:  r,
		Outcome: OutcomeWall,
		Stopped: []ecs.EntityID{id},
	})
}

func (s *Solver) hitEntity(r Record, b ecs.EntityID) {
	a := r.Entity
	va, vb := s.store.Velocity(a), s.store.Velocity(b)
	if va == vb || !s.approaching(a, b, va, vb, r.Impact) {
		return
	}
	c := Contact{Record: r}

	switch {
	case vb.IsZero() || va.IsZero():
		mover, obstacle, v := a, b, va
		if va.IsZero() {
			mover, obstacle, v = b, a, vb
		}
		s.snapMover(mover, v, s.store.Hitbox(obstacle), r.Impact)
		s.store.SetVelocity(mover, geom.Vec2{})
		c.Outcome = OutcomeStop
		c.Stopped = []ecs.EntityID{mover}

	case r.Tie:
		winner, loser := min(a, b), max(a, b)
		s.store.SetVelocity(loser, geom.Vec2{})
		c.Outcome = OutcomeYield
		c.RightOfWay, c.HasRightOfWay = winner, true
		c.Stopped = []ecs.EntityID{loser}

	case va.Axis(r.Axis) != 0 && vb.Axis(r.Axis) != 0:
		mean := va.Mean(vb)
		s.store.SetVelocity(a, mean)
		s.store.SetVelocity(b, mean)
		lo, hi := min(a, b), max(a, b)
		s.snapAxis(hi, s.store.Hitbox(lo), r.Axis)
		c.Outcome = OutcomeMerge

	default:
		// Only one participant moves along the contact axis: it ran into
		// the other's side and yields.
		yielder, keeper := a, b
		if va.Axis(r.Axis) == 0 {
			yielder, keeper = b, a
		}
		s.snapAxis(yielder, s.store.Hitbox(keeper), r.Axis)
		s.store.SetVelocity(yielder, geom.Vec2{})
		c.Outcome = OutcomeYield
		c.RightOfWay, c.HasRightOfWay = keeper, true
		c.Stopped = []ecs.EntityID{yielder}
	}
	s.contacts = append(s.contacts, c)
}

// approaching reports whether a and b still close on the contact axis
// given their current velocities. An earlier record at the same instant
// may already have stopped one of them.
func (s *Solver) approaching(a, b ecs.EntityID, va, vb geom.Vec2, hit Impact) bool {
	qa, qb := s.store.Hitbox(a), s.store.Hitbox(b)
	rel := va.Sub(vb)
	closing := func(axis geom.Axis) bool {
		if qa.Min(axis) < qb.Min(axis) {
			return rel.Axis(axis) > 0
		}
		return rel.Axis(axis) < 0
	}
	if hit.Tie {
		return closing(geom.AxisX) || closing(geom.AxisY)
	}
	return closing(hit.Axis)
}

// snapMover lines a stopped mover's leading edge up with box on the
// contact axis, or both axes for a corner contact.
func (s *Solver) snapMover(id ecs.EntityID, v geom.Vec2, box geom.Quad, hit Impact) {
	if !hit.Tie {
		s.snapAxis(id, box, hit.Axis)
		return
	}
	for _, axis := range [...]geom.Axis{geom.AxisX, geom.AxisY} {
		if v.Axis(axis) != 0 {
			s.snapAxis(id, box, axis)
		}
	}
}

// snapAxis moves id along axis so it exactly touches box on the near side.
// Corrections larger than the float tolerance are left alone.
func (s *Solver) snapAxis(id ecs.EntityID, box geom.Quad, axis geom.Axis) {
	q := s.store.Hitbox(id)
	var gap float32
	if q.Min(axis) < box.Min(axis) {
		gap = box.Min(axis) - q.Max(axis)
	} else {
		gap = box.Max(axis) - q.Min(axis)
	}
	if gap == 0 || math32.Abs(gap) > s.snapTol {
		return
	}
	s.store.Offset(id, geom.Vec2{}.WithAxis(axis, gap))
}
