package world

import (
	"errors"
	"fmt"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/geom"
)

var ErrBucketOverflow = errors.New("bucket overflow")

// CellCoord addresses a cell by column and row. Coordinates may lie outside
// the grid; callers check with Grid.InBounds.
type CellCoord struct {
	Col, Row int
}

// Overflow records a corner that could not be placed because its bucket
// was already at capacity.
type Overflow struct {
	Cell   int
	Entity ecs.EntityID
}

// Buckets is the tile-indexed spatial hash. Each cell owns a fixed-size
// slice of entity ids; an id is present iff at least one of the entity's
// four hitbox corners lies in that cell. Entries are packed from the front
// so readers stop at the count.
// Accessed only from the game loop goroutine; no locks.
type Buckets struct {
	grid  *Grid
	store *ecs.Store
	cap   int

	ids    []ecs.EntityID // cell*cap + slot
	counts []int

	offGrid []bool
	first   []CellCoord // top-left corner cell at last insertion

	overflows []Overflow // current frame
	dropped   int        // lifetime total
}

func NewBuckets(grid *Grid, store *ecs.Store, capacity int) *Buckets {
	return &Buckets{
		grid:    grid,
		store:   store,
		cap:     capacity,
		ids:     make([]ecs.EntityID, grid.Cells()*capacity),
		counts:  make([]int, grid.Cells()),
		offGrid: make([]bool, store.Cap()),
		first:   make([]CellCoord, store.Cap()),
	}
}

func (b *Buckets) Capacity() int { return b.cap }

// Bucket returns the packed ids in a cell. The slice aliases internal
// storage and is valid until the next rebuild.
func (b *Buckets) Bucket(cell int) []ecs.EntityID {
	base := cell * b.cap
	return b.ids[base : base+b.counts[cell]]
}

func (b *Buckets) Contains(cell int, id ecs.EntityID) bool {
	for _, e := range b.Bucket(cell) {
		if e == id {
			return true
		}
	}
	return false
}

// OffGrid reports whether any corner of id fell outside the grid at the
// last rebuild that touched it.
func (b *Buckets) OffGrid(id ecs.EntityID) bool { return b.offGrid[id] }

// FirstCell is the cell of id's top-left corner at its last insertion.
func (b *Buckets) FirstCell(id ecs.EntityID) CellCoord { return b.first[id] }

// Overflows lists corners dropped by the most recent rebuild.
func (b *Buckets) Overflows() []Overflow { return b.overflows }

// Dropped is the lifetime count of corners dropped to overflow.
func (b *Buckets) Dropped() int { return b.dropped }

// Rebuild clears every bucket and reinserts all live entities in ascending
// id order, corners in top-left, top-right, bottom-right, bottom-left order.
func (b *Buckets) Rebuild() error {
	for i := range b.counts {
		b.counts[i] = 0
	}
	for i := range b.offGrid {
		b.offGrid[i] = false
	}
	b.overflows = b.overflows[:0]
	b.store.Each(b.insert)
	return b.overflowErr()
}

// RebuildOne refreshes a single entity after it moved. prev is its
// top-left cell before the move; the id is removed from that cell and the
// right, lower and diagonal neighbours, then reinserted from its current
// corners. A freed entity is only removed.
func (b *Buckets) RebuildOne(id ecs.EntityID, prev CellCoord) error {
	b.overflows = b.overflows[:0]
	for dr := 0; dr <= 1; dr++ {
		for dc := 0; dc <= 1; dc++ {
			col, row := prev.Col+dc, prev.Row+dr
			if b.grid.InBounds(col, row) {
				b.remove(b.grid.Index(col, row), id)
			}
		}
	}
	b.offGrid[id] = false
	if b.store.Alive(id) {
		b.insert(id)
	}
	return b.overflowErr()
}

func (b *Buckets) insert(id ecs.EntityID) {
	q := b.store.Hitbox(id)
	tl := q[geom.TopLeft]
	b.first[id] = CellCoord{b.grid.Column(tl.X), b.grid.Row(tl.Y)}
	var tried [4]int
	n := 0
	for _, p := range q {
		cell, ok := b.grid.CellOf(p)
		if !ok {
			b.offGrid[id] = true
			continue
		}
		if seenCell(tried[:n], cell) {
			continue
		}
		tried[n] = cell
		n++
		b.place(cell, id)
	}
}

func seenCell(cells []int, cell int) bool {
	for _, c := range cells {
		if c == cell {
			return true
		}
	}
	return false
}

// place scans the bucket for an empty slot or an existing copy of id, so
// re-insertion during the same pass is a no-op.
func (b *Buckets) place(cell int, id ecs.EntityID) {
	base := cell * b.cap
	n := b.counts[cell]
	for i := 0; i < n; i++ {
		if b.ids[base+i] == id {
			return
		}
	}
	if n == b.cap {
		b.overflows = append(b.overflows, Overflow{Cell: cell, Entity: id})
		b.dropped++
		return
	}
	b.ids[base+n] = id
	b.counts[cell] = n + 1
}

// remove deletes id and shifts the tail left so no hole is left.
func (b *Buckets) remove(cell int, id ecs.EntityID) {
	base := cell * b.cap
	n := b.counts[cell]
	for i := 0; i < n; i++ {
		if b.ids[base+i] != id {
			continue
		}
		copy(b.ids[base+i:base+n-1], b.ids[base+i+1:base+n])
		b.counts[cell] = n - 1
		return
	}
}

func (b *Buckets) overflowErr() error {
	if len(b.overflows) == 0 {
		return nil
	}
	o := b.overflows[0]
	return fmt.Errorf("%w: %d corner(s) dropped, first %s in cell %d", ErrBucketOverflow, len(b.overflows), o.Entity, o.Cell)
}
