package world

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/geom"
)

func newHash(t testing.TB, w, h, capacity, entities int) (*Grid, *ecs.Store, *Buckets) {
	t.Helper()
	g := NewGrid(w, h, float32(w)*100, float32(h)*100)
	s := ecs.NewStore(entities)
	return g, s, NewBuckets(g, s, capacity)
}

func TestRebuildPlacesEachCornerCell(t *testing.T) {
	g, s, b := newHash(t, 5, 5, 4, 4)
	id, err := s.Spawn(ecs.KindMario, geom.Rect(150, 150, 100, 100))
	require.NoError(t, err)

	require.NoError(t, b.Rebuild())
	for _, c := range []CellCoord{{1, 1}, {2, 1}, {1, 2}, {2, 2}} {
		assert.Equal(t, []ecs.EntityID{id}, b.Bucket(g.Index(c.Col, c.Row)), "cell %v", c)
	}
	assert.Empty(t, b.Bucket(g.Index(0, 0)))
	assert.Equal(t, CellCoord{1, 1}, b.FirstCell(id))
	assert.False(t, b.OffGrid(id))
}

func TestRebuildAlignedEntityInsertsOnce(t *testing.T) {
	g, s, b := newHash(t, 5, 5, 4, 4)
	id, _ := s.Spawn(ecs.KindMario, geom.Rect(110, 110, 50, 50))

	require.NoError(t, b.Rebuild())
	assert.Equal(t, []ecs.EntityID{id}, b.Bucket(g.Index(1, 1)))
}

func TestRebuildSkipsFreeEntities(t *testing.T) {
	g, s, b := newHash(t, 5, 5, 4, 4)
	a, _ := s.Spawn(ecs.KindMario, geom.Rect(10, 10, 50, 50))
	c, _ := s.Spawn(ecs.KindBomb, geom.Rect(20, 20, 50, 50))
	s.MarkFree(a)

	require.NoError(t, b.Rebuild())
	assert.Equal(t, []ecs.EntityID{c}, b.Bucket(g.Index(0, 0)))
}

func TestOffGridCornersAreSkipped(t *testing.T) {
	g, s, b := newHash(t, 5, 5, 4, 4)
	id, _ := s.Spawn(ecs.KindMario, geom.Rect(-30, 10, 60, 60))

	require.NoError(t, b.Rebuild())
	assert.True(t, b.OffGrid(id))
	assert.Equal(t, []ecs.EntityID{id}, b.Bucket(g.Index(0, 0)), "in-grid corners still placed")

	s.SetRect(id, geom.Rect(-80, 10, 60, 60))
	require.NoError(t, b.Rebuild())
	assert.True(t, b.OffGrid(id))
	for cell := 0; cell < g.Cells(); cell++ {
		assert.False(t, b.Contains(cell, id))
	}
}

func TestBucketOverflowIsReported(t *testing.T) {
	g, s, b := newHash(t, 2, 2, 2, 4)
	for i := 0; i < 3; i++ {
		_, err := s.Spawn(ecs.KindBomb, geom.Rect(10, 10, 20, 20))
		require.NoError(t, err)
	}

	err := b.Rebuild()
	require.ErrorIs(t, err, ErrBucketOverflow)
	assert.Len(t, b.Bucket(g.Index(0, 0)), 2)
	assert.Equal(t, []Overflow{{Cell: 0, Entity: 2}}, b.Overflows())
	assert.Equal(t, 1, b.Dropped())
}

func TestRebuildOneCompactsBucket(t *testing.T) {
	g, s, b := newHash(t, 5, 5, 4, 4)
	ids := make([]ecs.EntityID, 3)
	for i := range ids {
		ids[i], _ = s.Spawn(ecs.KindMario, geom.Rect(10+float32(i)*5, 10, 20, 20))
	}
	require.NoError(t, b.Rebuild())

	prev := b.FirstCell(ids[0])
	s.Offset(ids[0], geom.V(200, 0))
	require.NoError(t, b.RebuildOne(ids[0], prev))

	assert.Equal(t, []ecs.EntityID{ids[1], ids[2]}, b.Bucket(g.Index(0, 0)))
	assert.Equal(t, []ecs.EntityID{ids[0]}, b.Bucket(g.Index(2, 0)))
}

func TestRebuildOneRemovesFreedEntity(t *testing.T) {
	g, s, b := newHash(t, 5, 5, 4, 4)
	id, _ := s.Spawn(ecs.KindMario, geom.Rect(150, 150, 100, 100))
	require.NoError(t, b.Rebuild())

	s.MarkFree(id)
	require.NoError(t, b.RebuildOne(id, b.FirstCell(id)))
	for cell := 0; cell < g.Cells(); cell++ {
		assert.Empty(t, b.Bucket(cell))
	}
}

// drawRect yields a rectangle smaller than one 100x100 tile, sometimes
// straddling the grid edge.
func drawRect(t *rapid.T, label string, w, h int) geom.Quad {
	x := float32(rapid.Float64Range(-60, float64(w)*100).Draw(t, label+".x"))
	y := float32(rapid.Float64Range(-60, float64(h)*100).Draw(t, label+".y"))
	sw := float32(rapid.Float64Range(1, 99).Draw(t, label+".w"))
	sh := float32(rapid.Float64Range(1, 99).Draw(t, label+".h"))
	if rapid.IntRange(0, 3).Draw(t, label+".snap") == 0 {
		x, y = float32(int(x)/100*100), float32(int(y)/100*100)
	}
	return geom.Rect(x, y, sw, sh)
}

func populate(t *rapid.T, g *Grid, s *ecs.Store) {
	n := rapid.IntRange(0, s.Cap()).Draw(t, "n")
	for i := 0; i < n; i++ {
		id, err := s.Spawn(ecs.KindMario, drawRect(t, "e", g.Width(), g.Height()))
		if err != nil {
			t.Fatal(err)
		}
		if rapid.IntRange(0, 5).Draw(t, "free") == 0 {
			s.MarkFree(id)
		}
	}
}

// expectedCells computes the cells an entity must appear in.
func expectedCells(g *Grid, q geom.Quad) map[int]bool {
	cells := map[int]bool{}
	for _, p := range q {
		if c, ok := g.CellOf(p); ok {
			cells[c] = true
		}
	}
	return cells
}

func TestPropertyBucketConsistency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewGrid(6, 5, 600, 500)
		s := ecs.NewStore(12)
		b := NewBuckets(g, s, 48) // large enough that nothing overflows
		populate(t, g, s)

		if err := b.Rebuild(); err != nil {
			t.Fatal(err)
		}
		for cell := 0; cell < g.Cells(); cell++ {
			seen := map[ecs.EntityID]bool{}
			for _, id := range b.Bucket(cell) {
				if !s.Alive(id) {
					t.Fatalf("dead %s in cell %d", id, cell)
				}
				if seen[id] {
					t.Fatalf("%s twice in cell %d", id, cell)
				}
				seen[id] = true
				if !expectedCells(g, s.Hitbox(id))[cell] {
					t.Fatalf("%s in cell %d without a corner there", id, cell)
				}
			}
		}
		s.Each(func(id ecs.EntityID) {
			for cell := range expectedCells(g, s.Hitbox(id)) {
				if !b.Contains(cell, id) {
					t.Fatalf("%s missing from cell %d", id, cell)
				}
			}
		})
	})
}

func bucketSets(g *Grid, b *Buckets) [][]ecs.EntityID {
	out := make([][]ecs.EntityID, g.Cells())
	for cell := range out {
		ids := append([]ecs.EntityID(nil), b.Bucket(cell)...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out[cell] = ids
	}
	return out
}

func TestPropertyIncrementalMatchesFull(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewGrid(6, 5, 600, 500)
		s := ecs.NewStore(10)
		populate(t, g, s)
		if s.Len() == 0 {
			return
		}
		incr := NewBuckets(g, s, 40)
		full := NewBuckets(g, s, 40)
		if err := incr.Rebuild(); err != nil {
			t.Fatal(err)
		}

		alive := s.AppendAlive(nil)
		id := rapid.SampledFrom(alive).Draw(t, "mover")
		prev := incr.FirstCell(id)
		d := geom.V(
			float32(rapid.Float64Range(-100, 100).Draw(t, "dx")),
			float32(rapid.Float64Range(-100, 100).Draw(t, "dy")),
		)
		s.Offset(id, d)
		if rapid.Bool().Draw(t, "kill") {
			s.MarkFree(id)
		}

		if err := incr.RebuildOne(id, prev); err != nil {
			t.Fatal(err)
		}
		if err := full.Rebuild(); err != nil {
			t.Fatal(err)
		}
		if got, want := bucketSets(g, incr), bucketSets(g, full); !assert.ObjectsAreEqual(want, got) {
			t.Fatalf("incremental buckets differ:\n got %v\nwant %v", got, want)
		}
		if incr.OffGrid(id) != full.OffGrid(id) {
			t.Fatalf("off-grid flag mismatch for %s", id)
		}
	})
}
