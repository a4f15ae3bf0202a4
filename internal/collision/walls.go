package collision

import (
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/world"
)

// WallHit is the first wall cell a swept box runs into.
type WallHit struct {
	Cell int
	Impact
}

// ClipSweep expands q along v*limit and clips the sweep at the first wall
// cell in its way. The returned quad is the swept box up to the clip; ok is
// false when the path is clear. Cells outside the grid are open.
func ClipSweep(g *world.Grid, q geom.Quad, v geom.Vec2, limit, eps float32) (geom.Quad, WallHit, bool) {
	swept := q.Sweep(v.Scale(limit))
	span, ok := spanOf(g, swept, 0)
	if !ok {
		return swept, WallHit{}, false
	}
	var best WallHit
	found := false
	for row := span.r0; row <= span.r1; row++ {
		for col := span.c0; col <= span.c1; col++ {
			if !g.WallAt(col, row) {
				continue
			}
			cell := g.Index(col, row)
			hit, ok := TimeOfImpact(q, v, g.CellBounds(cell), geom.Vec2{}, limit, eps)
			if !ok || (found && hit.Time >= best.Time) {
				continue
			}
			best = WallHit{Cell: cell, Impact: hit}
			found = true
		}
	}
	if !found {
		return swept, WallHit{}, false
	}
	return q.Sweep(v.Scale(best.Time)), best, true
}

// cellSpan is an inclusive, grid-clamped range of cells.
type cellSpan struct {
	c0, c1, r0, r1 int
}

// spanOf returns the cells touched by q grown by pad on every side.
func spanOf(g *world.Grid, q geom.Quad, pad float32) (cellSpan, bool) {
	s := cellSpan{
		c0: max(g.Column(q.Left()-pad), 0),
		c1: min(g.Column(q.Right()+pad), g.Width()-1),
		r0: max(g.Row(q.Top()-pad), 0),
		r1: min(g.Row(q.Bottom()+pad), g.Height()-1),
	}
	return s, s.c0 <= s.c1 && s.r0 <= s.r1
}
