package collision

import (
	"github.com/chewxy/math32"

	"github.com/sweepgrid/server/internal/geom"
)

// Impact describes when and on which face two boxes first touch.
type Impact struct {
	Time float32
	// Axis is the axis whose gap closed last; the boxes meet on a face
	// perpendicular to it.
	Axis geom.Axis
	// Tie is set when both gaps closed together (corner contact).
	Tie bool
}

// TimeOfImpact solves a(t) = a + va*t against b(t) = b + vb*t per axis and
// returns the first instant in [0, limit] at which the boxes touch while
// approaching. Pairs already overlapping, moving in parallel, or producing
// a non-finite time report false. eps is the distance below which a gap or
// an overlap is treated as contact.
func TimeOfImpact(a geom.Quad, va geom.Vec2, b geom.Quad, vb geom.Vec2, limit, eps float32) (Impact, bool) {
	v := va.Sub(vb)
	if v.IsZero() || !v.Finite() {
		return Impact{}, false
	}
	ex, xx, ok := axisWindow(a.Left(), a.Right(), b.Left(), b.Right(), v.X, eps)
	if !ok {
		return Impact{}, false
	}
	ey, xy, ok := axisWindow(a.Top(), a.Bottom(), b.Top(), b.Bottom(), v.Y, eps)
	if !ok {
		return Impact{}, false
	}

	entry := math32.Max(ex, ey)
	exit := math32.Min(xx, xy)
	if math32.IsInf(entry, -1) || math32.IsNaN(entry) || math32.IsNaN(exit) {
		return Impact{}, false
	}
	if entry < 0 || entry > limit || !(entry < exit) {
		return Impact{}, false
	}

	hit := Impact{Time: entry}
	switch {
	case ex == ey:
		hit.Tie = true
	case ex > ey:
		hit.Axis = geom.AxisX
	default:
		hit.Axis = geom.AxisY
	}
	return hit, true
}

// axisWindow returns the interval of t during which [aMin,aMax] moving at v
// overlaps the fixed [bMin,bMax]. Overlap at t=0 yields entry -Inf.
func axisWindow(aMin, aMax, bMin, bMax, v, eps float32) (entry, exit float32, ok bool) {
	switch {
	case aMax <= bMin+eps:
		if v <= 0 {
			return 0, 0, false
		}
		return math32.Max(bMin-aMax, 0) / v, (bMax - aMin) / v, true
	case bMax <= aMin+eps:
		if v >= 0 {
			return 0, 0, false
		}
		return math32.Max(aMin-bMax, 0) / -v, (aMax - bMin) / -v, true
	}
	entry = math32.Inf(-1)
	switch {
	case v > 0:
		exit = (bMax - aMin) / v
	case v < 0:
		exit = (aMax - bMin) / -v
	default:
		exit = math32.Inf(1)
	}
	return entry, exit, true
}
