// Package geom holds the float32 vector and axis-aligned quad types shared by
// the grid, the entity store and the collision solver.
package geom

import "github.com/chewxy/math32"

type Vec2 struct {
	X, Y float32
}

func V(x, y float32) Vec2 { return Vec2{x, y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }
func (v Vec2) Mean(o Vec2) Vec2 { return Vec2{(v.X + o.X) / 2, (v.Y + o.Y) / 2} }
func (v Vec2) Finite() bool { return finite(v.X) && finite(v.Y) }
func (v Vec2) Axis(a Axis) float32 { return [2]float32{v.X, v.Y}[a] }
func (v Vec2) WithAxis(a Axis, s float32) Vec2 {
	if a == AxisX {
		v.X = s
	} else {
		v.Y = s
	}
	return v
}

func finite(f float32) bool { return !math32.IsNaN(f) && !math32.IsInf(f, 0) }

type Axis uint8

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// Corner indexes into a Quad. The order is fixed: top-left, top-right,
// bottom-right, bottom-left, with y growing downward.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

type Quad [4]Vec2

// Rect builds a quad from its top-left corner and size.
func Rect(x, y, w, h float32) Quad {
	return Quad{
		TopLeft:     {x, y},
		TopRight:    {x + w, y},
		BottomRight: {x + w, y + h},
		BottomLeft:  {x, y + h},
	}
}

func (q Quad) Left() float32 { return q[TopLeft].X }
func (q Quad) Right() float32 { return q[TopRight].X }
func (q Quad) Top() float32 { return q[TopLeft].Y }
func (q Quad) Bottom() float32 { return q[BottomLeft].Y }
func (q Quad) Width() float32 { return q.Right() - q.Left() }
func (q Quad) Height() float32 { return q.Bottom() - q.Top() }

// Min returns the lower edge along an axis (left or top).
func (q Quad) Min(a Axis) float32 {
	if a == AxisX {
		return q.Left()
	}
	return q.Top()
}

// Max returns the upper edge along an axis (right or bottom).
func (q Quad) Max(a Axis) float32 {
	if a == AxisX {
		return q.Right()
	}
	return q.Bottom()
}

// Offset translates every corner by d. Corner order is preserved.
func (q Quad) Offset(d Vec2) Quad {
	for i := range q {
		q[i] = q[i].Add(d)
	}
	return q
}

// Overlaps reports interior overlap. Shared edges do not count.
func (q Quad) Overlaps(o Quad) bool {
	return q.Left() < o.Right() && o.Left() < q.Right() &&
		q.Top() < o.Bottom() && o.Top() < q.Bottom()
}

// Sweep extends the quad along v: corners on the leading side of each
// moving axis are pushed, trailing corners stay put.
func (q Quad) Sweep(v Vec2) Quad {
	l, t, r, b := q.Left(), q.Top(), q.Right(), q.Bottom()
	if v.X > 0 {
		r += v.X
	} else {
		l += v.X
	}
	if v.Y > 0 {
		b += v.Y
	} else {
		t += v.Y
	}
	return Rect(l, t, r-l, b-t)
}

// Valid reports whether the corners still form an upright rectangle.
func (q Quad) Valid() bool {
	return q[TopLeft].Y == q[TopRight].Y &&
		q[BottomLeft].Y == q[BottomRight].Y &&
		q[TopLeft].X == q[BottomLeft].X &&
		q[TopRight].X == q[BottomRight].X &&
		q.Left() <= q.Right() && q.Top() <= q.Bottom()
}
