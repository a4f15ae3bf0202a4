package geom

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestRectCornerOrder(t *testing.T) {
	q := Rect(10, 20, 5, 8)
	assert.Equal(t, V(10, 20), q[TopLeft])
	assert.Equal(t, V(15, 20), q[TopRight])
	assert.Equal(t, V(15, 28), q[BottomRight])
	assert.Equal(t, V(10, 28), q[BottomLeft])
	assert.True(t, q.Valid())
}

func TestOffsetKeepsShape(t *testing.T) {
	q := Rect(0, 0, 4, 4).Offset(V(-2, 3))
	assert.Equal(t, Rect(-2, 3, 4, 4), q)
	assert.True(t, q.Valid())
}

func TestOverlapsExcludesSharedEdge(t *testing.T) {
	a := Rect(0, 0, 10, 10)
	assert.False(t, a.Overlaps(Rect(10, 0, 10, 10)))
	assert.False(t, a.Overlaps(Rect(0, 10, 10, 10)))
	assert.True(t, a.Overlaps(Rect(9.5, 9.5, 10, 10)))
}

func TestSweepPushesLeadingCornersOnly(t *testing.T) {
	q := Rect(10, 10, 10, 10)

	right := q.Sweep(V(5, 0))
	assert.Equal(t, float32(10), right.Left())
	assert.Equal(t, float32(25), right.Right())

	upLeft := q.Sweep(V(-3, -4))
	assert.Equal(t, Rect(7, 6, 13, 14), upLeft)
}

func TestVecHelpers(t *testing.T) {
	v := V(2, -4)
	assert.Equal(t, V(0, -1), v.Mean(V(-2, 2)))
	assert.Equal(t, float32(-4), v.Axis(AxisY))
	assert.Equal(t, V(2, 0), v.WithAxis(AxisY, 0))
	assert.False(t, V(math32.NaN(), 0).Finite())
	assert.False(t, V(0, math32.Inf(1)).Finite())
	assert.True(t, v.Finite())
}
