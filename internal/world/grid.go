package world

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/sweepgrid/server/internal/geom"
)

// Label is the content of one grid cell.
type Label uint8

const (
	LabelNone Label = iota
	LabelBlah
	LabelTest
	LabelTemp
	LabelWall
)

var labelNames = [...]string{"none", "blah", "test", "temp", "wall"}

func (l Label) String() string {
	if int(l) < len(labelNames) {
		return labelNames[l]
	}
	return fmt.Sprintf("label(%d)", l)
}

// ParseLabel is the inverse of Label.String.
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return LabelNone, fmt.Errorf("unknown label %q", s)
}

// Grid is a W x H array of cell labels with a fixed tile size derived from
// the target surface. The shape never changes after construction; labels
// are written by level logic between frames.
// Accessed only from the game loop goroutine; no locks.
type Grid struct {
	width, height int
	tileW, tileH  float32
	labels        []Label // row-major: row*width + col
	version       uint64  // bumped on every label change
}

func NewGrid(width, height int, surfaceW, surfaceH float32) *Grid {
	return &Grid{
		width:  width,
		height: height,
		tileW:  surfaceW / float32(width),
		tileH:  surfaceH / float32(height),
		labels: make([]Label, width*height),
	}
}

func (g *Grid) Width() int { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Cells() int { return len(g.labels) }
func (g *Grid) TileWidth() float32 { return g.tileW }
func (g *Grid) TileHeight() float32 { return g.tileH }

// Extent is the world-space size of the whole grid.
func (g *Grid) Extent() geom.Vec2 {
	return geom.V(float32(g.width)*g.tileW, float32(g.height)*g.tileH)
}

// Index converts a column/row pair to a linear cell index.
func (g *Grid) Index(col, row int) int { return row*g.width + col }

// ColRow splits a linear cell index.
func (g *Grid) ColRow(idx int) (col, row int) { return idx % g.width, idx / g.width }

// Column floor-divides x by the tile width. A coordinate lying exactly on a
// boundary belongs to the cell whose min edge it touches.
func (g *Grid) Column(x float32) int { return snapFloor(x, g.tileW) }

// Row floor-divides y by the tile height.
func (g *Grid) Row(y float32) int { return snapFloor(y, g.tileH) }

// ColumnEdge is the world x of a column's left boundary.
func (g *Grid) ColumnEdge(col int) float32 { return float32(col) * g.tileW }

// RowEdge is the world y of a row's top boundary.
func (g *Grid) RowEdge(row int) float32 { return float32(row) * g.tileH }

func snapFloor(v, size float32) int {
	c := int(math32.Floor(v / size))
	// keep membership consistent with edges computed as float32(c)*size
	if float32(c+1)*size <= v {
		c++
	} else if float32(c)*size > v {
		c--
	}
	return c
}

// CellIndex maps a world position to a linear cell index. No bounds check:
// callers keep positions in range or use CellOf.
func (g *Grid) CellIndex(p geom.Vec2) int {
	return g.Index(g.Column(p.X), g.Row(p.Y))
}

// CellOf is the checked form of CellIndex. Positions outside
// [0, W*tileW) x [0, H*tileH) report false.
func (g *Grid) CellOf(p geom.Vec2) (int, bool) {
	col, row := g.Column(p.X), g.Row(p.Y)
	if !g.InBounds(col, row) {
		return 0, false
	}
	return g.Index(col, row), true
}

func (g *Grid) InBounds(col, row int) bool {
	return col >= 0 && col < g.width && row >= 0 && row < g.height
}

func (g *Grid) Label(idx int) Label { return g.labels[idx] }

func (g *Grid) LabelAt(col, row int) Label {
	if !g.InBounds(col, row) {
		return LabelNone
	}
	return g.labels[g.Index(col, row)]
}

func (g *Grid) SetLabel(idx int, l Label) {
	if g.labels[idx] != l {
		g.labels[idx] = l
		g.version++
	}
}

// Version changes whenever a label does. Observers compare it between
// frames to decide whether to resend the layout.
func (g *Grid) Version() uint64 { return g.version }

func (g *Grid) IsWall(idx int) bool { return g.labels[idx] == LabelWall }

// WallAt reports a wall at col/row. Cells beyond the grid are open.
func (g *Grid) WallAt(col, row int) bool {
	return g.InBounds(col, row) && g.labels[g.Index(col, row)] == LabelWall
}

// CellBounds returns the world quad covered by a cell.
func (g *Grid) CellBounds(idx int) geom.Quad {
	col, row := g.ColRow(idx)
	return geom.Rect(g.ColumnEdge(col), g.RowEdge(row), g.tileW, g.tileH)
}

// Fill sets every cell to l.
func (g *Grid) Fill(l Label) {
	for i := range g.labels {
		g.SetLabel(i, l)
	}
}
