// Package view is the terminal presentation shell: it draws grid labels and
// entity hitboxes with tcell and turns key presses into velocity intents.
package view

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gdamore/tcell/v2"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/sim"
	"github.com/sweepgrid/server/internal/world"
)

// CellColumns is how many terminal columns one grid cell spans. Terminal
// glyphs are roughly twice as tall as wide.
const CellColumns = 2

var (
	styleFloor  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWall   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorGray)
	styleBlah   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleTest   = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleTemp   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleMario  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleBomb   = tcell.StyleDefault.Foreground(tcell.ColorPurple).Bold(true)
	stylePlayer = tcell.StyleDefault.Foreground(tcell.ColorRed).Reverse(true)
	styleStatus = tcell.StyleDefault.Foreground(tcell.ColorWhite)
)

func labelGlyph(l world.Label) (rune, tcell.Style) {
	switch l {
	case world.LabelWall:
		return '█', styleWall
	case world.LabelBlah:
		return 'b', styleBlah
	case world.LabelTest:
		return 't', styleTest
	case world.LabelTemp:
		return '~', styleTemp
	}
	return '·', styleFloor
}

// kindGlyphs alternate with the animation frame.
var kindGlyphs = map[ecs.Kind][2]rune{
	ecs.KindMario: {'@', 'a'},
	ecs.KindBomb:  {'*', '+'},
}

// Renderer draws one Sim onto a tcell screen.
type Renderer struct {
	screen tcell.Screen
	sim    *sim.Sim
	player ecs.EntityID
	rows   []sim.EntityState
}

func NewRenderer(screen tcell.Screen, s *sim.Sim) *Renderer {
	return &Renderer{screen: screen, sim: s, player: ecs.EntityID(^uint32(0))}
}

// SetPlayer highlights the entity steered from the keyboard.
func (r *Renderer) SetPlayer(id ecs.EntityID) { r.player = id }

// Draw repaints the whole frame and shows it.
func (r *Renderer) Draw() {
	r.screen.Clear()
	g := r.sim.Grid()
	for idx := 0; idx < g.Cells(); idx++ {
		col, row := g.ColRow(idx)
		ch, style := labelGlyph(g.Label(idx))
		for i := 0; i < CellColumns; i++ {
			r.screen.SetContent(col*CellColumns+i, row, ch, nil, style)
		}
	}

	r.rows = r.sim.Snapshot(r.rows[:0])
	for _, e := range r.rows {
		r.drawEntity(e)
	}
	r.drawStatus(g.Height() + 1)
	r.screen.Show()
}

// drawEntity fills every terminal cell whose centre lies inside the hitbox,
// or the single cell under its centre when the box is smaller than a glyph.
func (r *Renderer) drawEntity(e sim.EntityState) {
	g := r.sim.Grid()
	sx := g.TileWidth() / CellColumns
	sy := g.TileHeight()
	glyphs, ok := kindGlyphs[e.Kind]
	if !ok {
		return
	}
	ch := glyphs[e.Frame%2]
	style := styleMario
	if e.Kind == ecs.KindBomb {
		style = styleBomb
	}
	if e.ID == r.player {
		style = stylePlayer
	}

	q := e.Hitbox
	x0 := int(math32.Floor(q.Left()/sx + 0.5))
	x1 := int(math32.Floor(q.Right()/sx+0.5)) - 1
	y0 := int(math32.Floor(q.Top()/sy + 0.5))
	y1 := int(math32.Floor(q.Bottom()/sy+0.5)) - 1
	if x1 < x0 {
		x0 = int(math32.Floor((q.Left() + q.Right()) / 2 / sx))
		x1 = x0
	}
	if y1 < y0 {
		y0 = int(math32.Floor((q.Top() + q.Bottom()) / 2 / sy))
		y1 = y0
	}
	w, h := g.Width()*CellColumns, g.Height()
	for y := max(y0, 0); y <= min(y1, h-1); y++ {
		for x := max(x0, 0); x <= min(x1, w-1); x++ {
			r.screen.SetContent(x, y, ch, nil, style)
		}
	}
}

func (r *Renderer) drawStatus(y int) {
	st := r.sim.Stats()
	line := fmt.Sprintf("frame %d  entities %d  iter %d  caps %d  walls %d  hits %d",
		r.sim.Frame(), r.sim.Store().Len(), st.Iterations, st.CapHits, st.WallHits, st.Collisions)
	for i, ch := range line {
		r.screen.SetContent(i, y, ch, nil, styleStatus)
	}
}
