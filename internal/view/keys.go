package view

import (
	"github.com/gdamore/tcell/v2"

	"github.com/sweepgrid/server/internal/geom"
)

// Action is what a key press asks the shell to do.
type Action int

const (
	ActionNone Action = iota
	ActionSteer
	ActionCue
	ActionQuit
)

// Controller turns key events into velocity intents, in tiles per second.
type Controller struct {
	speed  float32
	intent geom.Vec2
}

func NewController(speedTiles float32) *Controller {
	return &Controller{speed: speedTiles}
}

// Intent is the current steering velocity.
func (c *Controller) Intent() geom.Vec2 { return c.intent }

// HandleKey updates the intent from a key event.
func (c *Controller) HandleKey(ev *tcell.EventKey) Action {
	return c.Handle(ev.Key(), ev.Rune())
}

// Handle updates the intent. Arrows steer along one axis at a time, space
// stops. ch is only read for tcell.KeyRune.
func (c *Controller) Handle(key tcell.Key, ch rune) Action {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyUp:
		c.intent = geom.V(0, -c.speed)
		return ActionSteer
	case tcell.KeyDown:
		c.intent = geom.V(0, c.speed)
		return ActionSteer
	case tcell.KeyLeft:
		c.intent = geom.V(-c.speed, 0)
		return ActionSteer
	case tcell.KeyRight:
		c.intent = geom.V(c.speed, 0)
		return ActionSteer
	case tcell.KeyRune:
		switch ch {
		case ' ':
			c.intent = geom.Vec2{}
			return ActionSteer
		case 't', 'T':
			return ActionCue
		case 'q':
			return ActionQuit
		}
	}
	return ActionNone
}
