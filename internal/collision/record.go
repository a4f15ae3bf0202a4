package collision

import (
	"fmt"

	"github.com/sweepgrid/server/internal/core/ecs"
)

type targetKind uint8

const (
	targetEntity targetKind = iota
	targetWall
)

// Target is the second participant of a contact: another entity or a wall
// cell.
type Target struct {
	kind targetKind
	id   ecs.EntityID
	cell int
}

func EntityTarget(id ecs.EntityID) Target { return Target{kind: targetEntity, id: id} }
func WallTarget(cell int) Target { return Target{kind: targetWall, cell: cell} }

func (t Target) IsWall() bool { return t.kind == targetWall }

// Entity returns the target id when the target is an entity.
func (t Target) Entity() (ecs.EntityID, bool) { return t.id, t.kind == targetEntity }

// Cell returns the wall cell index when the target is a wall.
func (t Target) Cell() (int, bool) { return t.cell, t.kind == targetWall }

func (t Target) String() string {
	if t.kind == targetWall {
		return fmt.Sprintf("wall(%d)", t.cell)
	}
	return t.id.String()
}

// less orders entities before walls, then by id or cell.
func (t Target) less(o Target) bool {
	if t.kind != o.kind {
		return t.kind < o.kind
	}
	if t.kind == targetWall {
		return t.cell < o.cell
	}
	return t.id < o.id
}

// Record is one predicted contact inside the current sub-step.
type Record struct {
	Entity ecs.EntityID
	Other  Target
	Impact
}

func (r Record) less(o Record) bool {
	if r.Time != o.Time {
		return r.Time < o.Time
	}
	if r.Entity != o.Entity {
		return r.Entity < o.Entity
	}
	return r.Other.less(o.Other)
}

// Outcome is how a contact was resolved.
type Outcome uint8

const (
	OutcomeWall  Outcome = iota // mover stopped by a wall cell
	OutcomeStop                 // mover stopped by a stationary entity
	OutcomeMerge                // head-on on a shared axis, both took the mean velocity
	OutcomeYield                // one participant stopped, the other kept right of way
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWall:
		return "wall"
	case OutcomeStop:
		return "stop"
	case OutcomeMerge:
		return "merge"
	case OutcomeYield:
		return "yield"
	}
	return "unknown"
}

// Contact is a resolved Record.
type Contact struct {
	Record
	Outcome Outcome
	// RightOfWay is the participant that kept moving; valid only when
	// HasRightOfWay is set.
	RightOfWay    ecs.EntityID
	HasRightOfWay bool
	// Stopped lists the participants whose velocity was zeroed.
	Stopped []ecs.EntityID
}
