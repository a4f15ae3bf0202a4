package ecs

import (
	"errors"
	"fmt"

	"github.com/sweepgrid/server/internal/geom"
)

var (
	ErrStoreFull = errors.New("entity store full")
	ErrInvalidID = errors.New("invalid entity id")
)

// EntityID is an index into the Store. A live id is never handed out twice;
// once its slot is marked free the index may be reused by Spawn.
type EntityID uint32

func (id EntityID) String() string { return fmt.Sprintf("e%d", uint32(id)) }

// Kind selects the sprite the presentation layer draws for an entity.
type Kind uint8

const (
	KindNone Kind = iota
	KindMario
	KindBomb
)

func (k Kind) String() string {
	switch k {
	case KindMario:
		return "mario"
	case KindBomb:
		return "bomb"
	}
	return "none"
}

// ParseKind maps a level-file name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "none":
		return KindNone, nil
	case "mario":
		return KindMario, nil
	case "bomb":
		return KindBomb, nil
	}
	return KindNone, fmt.Errorf("unknown entity kind %q", s)
}

// Store is a fixed-capacity arena of entity slots laid out as parallel
// arrays. A free slot keeps its stale geometry; every reader must check
// Alive before trusting it.
type Store struct {
	hitbox []geom.Quad // collision geometry
	sprite []geom.Quad // render geometry, moved in lockstep with hitbox
	vel    []geom.Vec2 // world units per second
	free   []bool
	kind   []Kind
	frame  []uint16
	alive  int
}

func NewStore(capacity int) *Store {
	s := &Store{
		hitbox: make([]geom.Quad, capacity),
		sprite: make([]geom.Quad, capacity),
		vel:    make([]geom.Vec2, capacity),
		free:   make([]bool, capacity),
		kind:   make([]Kind, capacity),
		frame:  make([]uint16, capacity),
	}
	for i := range s.free {
		s.free[i] = true
	}
	return s
}

func (s *Store) Cap() int { return len(s.free) }

// Len is the number of live entities.
func (s *Store) Len() int { return s.alive }

func (s *Store) Valid(id EntityID) bool { return int(id) < len(s.free) }

func (s *Store) Alive(id EntityID) bool { return s.Valid(id) && !s.free[id] }

// Spawn claims the lowest free slot.
func (s *Store) Spawn(kind Kind, rect geom.Quad) (EntityID, error) {
	for i, f := range s.free {
		if !f {
			continue
		}
		id := EntityID(i)
		s.hitbox[id] = rect
		s.sprite[id] = rect
		s.vel[id] = geom.Vec2{}
		s.kind[id] = kind
		s.frame[id] = 0
		s.MarkAlive(id)
		return id, nil
	}
	return 0, fmt.Errorf("spawn %s: %w (capacity %d)", kind, ErrStoreFull, len(s.free))
}

// SetRect replaces both collision and render geometry.
func (s *Store) SetRect(id EntityID, q geom.Quad) {
	s.hitbox[id] = q
	s.sprite[id] = q
}

// SetSprite replaces only the render geometry.
func (s *Store) SetSprite(id EntityID, q geom.Quad) { s.sprite[id] = q }

// Offset translates both quads by d.
func (s *Store) Offset(id EntityID, d geom.Vec2) {
	s.hitbox[id] = s.hitbox[id].Offset(d)
	s.sprite[id] = s.sprite[id].Offset(d)
}

func (s *Store) MarkFree(id EntityID) {
	if !s.free[id] {
		s.free[id] = true
		s.alive--
	}
}

func (s *Store) MarkAlive(id EntityID) {
	if s.free[id] {
		s.free[id] = false
		s.alive++
	}
}

func (s *Store) Hitbox(id EntityID) geom.Quad { return s.hitbox[id] }
func (s *Store) Sprite(id EntityID) geom.Quad { return s.sprite[id] }
func (s *Store) Velocity(id EntityID) geom.Vec2 { return s.vel[id] }
func (s *Store) SetVelocity(id EntityID, v geom.Vec2) { s.vel[id] = v }
func (s *Store) Kind(id EntityID) Kind { return s.kind[id] }
func (s *Store) SetKind(id EntityID, k Kind) { s.kind[id] = k }
func (s *Store) Frame(id EntityID) uint16 { return s.frame[id] }
func (s *Store) SetFrame(id EntityID, f uint16) { s.frame[id] = f }

// Each calls fn for every live entity in ascending id order.
func (s *Store) Each(fn func(EntityID)) {
	for i, f := range s.free {
		if !f {
			fn(EntityID(i))
		}
	}
}

// AppendAlive appends live ids in ascending order to buf.
func (s *Store) AppendAlive(buf []EntityID) []EntityID {
	for i, f := range s.free {
		if !f {
			buf = append(buf, EntityID(i))
		}
	}
	return buf
}
