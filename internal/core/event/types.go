package event

import (
	"github.com/sweepgrid/server/internal/collision"
	"github.com/sweepgrid/server/internal/core/ecs"
)

// Events emitted by the physics step. They are dispatched at the start of
// the following tick.

type WallHit struct {
	Entity ecs.EntityID
	Cell   int
	Time   float32
}

type EntityCollision struct {
	A, B          ecs.EntityID
	Time          float32
	Outcome       collision.Outcome
	RightOfWay    ecs.EntityID
	HasRightOfWay bool
}

type ChainCapReached struct {
	Frame      uint64
	Iterations int
	Dropped    float32
}

type BucketOverflow struct {
	Cell   int
	Entity ecs.EntityID
}

type EntitySpawned struct {
	Entity ecs.EntityID
	Kind   ecs.Kind
}

type EntityDespawned struct {
	Entity ecs.EntityID
	Reason string
	// Session is the network session that owned the entity, if Owned.
	Session uint64
	Owned   bool
}

// Despawn reasons.
const (
	ReasonOffGrid    = "off-grid"
	ReasonScript     = "script"
	ReasonDisconnect = "disconnect"
)
