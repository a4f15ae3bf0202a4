package handler

import (
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
)

// HandleIntent processes C_INTENT.
// Format: [opcode][H vx][H vy], tiles per second ×100, signed.
// The latest intent of a tick wins; it takes effect in the next solver pass.
// Intents for an entity the session no longer owns are dropped.
func HandleIntent(sess *net.Session, r *packet.Reader, deps *Deps) {
	if !sess.HasEntity || !deps.Sim.OwnedBy(sess.Entity, sess.ID) {
		return
	}
	v := geom.V(r.ReadFixedH(), r.ReadFixedH())
	if err := deps.Sim.SetVelocity(sess.Entity, deps.Sim.TilesToWorld(v)); err != nil {
		deps.Log.Debug("intent ignored", zapSession(sess), zapErr(err))
	}
}
