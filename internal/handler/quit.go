package handler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/core/event"
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
	"github.com/sweepgrid/server/internal/sim"
)

// HandleQuit processes C_QUIT. The session is only closed here; the input
// system releases its entity once the connection is reported dead.
func HandleQuit(sess *net.Session, _ *packet.Reader, deps *Deps) {
	deps.Log.Info(fmt.Sprintf("player quit  session=%d  name=%s", sess.ID, sess.Name))
	sess.Close()
}

// Release queues a departing session's entity for removal.
func Release(sess *net.Session, deps *Deps) {
	if sess.HasEntity {
		deps.Sim.Despawn(sess.Entity, event.ReasonDisconnect)
		sess.HasEntity = false
	}
}

// Watch keeps sessions in step with entity removal. A session loses its
// entity inside the simulation's Flush, before a later HELLO can be handed
// the same slot; the respawn waits for the EntityDespawned event.
func Watch(bus *event.Bus, deps *Deps) {
	deps.Sim.OnRelease(func(id ecs.EntityID, o sim.Owner) { unbind(id, o, deps) })
	event.Subscribe(bus, func(ev event.EntityDespawned) { OnDespawned(ev, deps) })
}

func unbind(id ecs.EntityID, o sim.Owner, deps *Deps) {
	sess, ok := deps.Sessions.Get(o.Session)
	if ok && sess.HasEntity && sess.Entity == id {
		sess.HasEntity = false
	}
}

// OnDespawned respawns a connected player whose entity was removed by the
// simulation, e.g. after leaving the grid.
func OnDespawned(ev event.EntityDespawned, deps *Deps) {
	if ev.Reason == event.ReasonDisconnect || !ev.Owned {
		return
	}
	sess, ok := deps.Sessions.Get(ev.Session)
	if !ok || sess.IsClosed() || sess.State() != packet.StatePlaying || sess.HasEntity {
		return
	}
	if err := spawnFor(sess, deps); err != nil {
		deps.Log.Warn("respawn failed", zapSession(sess), zapErr(err))
		deny(sess, DeniedFull)
		return
	}
	deps.Log.Info(fmt.Sprintf("player respawned  session=%d  entity=%s  reason=%s", sess.ID, sess.Entity, ev.Reason))
	sendWelcome(sess, deps.Sim)
}

func zapSession(sess *net.Session) zap.Field { return zap.Uint64("session", sess.ID) }
func zapErr(err error) zap.Field { return zap.Error(err) }
