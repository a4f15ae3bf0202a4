package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/handler"
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
)

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Phase 0 (Input).
type InputSystem struct {
	netServer  *net.Server
	registry   *packet.Registry
	store      *net.SessionStore
	deps       *handler.Deps
	maxPerTick int
	log        *zap.Logger
	dead       []uint64
}

func NewInputSystem(netServer *net.Server, registry *packet.Registry, deps *handler.Deps, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		netServer:  netServer,
		registry:   registry,
		store:      deps.Sessions,
		deps:       deps,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions
	for {
		select {
		case sess := <-s.netServer.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	// Process dead sessions
	for {
		select {
		case id := <-s.netServer.DeadSessions():
			if sess, ok := s.store.Remove(id); ok {
				handler.Release(sess, s.deps)
			}
		default:
			goto doneDead
		}
	}
doneDead:

	// Drain packets from each session (up to maxPerTick per session)
	s.dead = s.dead[:0]
	s.store.ForEach(func(sess *net.Session) {
		if sess.IsClosed() {
			s.dead = append(s.dead, sess.ID)
			return
		}
		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
					s.log.Debug("packet dispatch error",
						zap.Uint64("session", sess.ID),
						zap.Error(err),
					)
				}
			default:
				return
			}
		}
	})

	// Closed sessions lose their entity now rather than when the watcher
	// reports them, so a quit takes effect in this frame.
	for _, id := range s.dead {
		if sess, ok := s.store.Remove(id); ok {
			handler.Release(sess, s.deps)
		}
	}
}
