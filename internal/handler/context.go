package handler

import (
	"go.uber.org/zap"

	"github.com/sweepgrid/server/internal/config"
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
	"github.com/sweepgrid/server/internal/sim"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Sim      *sim.Sim
	Sessions *net.SessionStore
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.C_OPCODE_HELLO,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_INTENT,
		[]packet.SessionState{packet.StatePlaying},
		func(sess any, r *packet.Reader) {
			HandleIntent(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_QUIT,
		[]packet.SessionState{packet.StateHandshake, packet.StatePlaying},
		func(sess any, r *packet.Reader) {
			HandleQuit(sess.(*net.Session), r, deps)
		},
	)
}
