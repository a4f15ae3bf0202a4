package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState is the protocol phase of a connection.
type SessionState uint8

const (
	StateHandshake SessionState = iota // connected, awaiting HELLO
	StatePlaying                       // owns an entity
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StatePlaying:
		return "Playing"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

func (s SessionState) bit() uint8 { return 1 << s }

// OpcodeName returns a printable name for logs.
func OpcodeName(op byte) string {
	switch op {
	case C_OPCODE_HELLO:
		return "C_HELLO"
	case C_OPCODE_INTENT:
		return "C_INTENT"
	case C_OPCODE_QUIT:
		return "C_QUIT"
	case S_OPCODE_WELCOME:
		return "S_WELCOME"
	case S_OPCODE_GRID:
		return "S_GRID"
	case S_OPCODE_SNAPSHOT:
		return "S_SNAPSHOT"
	case S_OPCODE_DENIED:
		return "S_DENIED"
	}
	return fmt.Sprintf("0x%02x", op)
}

// HandlerFunc handles one client packet. sess is opaque here so this package
// does not import the session type.
type HandlerFunc func(sess any, r *Reader)

type route struct {
	fn      HandlerFunc
	allowed uint8 // SessionState bitmask
}

// RegistryStats counts packets the registry refused to run.
type RegistryStats struct {
	Unknown  uint64
	Rejected uint64 // opcode sent in a state that does not allow it
	Panics   uint64
}

// Registry routes opcodes to handlers, gated by session state.
// Dispatch is called from the game loop goroutine only.
type Registry struct {
	routes [256]*route
	stats  RegistryStats
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

// Register routes opcode to fn for sessions in any of states.
// Registering the same opcode twice replaces the earlier handler.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	rt := &route{fn: fn}
	for _, s := range states {
		rt.allowed |= s.bit()
	}
	reg.routes[opcode] = rt
}

func (reg *Registry) Stats() RegistryStats { return reg.stats }

// Dispatch runs the handler for data[0]. Unknown opcodes are dropped
// silently; a disallowed state, an empty payload or a handler panic is
// returned as an error for the caller to act on.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet")
	}
	op := data[0]
	rt := reg.routes[op]
	if rt == nil {
		reg.stats.Unknown++
		reg.log.Debug("unknown opcode", zap.String("opcode", OpcodeName(op)), zap.Int("size", len(data)))
		return nil
	}
	if rt.allowed&state.bit() == 0 {
		reg.stats.Rejected++
		reg.log.Warn("opcode not allowed in state",
			zap.String("opcode", OpcodeName(op)),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("%s not allowed in state %s", OpcodeName(op), state)
	}
	return reg.call(rt.fn, sess, NewReader(data), op)
}

// call recovers handler panics so one malformed packet cannot stop the loop.
func (reg *Registry) call(fn HandlerFunc, sess any, r *Reader, op byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.stats.Panics++
			reg.log.Error("handler panic recovered",
				zap.String("opcode", OpcodeName(op)),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", OpcodeName(op), rec)
		}
	}()
	fn(sess, r)
	return nil
}
