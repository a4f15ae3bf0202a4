package handler

import (
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
	"github.com/sweepgrid/server/internal/sim"
)

// sendWelcome sends S_WELCOME with the session's entity and the grid shape.
func sendWelcome(sess *net.Session, s *sim.Sim) {
	g := s.Grid()
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_WELCOME)
	w.WriteDU(uint32(sess.Entity))
	w.WriteH(uint16(g.Width()))
	w.WriteH(uint16(g.Height()))
	w.WriteFixedD(g.TileWidth())
	w.WriteFixedD(g.TileHeight())
	sess.Send(w.Bytes())
}

// sendGrid sends S_GRID: every cell label, row-major.
func sendGrid(sess *net.Session, s *sim.Sim) {
	sess.Send(GridPacket(s))
}

// GridPacket builds S_GRID. Sent on join and again whenever labels change.
func GridPacket(s *sim.Sim) []byte {
	g := s.Grid()
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_GRID)
	w.WriteH(uint16(g.Width()))
	w.WriteH(uint16(g.Height()))
	for i := 0; i < g.Cells(); i++ {
		w.WriteC(byte(g.Label(i)))
	}
	return w.Bytes()
}

// SnapshotPacket builds S_SNAPSHOT from the simulation's live entities.
// rows is scratch reused between ticks.
func SnapshotPacket(s *sim.Sim, rows []sim.EntityState) ([]byte, []sim.EntityState) {
	rows = s.Snapshot(rows[:0])
	frame := s.Frame()
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SNAPSHOT)
	w.WriteDU(uint32(frame))
	w.WriteDU(uint32(frame >> 32))
	w.WriteH(uint16(len(rows)))
	for _, e := range rows {
		w.WriteDU(uint32(e.ID))
		w.WriteC(byte(e.Kind))
		w.WriteH(e.Frame)
		for _, p := range e.Hitbox {
			w.WriteFixedD(p.X)
			w.WriteFixedD(p.Y)
		}
	}
	return w.Bytes(), rows
}

// Broadcast queues data for every playing session.
func Broadcast(sessions *net.SessionStore, data []byte) {
	sessions.ForEach(func(sess *net.Session) {
		if sess.State() == packet.StatePlaying {
			sess.Send(data)
		}
	})
}
