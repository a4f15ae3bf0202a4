package handler

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
	"github.com/sweepgrid/server/internal/sim"
)

const (
	maxNameLen = 24
	playerSize = 0.8 // tile fraction
)

// Denial reasons sent in S_DENIED.
const (
	DeniedPassword = "bad password"
	DeniedName     = "bad name"
	DeniedFull     = "no room"
)

// HashPassword produces the bcrypt hash stored in [network] password_hash.
func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// HandleHello processes C_HELLO.
// Format: [opcode][name\0][password\0]
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	name := strings.TrimSpace(r.ReadS())
	password := r.ReadS()

	if hash := deps.Config.Network.PasswordHash; hash != "" {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			deps.Log.Info(fmt.Sprintf("hello rejected  session=%d  ip=%s", sess.ID, sess.IP))
			deny(sess, DeniedPassword)
			return
		}
	}
	if name == "" || len(name) > maxNameLen {
		deny(sess, DeniedName)
		return
	}

	sess.Name = name
	if err := spawnFor(sess, deps); err != nil {
		deps.Log.Warn("no entity for session", zap.Uint64("session", sess.ID), zap.Error(err))
		deny(sess, DeniedFull)
		return
	}
	sess.SetState(packet.StatePlaying)

	sendWelcome(sess, deps.Sim)
	sendGrid(sess, deps.Sim)
	deps.Log.Info(fmt.Sprintf("player joined  session=%d  name=%s  entity=%s", sess.ID, name, sess.Entity))
}

// spawnFor gives sess a fresh stationary entity in the first open, empty
// cell and records the session as its owner.
func spawnFor(sess *net.Session, deps *Deps) error {
	col, row, ok := freeCell(deps.Sim)
	if !ok {
		return fmt.Errorf("no free cell")
	}
	id, err := deps.Sim.SpawnInCell(ecs.KindMario, col, row, playerSize, geom.Vec2{})
	if err != nil {
		return err
	}
	deps.Sim.Owners().Set(id, &sim.Owner{Session: sess.ID, Name: sess.Name})
	sess.Entity, sess.HasEntity = id, true
	return nil
}

// freeCell scans row-major for a non-wall cell no live hitbox overlaps.
func freeCell(s *sim.Sim) (col, row int, ok bool) {
	g := s.Grid()
	st := s.Store()
	for idx := 0; idx < g.Cells(); idx++ {
		if g.IsWall(idx) {
			continue
		}
		cell := g.CellBounds(idx)
		taken := false
		st.Each(func(id ecs.EntityID) {
			if !taken && st.Hitbox(id).Overlaps(cell) {
				taken = true
			}
		})
		if !taken {
			col, row = g.ColRow(idx)
			return col, row, true
		}
	}
	return 0, 0, false
}

func deny(sess *net.Session, reason string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_DENIED)
	w.WriteS(reason)
	sess.Send(w.Bytes())
	sess.Linger()
	sess.FlushOutput()
}
