package handler

import (
	stdnet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweepgrid/server/internal/config"
	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/core/event"
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
	"github.com/sweepgrid/server/internal/sim"
	"github.com/sweepgrid/server/internal/world"
)

func newDeps(t *testing.T, mutate ...func(*config.Config)) *Deps {
	t.Helper()
	cfg := config.Default()
	for _, fn := range mutate {
		fn(cfg)
	}
	log := zaptest.NewLogger(t)
	return &Deps{
		Config:   cfg,
		Log:      log,
		Sim:      sim.New(cfg, event.NewBus(), log),
		Sessions: net.NewSessionStore(),
	}
}

// newSession returns an unstarted session; tests read its OutQueue directly.
func newSession(t *testing.T, deps *Deps, id uint64) *net.Session {
	t.Helper()
	client, server := stdnet.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	sess := net.NewSession(server, id, net.SessionOptions{InQueueSize: 4, OutQueueSize: 16}, deps.Log)
	deps.Sessions.Add(sess)
	return sess
}

func hello(name, password string) *packet.Reader {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_HELLO)
	w.WriteS(name)
	w.WriteS(password)
	return packet.NewReader(w.Bytes())
}

// sent flushes sess and returns the queued packets.
func sent(sess *net.Session) [][]byte {
	sess.FlushOutput()
	var out [][]byte
	for {
		select {
		case data := <-sess.OutQueue:
			out = append(out, data)
		default:
			return out
		}
	}
}

func opcodes(pkts [][]byte) []byte {
	var ops []byte
	for _, p := range pkts {
		if p == nil {
			ops = append(ops, 0)
			continue
		}
		ops = append(ops, p[0])
	}
	return ops
}

func TestHelloJoinsAndSpawns(t *testing.T) {
	deps := newDeps(t)
	first := newSession(t, deps, 1)
	second := newSession(t, deps, 2)

	HandleHello(first, hello(" alice ", ""), deps)
	HandleHello(second, hello("bob", ""), deps)

	require.True(t, first.HasEntity)
	assert.Equal(t, packet.StatePlaying, first.State())
	assert.Equal(t, "alice", first.Name)
	assert.Equal(t, geom.Rect(10, 10, 80, 80), deps.Sim.Store().Hitbox(first.Entity))
	assert.Equal(t, geom.Rect(110, 10, 80, 80), deps.Sim.Store().Hitbox(second.Entity), "next free cell")

	owner, ok := deps.Sim.Owners().Get(second.Entity)
	require.True(t, ok)
	assert.Equal(t, sim.Owner{Session: 2, Name: "bob"}, *owner)

	pkts := sent(first)
	require.Equal(t, []byte{packet.S_OPCODE_WELCOME, packet.S_OPCODE_GRID}, opcodes(pkts))
	r := packet.NewReader(pkts[0])
	assert.Equal(t, int32(first.Entity), r.ReadD())
	assert.Equal(t, uint16(16), r.ReadH())
	assert.Equal(t, uint16(9), r.ReadH())
	assert.Equal(t, float32(100), r.ReadFixedD())
	assert.Equal(t, float32(100), r.ReadFixedD())
}

func TestHelloDenials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	locked := func(c *config.Config) { c.Network.PasswordHash = string(hash) }

	tests := []struct {
		name     string
		mutate   []func(*config.Config)
		user     string
		password string
		full     bool
		reason   string
	}{
		{name: "wrong password", mutate: []func(*config.Config){locked}, user: "alice", password: "nope", reason: DeniedPassword},
		{name: "empty name", user: "   ", reason: DeniedName},
		{name: "long name", user: "abcdefghijklmnopqrstuvwxyz", reason: DeniedName},
		{name: "no open cell", user: "alice", full: true, reason: DeniedFull},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := newDeps(t, tc.mutate...)
			if tc.full {
				deps.Sim.Grid().Fill(world.LabelWall)
			}
			sess := newSession(t, deps, 1)

			HandleHello(sess, hello(tc.user, tc.password), deps)

			assert.False(t, sess.HasEntity)
			assert.Equal(t, packet.StateClosing, sess.State())
			assert.Zero(t, deps.Sim.Store().Len())
			pkts := sent(sess)
			require.Equal(t, []byte{packet.S_OPCODE_DENIED, 0}, opcodes(pkts), "denial then close marker")
			assert.Equal(t, tc.reason, packet.NewReader(pkts[0]).ReadS())
		})
	}
}

func TestHelloCorrectPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	deps := newDeps(t, func(c *config.Config) { c.Network.PasswordHash = string(hash) })
	sess := newSession(t, deps, 1)

	HandleHello(sess, hello("alice", "sesame"), deps)
	assert.True(t, sess.HasEntity)
	assert.Equal(t, packet.StatePlaying, sess.State())
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("sesame")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("sesame")))
}

func TestIntentSetsVelocityInTiles(t *testing.T) {
	deps := newDeps(t)
	sess := newSession(t, deps, 1)
	HandleHello(sess, hello("alice", ""), deps)

	w := packet.NewWriterWithOpcode(packet.C_OPCODE_INTENT)
	w.WriteFixedH(1.5)
	w.WriteFixedH(-1)
	HandleIntent(sess, packet.NewReader(w.Bytes()), deps)

	assert.Equal(t, geom.V(150, -100), deps.Sim.Store().Velocity(sess.Entity))
}

func TestIntentWithoutEntityIsIgnored(t *testing.T) {
	deps := newDeps(t)
	sess := newSession(t, deps, 1)
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_INTENT)
	w.WriteFixedH(1)
	w.WriteFixedH(1)
	assert.NotPanics(t, func() { HandleIntent(sess, packet.NewReader(w.Bytes()), deps) })
}

func TestReleaseDespawnsEntity(t *testing.T) {
	deps := newDeps(t)
	sess := newSession(t, deps, 1)
	HandleHello(sess, hello("alice", ""), deps)
	id := sess.Entity

	Release(sess, deps)
	assert.False(t, sess.HasEntity)
	assert.Equal(t, []ecs.EntityID{id}, deps.Sim.Flush())
	assert.False(t, deps.Sim.Owners().Has(id))
}

func intent(vx, vy float32) *packet.Reader {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_INTENT)
	w.WriteFixedH(vx)
	w.WriteFixedH(vy)
	return packet.NewReader(w.Bytes())
}

// nextTick delivers the events emitted so far, as the Events phase does.
func nextTick(deps *Deps) {
	deps.Sim.Bus().SwapBuffers()
	deps.Sim.Bus().DispatchAll()
}

func TestOnDespawnedRespawnsPlayer(t *testing.T) {
	deps := newDeps(t)
	Watch(deps.Sim.Bus(), deps)
	sess := newSession(t, deps, 1)
	HandleHello(sess, hello("alice", ""), deps)
	sent(sess)
	old := sess.Entity

	deps.Sim.Despawn(old, event.ReasonOffGrid)
	deps.Sim.Flush()
	assert.False(t, sess.HasEntity, "unbound as soon as the slot is freed")

	nextTick(deps)
	require.True(t, sess.HasEntity)
	assert.True(t, deps.Sim.OwnedBy(sess.Entity, sess.ID))
	assert.Equal(t, []byte{packet.S_OPCODE_WELCOME}, opcodes(sent(sess)))
}

func TestFreedSlotReusedByAnotherSession(t *testing.T) {
	deps := newDeps(t)
	Watch(deps.Sim.Bus(), deps)
	p := newSession(t, deps, 1)
	HandleHello(p, hello("alice", ""), deps)
	freed := p.Entity

	deps.Sim.Despawn(freed, event.ReasonScript)
	deps.Sim.Flush()

	// bob joins before the despawn event is dispatched and gets the slot
	q := newSession(t, deps, 2)
	HandleHello(q, hello("bob", ""), deps)
	require.Equal(t, freed, q.Entity)

	HandleIntent(p, intent(1, 0), deps)
	assert.True(t, deps.Sim.Store().Velocity(q.Entity).IsZero(), "alice cannot steer bob")

	nextTick(deps)
	require.True(t, p.HasEntity)
	assert.NotEqual(t, freed, p.Entity)
	assert.Equal(t, freed, q.Entity, "bob keeps his entity")
	assert.True(t, deps.Sim.OwnedBy(q.Entity, q.ID))
	assert.True(t, deps.Sim.OwnedBy(p.Entity, p.ID))

	HandleIntent(p, intent(1, 0), deps)
	assert.Equal(t, geom.V(100, 0), deps.Sim.Store().Velocity(p.Entity))
	assert.True(t, deps.Sim.Store().Velocity(q.Entity).IsZero())
}

func TestIntentForUnownedEntityIsIgnored(t *testing.T) {
	deps := newDeps(t)
	sess := newSession(t, deps, 1)
	id, err := deps.Sim.SpawnInCell(ecs.KindMario, 3, 3, 0.8, geom.Vec2{})
	require.NoError(t, err)
	sess.Entity, sess.HasEntity = id, true

	HandleIntent(sess, intent(1, 0), deps)
	assert.True(t, deps.Sim.Store().Velocity(id).IsZero())
}

func TestOnDespawnedIgnoresDisconnect(t *testing.T) {
	deps := newDeps(t)
	sess := newSession(t, deps, 1)
	HandleHello(sess, hello("alice", ""), deps)
	sent(sess)

	OnDespawned(event.EntityDespawned{Entity: sess.Entity, Reason: event.ReasonDisconnect, Session: sess.ID, Owned: true}, deps)
	assert.Empty(t, sent(sess))
}

func TestSnapshotPacket(t *testing.T) {
	deps := newDeps(t)
	id, err := deps.Sim.Spawn(ecs.KindBomb, geom.Rect(12.5, 20, 50, 40), geom.V(10, 0))
	require.NoError(t, err)
	deps.Sim.Store().SetFrame(id, 3)
	deps.Sim.Step(0)

	data, rows := SnapshotPacket(deps.Sim, nil)
	require.Len(t, rows, 1)

	r := packet.NewReader(data)
	require.Equal(t, packet.S_OPCODE_SNAPSHOT, r.Opcode())
	assert.Equal(t, int32(1), r.ReadD(), "frame low word")
	assert.Equal(t, int32(0), r.ReadD(), "frame high word")
	assert.Equal(t, uint16(1), r.ReadH())
	assert.Equal(t, int32(id), r.ReadD())
	assert.Equal(t, byte(ecs.KindBomb), r.ReadC())
	assert.Equal(t, uint16(3), r.ReadH())
	corners := []geom.Vec2{{X: 12.5, Y: 20}, {X: 62.5, Y: 20}, {X: 62.5, Y: 60}, {X: 12.5, Y: 60}}
	for i, want := range corners {
		got := geom.V(r.ReadFixedD(), r.ReadFixedD())
		assert.Equal(t, want, got, "corner %d", i)
	}
	assert.Zero(t, r.Remaining())
}

func TestGridPacketAndBroadcast(t *testing.T) {
	deps := newDeps(t)
	deps.Sim.Grid().SetLabel(deps.Sim.Grid().Index(2, 1), world.LabelWall)
	playing := newSession(t, deps, 1)
	playing.SetState(packet.StatePlaying)
	waiting := newSession(t, deps, 2)

	Broadcast(deps.Sessions, GridPacket(deps.Sim))

	assert.Empty(t, sent(waiting))
	pkts := sent(playing)
	require.Len(t, pkts, 1)
	r := packet.NewReader(pkts[0])
	assert.Equal(t, uint16(16), r.ReadH())
	assert.Equal(t, uint16(9), r.ReadH())
	labels := r.ReadBytes(16 * 9)
	assert.Equal(t, byte(world.LabelWall), labels[16+2])
	assert.Equal(t, byte(world.LabelNone), labels[0])
}
