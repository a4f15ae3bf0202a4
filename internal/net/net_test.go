package net

import (
	"bytes"
	"io"
	stdnet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/sweepgrid/server/internal/net/packet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{packet.C_OPCODE_QUIT, 1, 2}))
	assert.Equal(t, []byte{5, 0, packet.C_OPCODE_QUIT, 1, 2}, buf.Bytes())

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{packet.C_OPCODE_QUIT, 1, 2}, got)
}

func TestFrameErrors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{2, 0}))
	assert.ErrorIs(t, err, ErrFrameSize, "empty payload")
	_, err = ReadFrame(bytes.NewReader([]byte{1, 0}))
	assert.ErrorIs(t, err, ErrFrameSize, "length shorter than the header")
	_, err = ReadFrame(bytes.NewReader([]byte{9, 0, 1}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "truncated")

	var buf bytes.Buffer
	assert.ErrorIs(t, WriteFrame(&buf, make([]byte, MaxPayload+1)), ErrFrameSize)
	assert.ErrorIs(t, WriteFrame(&buf, nil), ErrFrameSize)
	assert.Zero(t, buf.Len(), "nothing written on error")
	require.NoError(t, WriteFrame(&buf, make([]byte, MaxPayload)))
	assert.Equal(t, 0xFFFF, buf.Len())
}

func TestServerSessionLifecycle(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", 4, SessionOptions{InQueueSize: 4, OutQueueSize: 4}, zaptest.NewLogger(t))
	require.NoError(t, err)
	srv.Run()
	defer srv.Shutdown()

	conn, err := stdnet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	var sess *Session
	select {
	case sess = <-srv.NewSessions():
	case <-time.After(2 * time.Second):
		t.Fatal("no session accepted")
	}
	assert.Equal(t, packet.StateHandshake, sess.State())

	require.NoError(t, WriteFrame(conn, []byte{packet.C_OPCODE_INTENT, 0x64, 0x00, 0x9c, 0xff}))
	select {
	case data := <-sess.InQueue:
		r := packet.NewReader(data)
		assert.Equal(t, packet.C_OPCODE_INTENT, r.Opcode())
		assert.Equal(t, float32(1), r.ReadFixedH())
		assert.Equal(t, float32(-1), r.ReadFixedH())
	case <-time.After(2 * time.Second):
		t.Fatal("no packet queued")
	}

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_DENIED)
	w.WriteS("full")
	sess.Send(w.Bytes())
	sess.FlushOutput()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	reply, err := ReadFrame(conn)
	require.NoError(t, err)
	r := packet.NewReader(reply)
	assert.Equal(t, packet.S_OPCODE_DENIED, r.Opcode())
	assert.Equal(t, "full", r.ReadS())

	conn.Close()
	select {
	case id := <-srv.DeadSessions():
		assert.Equal(t, sess.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("dead session not reported")
	}
	assert.True(t, sess.IsClosed())
	assert.Equal(t, packet.StateClosing, sess.State())
	assert.Zero(t, srv.Live())
}

func TestServerConnectionLimit(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", 1, SessionOptions{InQueueSize: 1, OutQueueSize: 1}, zaptest.NewLogger(t))
	require.NoError(t, err)
	srv.Run()

	first, err := stdnet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	sess := <-srv.NewSessions()

	second, err := stdnet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = second.Read(make([]byte, 1))
	assert.Error(t, err, "refused connection is closed by the server")

	sess.Close()
	srv.Shutdown()
}

func TestSessionRateLimit(t *testing.T) {
	client, server := stdnet.Pipe()
	defer client.Close()
	sess := NewSession(server, 1, SessionOptions{InQueueSize: 64, OutQueueSize: 1, PktPerSec: 2}, zaptest.NewLogger(t))
	sess.Start()

	go func() {
		for i := 0; i < 50; i++ {
			if WriteFrame(client, []byte{packet.C_OPCODE_QUIT}) != nil {
				return
			}
		}
	}()
	sess.Wait()
	assert.True(t, sess.IsClosed())
	assert.Less(t, len(sess.InQueue), 50)
}

func TestSessionLingerFlushesThenCloses(t *testing.T) {
	client, server := stdnet.Pipe()
	defer client.Close()
	sess := NewSession(server, 7, SessionOptions{InQueueSize: 1, OutQueueSize: 4}, zaptest.NewLogger(t))
	sess.Start()

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_DENIED)
	w.WriteS("bad name")
	sess.Send(w.Bytes())
	sess.Linger()
	sess.FlushOutput()
	assert.Equal(t, packet.StateClosing, sess.State())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	reply, err := ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, "bad name", packet.NewReader(reply).ReadS())

	sess.Wait()
	assert.True(t, sess.IsClosed())
}

func TestSessionStore(t *testing.T) {
	log := zaptest.NewLogger(t)
	store := NewSessionStore()
	var conns []stdnet.Conn
	for _, id := range []uint64{3, 1, 2} {
		client, server := stdnet.Pipe()
		conns = append(conns, client, server)
		store.Add(NewSession(server, id, SessionOptions{}, log))
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	var order []uint64
	store.ForEach(func(s *Session) { order = append(order, s.ID) })
	assert.Equal(t, []uint64{1, 2, 3}, order)

	sess, ok := store.Get(2)
	require.True(t, ok)
	assert.Equal(t, uint64(2), sess.ID)

	_, ok = store.Remove(2)
	require.True(t, ok)
	_, ok = store.Remove(2)
	assert.False(t, ok)
	_, ok = store.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())

	order = order[:0]
	store.ForEach(func(s *Session) { order = append(order, s.ID) })
	assert.Equal(t, []uint64{1, 3}, order)
}
