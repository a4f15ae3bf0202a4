package net

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Server accepts TCP connections and creates Sessions.
// New/dead sessions are communicated to the game loop via channels.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions
	opts     SessionOptions
	maxConns int
	live     atomic.Int64
	log      *zap.Logger
	closeCh  chan struct{}
	accept   sync.WaitGroup
	wg       sync.WaitGroup // session watchers
}

func NewServer(bindAddr string, maxConns int, opts SessionOptions, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	s := &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		opts:     opts,
		maxConns: maxConns,
		log:      log,
		closeCh:  make(chan struct{}),
	}
	return s, nil
}

// Run starts AcceptLoop in its own goroutine. Shutdown waits for it.
func (s *Server) Run() {
	s.accept.Add(1)
	go func() {
		defer s.accept.Done()
		s.AcceptLoop()
	}()
}

// AcceptLoop accepts connections, creates sessions and pushes them onto the
// newConns channel. It returns once the listener is closed.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		if s.maxConns > 0 && s.live.Load() >= int64(s.maxConns) {
			s.log.Warn("connection limit reached", zap.String("ip", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.opts, s.log)
		sess.Start()
		s.live.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.Wait()
			s.live.Add(-1)
			s.NotifyDead(sess.ID)
		}()

		s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("connection queue full, refusing")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Live is the number of sessions whose I/O goroutines are still running.
func (s *Server) Live() int { return int(s.live.Load()) }

// Shutdown stops accepting new connections, closes sessions the game loop
// never picked up and waits for every server goroutine. Callers close the
// sessions they own first.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	s.accept.Wait()
drain:
	for {
		select {
		case sess := <-s.newConns:
			sess.Close()
		default:
			break drain
		}
	}
	s.wg.Wait()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
