package net

import "sort"

// SessionStore tracks connected sessions for the game loop.
// Game loop only; no locks.
type SessionStore struct {
	byID map[uint64]*Session
	ids  []uint64 // sorted, rebuilt lazily
	// dirty is set when ids needs rebuilding
	dirty bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[uint64]*Session)}
}

func (s *SessionStore) Add(sess *Session) {
	s.byID[sess.ID] = sess
	s.dirty = true
}

func (s *SessionStore) Remove(id uint64) (*Session, bool) {
	sess, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
		s.dirty = true
	}
	return sess, ok
}

func (s *SessionStore) Get(id uint64) (*Session, bool) {
	sess, ok := s.byID[id]
	return sess, ok
}

func (s *SessionStore) Len() int { return len(s.byID) }

// ForEach visits sessions in ascending id order.
func (s *SessionStore) ForEach(fn func(*Session)) {
	if s.dirty {
		s.ids = s.ids[:0]
		for id := range s.byID {
			s.ids = append(s.ids, id)
		}
		sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })
		s.dirty = false
	}
	for _, id := range s.ids {
		if sess, ok := s.byID[id]; ok {
			fn(sess)
		}
	}
}
