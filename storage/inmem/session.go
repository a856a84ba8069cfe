package inmemstore

import (
	"sync/atomic"

	"github.com/trezcool/eudg/core/risk"
)

// SessionStore keeps the current session in memory.
// Readers always see either the previous or the new session, never a mix of both.
type SessionStore struct {
	current atomic.Pointer[risk.Session]
	swaps   atomic.Int64
}

var _ risk.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) Load() *risk.Session {
	return s.current.Load()
}

func (s *SessionStore) Store(sess *risk.Session) {
	if sess == nil {
		return
	}
	s.current.Store(sess)
	s.swaps.Add(1)
}

// Swaps returns the number of sessions published so far.
func (s *SessionStore) Swaps() int64 {
	return s.swaps.Load()
}
