package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/rexpr/eval"
	"github.com/chazu/rexpr/expr"
	"github.com/chazu/rexpr/vm"
)

// Session binds a client to one suspended debuggee thread. Every
// expression evaluated in the session runs against frame 0 of that thread.
type Session struct {
	ID      string
	Name    string
	Thread  *vm.Thread
	Created time.Time

	walker *expr.Walker
}

// Walker returns the expression walker for the session.
func (s *Session) Walker() *expr.Walker { return s.walker }

// SessionStore manages evaluation sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	handles  *HandleStore
}

// NewSessionStore creates a new session store.
func NewSessionStore(handles *HandleStore) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		handles:  handles,
	}
}

// Create opens a session on th. The bridge is the VM owning the thread.
func (s *SessionStore) Create(v *vm.VM, th *vm.Thread, name string) *Session {
	session := &Session{
		ID:      uuid.NewString(),
		Name:    name,
		Thread:  th,
		Created: time.Now(),
		walker:  expr.NewWalker(eval.New(v, th), s.handles.Lookup),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	log.Infof("session %s opened on thread %s", session.ID, th.Name())
	return session
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// List returns every open session.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session)
	}
	return result
}

// Destroy removes a session and releases all its handles.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		n := s.handles.ReleaseSession(id)
		log.Infof("session %s closed, released %d handles", id, n)
	}
	return ok
}
