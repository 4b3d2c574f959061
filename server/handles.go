package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/rexpr/target"
)

// pin is a reference value held for a session.
type pin struct {
	value     target.Value
	sessionID string
	lastUsed  time.Time
}

type pinKey struct {
	sessionID string
	ref       uint64
}

// HandleStore maps opaque "h-N" IDs to reference values returned by
// evaluations, so that later expressions and inspections can name them.
// Only reference values get handles; primitives are returned in full.
// Within a session a debuggee reference keeps one handle for as long as
// the handle lives.
type HandleStore struct {
	mu     sync.Mutex
	pins   map[string]*pin
	byRef  map[pinKey]string
	nextID atomic.Uint64
}

// NewHandleStore creates a new handle store.
func NewHandleStore() *HandleStore {
	return &HandleStore{
		pins:  make(map[string]*pin),
		byRef: make(map[pinKey]string),
	}
}

// Create pins value on behalf of a session and returns its handle ID.
// It returns "" for null and for primitive values.
func (s *HandleStore) Create(value target.Value, sessionID string) string {
	if value.IsNull() || !value.Tag().Reference() {
		return ""
	}
	key := pinKey{sessionID, value.Ref().ID()}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if id, ok := s.byRef[key]; ok {
		s.pins[id].lastUsed = now
		return id
	}
	id := fmt.Sprintf("h-%d", s.nextID.Add(1))
	s.pins[id] = &pin{value: value, sessionID: sessionID, lastUsed: now}
	s.byRef[key] = id
	return id
}

// Lookup returns the value pinned under id and marks the handle used.
func (s *HandleStore) Lookup(id string) (target.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[id]
	if !ok {
		return target.Null(), false
	}
	p.lastUsed = time.Now()
	return p.value, true
}

// drop removes a handle. Callers hold s.mu.
func (s *HandleStore) drop(id string, p *pin) {
	delete(s.pins, id)
	delete(s.byRef, pinKey{p.sessionID, p.value.Ref().ID()})
}

// Release removes a handle. It reports whether the handle existed.
func (s *HandleStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[id]
	if ok {
		s.drop(id, p)
	}
	return ok
}

// ReleaseSession removes every handle owned by a session.
func (s *HandleStore) ReleaseSession(sessionID string) int {
	return s.removeIf(func(p *pin) bool { return p.sessionID == sessionID })
}

// Sweep removes handles unused for longer than ttl.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	n := s.removeIf(func(p *pin) bool { return p.lastUsed.Before(cutoff) })
	if n > 0 {
		log.Debugf("swept %d idle handles", n)
	}
	return n
}

func (s *HandleStore) removeIf(match func(*pin) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.pins {
		if match(p) {
			s.drop(id, p)
			n++
		}
	}
	return n
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pins)
}

// StartSweeper sweeps idle handles every interval until the returned
// function is called.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				return
			}
		}
	}()
	return sync.OnceFunc(func() { close(done) })
}
