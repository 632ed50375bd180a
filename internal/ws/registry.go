package ws

import "sync"

// Registry tracks at most one live session per charge point identity.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register installs the session for its identity. Any prior session for the
// same identity is closed first: a reconnect supersedes a stale connection
// instead of queuing behind it.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	old := r.sessions[s.ChargePointID()]
	r.sessions[s.ChargePointID()] = s
	r.mu.Unlock()

	if old != nil && old != s {
		old.Close()
	}
}

// Unregister removes the session, but only when it is still the current one
// for its identity, so a replacement session is never evicted by the old
// session's teardown.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	if r.sessions[s.ChargePointID()] == s {
		delete(r.sessions, s.ChargePointID())
	}
	r.mu.Unlock()
}

// Lookup returns the live session for an identity. Read-only; used by the
// status API and server-initiated call paths.
func (r *Registry) Lookup(chargePointID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[chargePointID]
	return s, ok
}

// Online reports whether the identity currently has a live session.
func (r *Registry) Online(chargePointID string) bool {
	_, ok := r.Lookup(chargePointID)
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
