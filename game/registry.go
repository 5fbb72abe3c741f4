package game

import "sync"

// Registry is the process-local table of live sessions keyed by room
// token. A given room token is owned by a single process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  func(token string) *Session
}

// NewRegistry creates a registry. factory builds a fresh LOBBY session
// for an unseen room token.
func NewRegistry(factory func(token string) *Session) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// GetOrCreate returns the live session for a room token, creating a
// fresh one when none exists. A terminated session is released exactly
// once, on its terminal transition.
func (r *Registry) GetOrCreate(token string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[token]; ok {
		return s
	}
	s := r.factory(token)
	s.onEnd = func() { r.Remove(token) }
	r.sessions[token] = s
	return s
}

// Get returns the live session for a room token, or nil.
func (r *Registry) Get(token string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[token]
}

// Remove drops a session from the table. Idempotent.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
