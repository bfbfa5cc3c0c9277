package browser

import (
	"fmt"
	"log"
	"sync"

	"github.com/autobill/config"
)

// Registry holds at most one live session per (company, service-kind) key.
// Registering over a live entry is refused instead of silently orphaning the
// old browser process.
type Registry struct {
	mu       sync.Mutex
	sessions map[config.SessionKey]*Session
	logger   *log.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		sessions: make(map[config.SessionKey]*Session),
		logger:   logger,
	}
}

// Put registers a session under its account key. Fails with ErrSessionExists
// if the key is already held.
func (r *Registry) Put(s *Session) error {
	key := s.Account.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, key)
	}
	r.sessions[key] = s
	return nil
}

// Acquire returns the live session for a key, or nil when none is registered.
func (r *Registry) Acquire(key config.SessionKey) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

// Release closes and removes the session for a key. Releasing an absent key
// is a no-op.
func (r *Registry) Release(key config.SessionKey) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if ok {
		s.Close()
		r.logger.Printf("Session released: %s", key)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll releases every session, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for k, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, k)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		r.logger.Printf("All sessions closed (%d)", len(sessions))
	}
}
