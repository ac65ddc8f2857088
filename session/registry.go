package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry holds the sessions of every player that completed the login.
type Registry struct {
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// AddSession adds the session under the UUID passed. It returns false if another session is
// already registered with the same UUID or username.
func (r *Registry) AddSession(id uuid.UUID, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return false
	}
	for _, s := range r.sessions {
		if strings.EqualFold(s.profile.Name, session.profile.Name) {
			return false
		}
	}
	r.sessions[id] = session
	return true
}

func (r *Registry) GetSession(id uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

func (r *Registry) GetSessionByUsername(username string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if strings.EqualFold(session.profile.Name, username) {
			return session
		}
	}
	return nil
}

// RemoveSession removes the session registered under the UUID passed, if it is the session passed.
func (r *Registry) RemoveSession(id uuid.UUID, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[id] == session {
		delete(r.sessions, id)
	}
}

func (r *Registry) GetSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Count returns the amount of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
