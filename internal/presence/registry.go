package presence

import "sync"

// Registry is the authoritative in-memory mapping from user identity to the
// session currently bound to it. At most one session per user: a later
// registration silently replaces the earlier one without closing the old
// session. The raw map is never exposed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]string)}
}

// Register binds the user to the session, replacing any prior binding.
func (r *Registry) Register(userID int64, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = sessionID
}

// Lookup returns the session currently bound to the user.
func (r *Registry) Lookup(userID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.sessions[userID]
	return sessionID, ok
}

// Remove evicts the user's entry only if it still points at the given
// session, so a stale session's teardown cannot evict a fresher binding.
func (r *Registry) Remove(userID int64, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[userID]; ok && current == sessionID {
		delete(r.sessions, userID)
	}
}

// RemoveBySession finds and evicts the user registered through the session.
// A disconnecting session knows its own id but not which user it carried.
func (r *Registry) RemoveBySession(sessionID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, current := range r.sessions {
		if current == sessionID {
			delete(r.sessions, userID)
			return userID, true
		}
	}
	return 0, false
}

// Count reports how many users are currently registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
