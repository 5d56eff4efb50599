package ws

import (
	"log"
	"sync"

	"chat-relay/internal/models"
)

// Hub is the directory of all currently open sessions, registered or not. It
// is distinct from the presence registry, which only tracks sessions bound to
// a user identity.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Add registers an open session.
func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// Remove drops the session from the directory and closes its outbound
// channel. No-op for unknown ids.
func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Get looks up a session by id.
func (h *Hub) Get(sessionID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sessionID]
	return s, ok
}

// Send delivers an event to one session. Returns false if the session is
// gone or its buffer is full.
func (h *Hub) Send(sessionID string, env models.Envelope) bool {
	s, ok := h.Get(sessionID)
	if !ok {
		return false
	}
	if err := s.Send(env); err != nil {
		log.Printf("send to session %s failed: %v", sessionID, err)
		return false
	}
	return true
}

// Broadcast fans an event out to every open session except the origin.
func (h *Hub) Broadcast(excludeSessionID string, env models.Envelope) {
	payload, err := env.Marshal()
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		if id == excludeSessionID {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.enqueue(payload); err != nil {
			log.Printf("broadcast to session %s failed: %v", s.ID, err)
		}
	}
}

// Len reports the number of open sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
