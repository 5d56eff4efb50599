package ws

import (
	"testing"

	"chat-relay/internal/models"
)

func TestHubAddAndRemove(t *testing.T) {
	hub := NewHub()
	s := NewSession(nil, ConnInfo{})

	hub.Add(s)
	if hub.Len() != 1 {
		t.Fatalf("expected session to be registered")
	}
	if _, ok := hub.Get(s.ID); !ok {
		t.Fatalf("expected session to be retrievable")
	}

	hub.Remove(s.ID)
	if hub.Len() != 0 {
		t.Fatalf("expected session to be removed")
	}
}

func TestHubSendToUnknownSession(t *testing.T) {
	hub := NewHub()
	if hub.Send("missing", models.NewEnvelope(models.EventError, models.ErrorPayload{Message: "x"})) {
		t.Fatalf("send to unknown session should report failure")
	}
}

func TestHubBroadcastExcludesOrigin(t *testing.T) {
	hub := NewHub()
	origin := NewSession(nil, ConnInfo{})
	other := NewSession(nil, ConnInfo{})
	hub.Add(origin)
	hub.Add(other)

	hub.Broadcast(origin.ID, models.NewEnvelope(models.EventPresence, models.PresencePayload{UserID: 5, Online: true}))

	if len(other.send) != 1 {
		t.Fatalf("expected one frame for the other session, got %d", len(other.send))
	}
	if len(origin.send) != 0 {
		t.Fatalf("expected no frame for the origin session, got %d", len(origin.send))
	}
}

func TestHubRemoveClosesSession(t *testing.T) {
	hub := NewHub()
	s := NewSession(nil, ConnInfo{})
	hub.Add(s)
	hub.Remove(s.ID)

	if err := s.Send(models.NewEnvelope(models.EventError, models.ErrorPayload{Message: "x"})); err == nil {
		t.Fatalf("expected send on removed session to fail")
	}
}
