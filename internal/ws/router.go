package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"chat-relay/internal/models"
	"chat-relay/internal/observability"
	"chat-relay/internal/presence"
	"chat-relay/internal/repositories"
	"chat-relay/internal/telemetry"
)

// Router interprets inbound session events, talks to the thread store and
// presence registry, and emits outbound events to the right sessions. Events
// from different sessions may be handled concurrently; the presence registry
// and hub carry their own synchronization.
type Router struct {
	hub      *Hub
	presence *presence.Registry
	store    repositories.ThreadStore
	audit    *telemetry.AuditEmitter
}

// NewRouter constructs a Router.
func NewRouter(hub *Hub, registry *presence.Registry, store repositories.ThreadStore, audit *telemetry.AuditEmitter) *Router {
	return &Router{hub: hub, presence: registry, store: store, audit: audit}
}

// HandleEvent dispatches one inbound frame from a session.
func (r *Router) HandleEvent(ctx context.Context, s *Session, env models.Envelope) {
	switch env.Event {
	case models.EventRegisterUser:
		var p models.RegisterPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			r.sendError(s, "malformed registerUser payload")
			return
		}
		r.handleRegister(s, p)
	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			r.sendError(s, "malformed sendMessage payload")
			return
		}
		r.handleSendMessage(ctx, s, p)
	case models.EventMarkRead:
		var p models.MarkReadPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		r.handleMarkRead(ctx, s, p)
	case models.EventTyping:
		var p models.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		r.handleTyping(s, p)
	default:
		r.sendError(s, fmt.Sprintf("unknown event %q", env.Event))
	}
}

// handleRegister binds the user identity to this session and announces the
// user as online to every other open session. Re-registration simply
// overwrites the previous binding; an orphaned older session is not closed.
func (r *Router) handleRegister(s *Session, p models.RegisterPayload) {
	if p.UserID == 0 {
		r.sendError(s, "userId is required")
		return
	}

	r.presence.Register(p.UserID, s.ID)
	log.Printf("user %d registered on session %s, %d users online", p.UserID, s.ID, r.presence.Count())
	observability.IncRelayEvent("register")

	r.hub.Broadcast(s.ID, models.NewEnvelope(models.EventPresence, models.PresencePayload{
		UserID: p.UserID,
		Online: true,
	}))
}

// handleSendMessage persists the message and pushes it to the receiver if
// online. The sender always gets an ack confirming persistence, not
// delivery. Storage failures are reported to the sender only.
func (r *Router) handleSendMessage(ctx context.Context, s *Session, p models.SendMessagePayload) {
	if p.SenderID == 0 || p.ReceiverID == 0 || p.Body == "" {
		r.sendError(s, "incomplete message data")
		return
	}
	if p.SenderID == p.ReceiverID {
		r.sendError(s, "cannot message yourself")
		return
	}

	thread, err := r.store.FindOrCreateThread(ctx, p.SenderID, p.ReceiverID)
	if err != nil {
		observability.IncStorageError("find_or_create_thread")
		log.Printf("thread resolve failed for pair (%d,%d): %v", p.SenderID, p.ReceiverID, err)
		r.sendError(s, "could not resolve chat thread")
		return
	}

	msg, err := r.store.AppendMessage(ctx, thread.ID, p.SenderID, p.Body)
	if err != nil {
		observability.IncStorageError("append_message")
		log.Printf("message append failed for thread %d: %v", thread.ID, err)
		r.sendError(s, "could not store message")
		return
	}

	payload := models.MessagePayload{
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		SentAt:    msg.SentAt,
	}

	if receiverSession, online := r.presence.Lookup(p.ReceiverID); online {
		if r.hub.Send(receiverSession, models.NewEnvelope(models.EventDelivered, payload)) {
			observability.IncRelayEvent("delivered")
		} else {
			observability.IncRelayEvent("delivery_dropped")
		}
	} else {
		observability.IncRelayEvent("receiver_offline")
	}

	_ = s.Send(models.NewEnvelope(models.EventAck, payload))
	observability.IncRelayEvent("acked")
}

// handleMarkRead is fire-and-forget: read receipts are not safety critical,
// so failures are logged and audited but never surfaced to the caller.
func (r *Router) handleMarkRead(ctx context.Context, s *Session, p models.MarkReadPayload) {
	if p.ThreadID == 0 || p.UserID == 0 {
		return
	}
	if err := r.store.MarkRead(ctx, p.ThreadID, p.UserID); err != nil {
		observability.IncStorageError("mark_read")
		log.Printf("mark read failed for thread %d user %d: %v", p.ThreadID, p.UserID, err)
		r.audit.Emit(ctx, "WARN", fmt.Sprintf("mark read failed for thread %d: %v", p.ThreadID, err), s.Info.RequestID, nil)
	}
}

// handleTyping forwards the indicator to the receiver's session if online.
// Nothing is persisted and an offline receiver is not an error.
func (r *Router) handleTyping(s *Session, p models.TypingPayload) {
	receiverSession, online := r.presence.Lookup(p.ReceiverID)
	if !online {
		return
	}
	r.hub.Send(receiverSession, models.NewEnvelope(models.EventTypingOut, models.TypingOutPayload{
		UserID:   p.SenderID,
		IsTyping: p.IsTyping,
	}))
}

// HandleDisconnect evicts the session's presence entry, if any, and
// announces the user as offline. Pure no-op for sessions that never
// registered.
func (r *Router) HandleDisconnect(s *Session) {
	userID, registered := r.presence.RemoveBySession(s.ID)
	if !registered {
		return
	}
	log.Printf("user %d disconnected from session %s, %d users online", userID, s.ID, r.presence.Count())
	observability.IncRelayEvent("unregister")

	r.hub.Broadcast(s.ID, models.NewEnvelope(models.EventPresence, models.PresencePayload{
		UserID: userID,
		Online: false,
	}))
}

func (r *Router) sendError(s *Session, message string) {
	observability.IncRelayEvent("client_error")
	_ = s.Send(models.NewEnvelope(models.EventError, models.ErrorPayload{Message: message}))
}
