package models

import (
	"encoding/json"
	"time"
)

// Websocket event names. Inbound names follow the client API; outbound names
// are kept from the original wire contract for client compatibility.
const (
	EventRegisterUser = "registerUser"
	EventSendMessage  = "sendMessage"
	EventMarkRead     = "markRead"
	EventTyping       = "typing"

	EventPresence  = "usuarioConectado"
	EventDelivered = "nuevoMensaje"
	EventAck       = "mensajeEnviado"
	EventTypingOut = "usuarioEscribiendo"
	EventError     = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RegisterPayload binds a session to a user identity.
type RegisterPayload struct {
	UserID int64 `json:"userId"`
}

// SendMessagePayload carries an inbound direct message.
type SendMessagePayload struct {
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Body       string `json:"body"`
}

// MarkReadPayload acknowledges all unread messages in a thread.
type MarkReadPayload struct {
	ThreadID int64 `json:"threadId"`
	UserID   int64 `json:"userId"`
}

// TypingPayload is an ephemeral typing indicator.
type TypingPayload struct {
	SenderID   int64 `json:"senderId"`
	ReceiverID int64 `json:"receiverId"`
	IsTyping   bool  `json:"isTyping"`
}

// PresencePayload announces a presence change to other sessions.
type PresencePayload struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

// MessagePayload is pushed to the receiver (nuevoMensaje) and echoed to the
// sender (mensajeEnviado) as the persistence acknowledgment.
type MessagePayload struct {
	MessageID int64     `json:"messageId"`
	ThreadID  int64     `json:"threadId"`
	SenderID  int64     `json:"senderId"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

// TypingOutPayload is pushed to the receiver of a typing indicator.
type TypingOutPayload struct {
	UserID   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

// ErrorPayload reports a validation or storage failure to the origin session.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Marshal encodes the envelope for the wire.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// NewEnvelope marshals a payload into a framed event. Marshal errors cannot
// occur for the payload types above, so they are swallowed.
func NewEnvelope(event string, payload any) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Event: event, Data: data}
}
