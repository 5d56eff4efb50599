package ws

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/internal/models"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

var errSessionClosed = errors.New("session closed")

// Session is one live websocket connection. Outbound frames go through the
// send channel so a single goroutine (writePump) owns all writes to the
// underlying connection.
type Session struct {
	ID   string
	Info ConnInfo

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// NewSession wraps an upgraded connection. conn may be nil in tests; the
// send channel still captures outbound frames.
func NewSession(conn *websocket.Conn, info ConnInfo) *Session {
	return &Session{
		ID:   newConnID(),
		Info: info,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Send queues an event for delivery. A full buffer drops the frame rather
// than blocking the router on one slow client.
func (s *Session) Send(env models.Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	return s.enqueue(payload)
}

func (s *Session) enqueue(payload []byte) (err error) {
	defer func() {
		// The send channel may be closed concurrently by Close.
		if recover() != nil {
			err = errSessionClosed
		}
	}()
	select {
	case s.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// writePump drains the send channel onto the connection. It exits when the
// channel is closed or a write fails.
func (s *Session) writePump() {
	defer s.conn.Close()
	for payload := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("session %s write error: %v", s.ID, err)
			return
		}
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Close shuts the outbound channel. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
