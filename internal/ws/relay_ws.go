package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-relay/internal/models"
	"chat-relay/internal/observability"
)

const maxFrameSize = 64 * 1024

// RelayWebSocketHandler accepts relay websocket connections and feeds their
// frames to the Router.
type RelayWebSocketHandler struct {
	hub    *Hub
	router *Router
}

// NewRelayWebSocketHandler constructs a RelayWebSocketHandler.
func NewRelayWebSocketHandler(hub *Hub, router *Router) *RelayWebSocketHandler {
	return &RelayWebSocketHandler{hub: hub, router: router}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers the session and runs its read
// loop. Registration with a user identity happens later through the
// registerUser event; until then the session is connected but anonymous.
func (h *RelayWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-relay/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxFrameSize)

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	session := NewSession(conn, info)
	h.hub.Add(session)

	observability.IncWSActive("relay")
	observability.IncWSEvent("relay", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.relay", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   lifecyclePayload(session, "ws_connect", ""),
	}, observability.BuildHeaders(requestID, traceID))

	go session.writePump()
	go h.readLoop(context.WithoutCancel(ctx), session)
}

func (h *RelayWebSocketHandler) readLoop(ctx context.Context, session *Session) {
	var closeReason string
	defer func() {
		h.router.HandleDisconnect(session)
		h.hub.Remove(session.ID)
		observability.DecWSActive("relay")
		observability.IncWSEvent("relay", "ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.relay", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   lifecyclePayload(session, "ws_disconnect", closeReason),
		}, observability.BuildHeaders(session.Info.RequestID, session.Info.TraceID))
	}()

	for {
		_, frame, err := session.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("relay", "ws_error")
				_ = observability.PublishEvent(ctx, "ws_events.relay", observability.EventEnvelope{
					EventType: "ws_events",
					EventName: "ws_error",
					Payload:   lifecyclePayload(session, "ws_error", closeReason),
				}, observability.BuildHeaders(session.Info.RequestID, session.Info.TraceID))
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			_ = session.Send(models.NewEnvelope(models.EventError, models.ErrorPayload{Message: "malformed frame"}))
			continue
		}
		h.router.HandleEvent(ctx, session, env)
	}
}

func lifecyclePayload(session *Session, event, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "relay",
			"event":       event,
			"conn_id":     session.ID,
			"duration_ms": time.Since(session.Info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"device_id": session.Info.DeviceID,
			"ip":        session.Info.IP,
		},
	}
}
