package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/presence"
)

func newTestRouter(store *mocks.ThreadStoreMock) (*Router, *Hub, *presence.Registry) {
	hub := NewHub()
	registry := presence.NewRegistry()
	return NewRouter(hub, registry, store, nil), hub, registry
}

func addTestSession(hub *Hub) *Session {
	s := NewSession(nil, ConnInfo{ConnectedAt: time.Now()})
	hub.Add(s)
	return s
}

func nextFrame(t *testing.T, s *Session) models.Envelope {
	t.Helper()
	select {
	case payload := <-s.send:
		var env models.Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	default:
		t.Fatal("expected a queued frame")
		return models.Envelope{}
	}
}

func decodeData(t *testing.T, env models.Envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestRegisterBroadcastsPresenceToOthers(t *testing.T) {
	router, hub, registry := newTestRouter(new(mocks.ThreadStoreMock))
	s1 := addTestSession(hub)
	s2 := addTestSession(hub)

	router.HandleEvent(context.Background(), s1, models.NewEnvelope(models.EventRegisterUser, models.RegisterPayload{UserID: 5}))

	sessionID, ok := registry.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, s1.ID, sessionID)

	env := nextFrame(t, s2)
	assert.Equal(t, models.EventPresence, env.Event)
	var p models.PresencePayload
	decodeData(t, env, &p)
	assert.Equal(t, int64(5), p.UserID)
	assert.True(t, p.Online)

	// The registering session gets no presence echo.
	assert.Empty(t, s1.send)
}

func TestRegisterWithoutUserIDRejected(t *testing.T) {
	router, hub, registry := newTestRouter(new(mocks.ThreadStoreMock))
	s1 := addTestSession(hub)

	router.HandleEvent(context.Background(), s1, models.NewEnvelope(models.EventRegisterUser, models.RegisterPayload{}))

	env := nextFrame(t, s1)
	assert.Equal(t, models.EventError, env.Event)
	assert.Equal(t, 0, registry.Count())
}

func TestSendMessageDeliversAndAcks(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router, hub, _ := newTestRouter(store)
	sender := addTestSession(hub)
	receiver := addTestSession(hub)

	router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventRegisterUser, models.RegisterPayload{UserID: 5}))
	router.HandleEvent(context.Background(), receiver, models.NewEnvelope(models.EventRegisterUser, models.RegisterPayload{UserID: 7}))
	// Drain presence frames queued by the two registrations.
	nextFrame(t, sender)
	nextFrame(t, receiver)

	sentAt := time.Now().UTC().Truncate(time.Millisecond)
	store.On("FindOrCreateThread", mock.Anything, int64(5), int64(7)).
		Return(models.Thread{ID: 3, User1ID: 5, User2ID: 7}, nil).Once()
	store.On("AppendMessage", mock.Anything, int64(3), int64(5), "hi").
		Return(models.Message{ID: 11, ThreadID: 3, SenderID: 5, Body: "hi", SentAt: sentAt}, nil).Once()

	router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventSendMessage, models.SendMessagePayload{
		SenderID: 5, ReceiverID: 7, Body: "hi",
	}))

	delivered := nextFrame(t, receiver)
	assert.Equal(t, models.EventDelivered, delivered.Event)
	ack := nextFrame(t, sender)
	assert.Equal(t, models.EventAck, ack.Event)

	var deliveredPayload, ackPayload models.MessagePayload
	decodeData(t, delivered, &deliveredPayload)
	decodeData(t, ack, &ackPayload)
	assert.Equal(t, deliveredPayload, ackPayload)
	assert.Equal(t, int64(11), ackPayload.MessageID)
	assert.Equal(t, int64(3), ackPayload.ThreadID)
	assert.Equal(t, "hi", ackPayload.Body)

	store.AssertExpectations(t)
}

func TestSendMessageReceiverOffline(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router, hub, _ := newTestRouter(store)
	sender := addTestSession(hub)
	bystander := addTestSession(hub)

	store.On("FindOrCreateThread", mock.Anything, int64(9), int64(11)).
		Return(models.Thread{ID: 4, User1ID: 9, User2ID: 11}, nil).Once()
	store.On("AppendMessage", mock.Anything, int64(4), int64(9), "hola").
		Return(models.Message{ID: 12, ThreadID: 4, SenderID: 9, Body: "hola", SentAt: time.Now()}, nil).Once()

	router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventSendMessage, models.SendMessagePayload{
		SenderID: 9, ReceiverID: 11, Body: "hola",
	}))

	ack := nextFrame(t, sender)
	assert.Equal(t, models.EventAck, ack.Event)
	assert.Empty(t, sender.send)
	assert.Empty(t, bystander.send)

	store.AssertExpectations(t)
}

func TestSendMessageValidation(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router, hub, _ := newTestRouter(store)
	sender := addTestSession(hub)

	cases := []models.SendMessagePayload{
		{ReceiverID: 7, Body: "hi"},
		{SenderID: 5, Body: "hi"},
		{SenderID: 5, ReceiverID: 7},
		{SenderID: 5, ReceiverID: 5, Body: "hi"},
	}
	for _, payload := range cases {
		router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventSendMessage, payload))
		env := nextFrame(t, sender)
		assert.Equal(t, models.EventError, env.Event)
		assert.Empty(t, sender.send)
	}

	store.AssertNotCalled(t, "FindOrCreateThread", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageStorageFailure(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router, hub, registry := newTestRouter(store)
	sender := addTestSession(hub)
	receiver := addTestSession(hub)
	registry.Register(7, receiver.ID)

	store.On("FindOrCreateThread", mock.Anything, int64(5), int64(7)).
		Return(models.Thread{}, assert.AnError).Once()

	router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventSendMessage, models.SendMessagePayload{
		SenderID: 5, ReceiverID: 7, Body: "hi",
	}))

	env := nextFrame(t, sender)
	assert.Equal(t, models.EventError, env.Event)
	assert.Empty(t, sender.send)
	assert.Empty(t, receiver.send)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageAppendFailure(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router, hub, registry := newTestRouter(store)
	sender := addTestSession(hub)
	receiver := addTestSession(hub)
	registry.Register(7, receiver.ID)

	store.On("FindOrCreateThread", mock.Anything, int64(5), int64(7)).
		Return(models.Thread{ID: 3, User1ID: 5, User2ID: 7}, nil).Once()
	store.On("AppendMessage", mock.Anything, int64(3), int64(5), "hi").
		Return(models.Message{}, assert.AnError).Once()

	router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventSendMessage, models.SendMessagePayload{
		SenderID: 5, ReceiverID: 7, Body: "hi",
	}))

	env := nextFrame(t, sender)
	assert.Equal(t, models.EventError, env.Event)
	assert.Empty(t, receiver.send)

	store.AssertExpectations(t)
}

func TestMarkReadFailureStaysSilent(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router, hub, _ := newTestRouter(store)
	s := addTestSession(hub)

	store.On("MarkRead", mock.Anything, int64(3), int64(7)).Return(assert.AnError).Once()

	router.HandleEvent(context.Background(), s, models.NewEnvelope(models.EventMarkRead, models.MarkReadPayload{
		ThreadID: 3, UserID: 7,
	}))

	assert.Empty(t, s.send)
	store.AssertExpectations(t)
}

func TestMarkReadInvalidPayloadIgnored(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router, hub, _ := newTestRouter(store)
	s := addTestSession(hub)

	router.HandleEvent(context.Background(), s, models.NewEnvelope(models.EventMarkRead, models.MarkReadPayload{ThreadID: 3}))

	assert.Empty(t, s.send)
	store.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestTypingForwardedToOnlineReceiver(t *testing.T) {
	router, hub, registry := newTestRouter(new(mocks.ThreadStoreMock))
	sender := addTestSession(hub)
	receiver := addTestSession(hub)
	registry.Register(7, receiver.ID)

	router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventTyping, models.TypingPayload{
		SenderID: 5, ReceiverID: 7, IsTyping: true,
	}))

	env := nextFrame(t, receiver)
	assert.Equal(t, models.EventTypingOut, env.Event)
	var p models.TypingOutPayload
	decodeData(t, env, &p)
	assert.Equal(t, int64(5), p.UserID)
	assert.True(t, p.IsTyping)
	assert.Empty(t, sender.send)
}

func TestTypingOfflineReceiverIsNoop(t *testing.T) {
	router, hub, _ := newTestRouter(new(mocks.ThreadStoreMock))
	sender := addTestSession(hub)

	router.HandleEvent(context.Background(), sender, models.NewEnvelope(models.EventTyping, models.TypingPayload{
		SenderID: 5, ReceiverID: 7, IsTyping: true,
	}))

	assert.Empty(t, sender.send)
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	router, hub, registry := newTestRouter(new(mocks.ThreadStoreMock))
	s1 := addTestSession(hub)
	s2 := addTestSession(hub)
	registry.Register(5, s1.ID)

	router.HandleDisconnect(s1)

	_, ok := registry.Lookup(5)
	assert.False(t, ok)

	env := nextFrame(t, s2)
	assert.Equal(t, models.EventPresence, env.Event)
	var p models.PresencePayload
	decodeData(t, env, &p)
	assert.Equal(t, int64(5), p.UserID)
	assert.False(t, p.Online)
}

func TestDisconnectUnregisteredIsNoop(t *testing.T) {
	router, hub, _ := newTestRouter(new(mocks.ThreadStoreMock))
	s1 := addTestSession(hub)
	s2 := addTestSession(hub)

	router.HandleDisconnect(s1)

	assert.Empty(t, s1.send)
	assert.Empty(t, s2.send)
}

func TestStaleDisconnectKeepsFreshRegistration(t *testing.T) {
	router, hub, registry := newTestRouter(new(mocks.ThreadStoreMock))
	old := addTestSession(hub)
	fresh := addTestSession(hub)
	registry.Register(5, old.ID)
	registry.Register(5, fresh.ID)

	// The orphaned session disconnecting must not evict the new binding or
	// broadcast a spurious offline event.
	router.HandleDisconnect(old)

	sessionID, ok := registry.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, fresh.ID, sessionID)
	assert.Empty(t, fresh.send)
}

func TestUnknownEventReturnsError(t *testing.T) {
	router, hub, _ := newTestRouter(new(mocks.ThreadStoreMock))
	s := addTestSession(hub)

	router.HandleEvent(context.Background(), s, models.Envelope{Event: "bogus"})

	env := nextFrame(t, s)
	assert.Equal(t, models.EventError, env.Event)
}
