package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

type ThreadStoreMock struct {
	mock.Mock
}

func (m *ThreadStoreMock) FindOrCreateThread(ctx context.Context, userA, userB int64) (models.Thread, error) {
	args := m.Called(ctx, userA, userB)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadStoreMock) AppendMessage(ctx context.Context, threadID, senderID int64, body string) (models.Message, error) {
	args := m.Called(ctx, threadID, senderID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ThreadStoreMock) MarkRead(ctx context.Context, threadID, ackingUserID int64) error {
	args := m.Called(ctx, threadID, ackingUserID)
	return args.Error(0)
}

func (m *ThreadStoreMock) GetThread(ctx context.Context, threadID int64) (models.Thread, error) {
	args := m.Called(ctx, threadID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadStoreMock) ListThreads(ctx context.Context, userID int64) ([]models.Thread, error) {
	args := m.Called(ctx, userID)
	var threads []models.Thread
	if val := args.Get(0); val != nil {
		threads = val.([]models.Thread)
	}
	return threads, args.Error(1)
}

func (m *ThreadStoreMock) ListMessages(ctx context.Context, threadID int64) ([]models.Message, error) {
	args := m.Called(ctx, threadID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

var _ repositories.ThreadStore = (*ThreadStoreMock)(nil)
