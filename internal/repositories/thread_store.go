package repositories

import (
	"context"
	"errors"

	"chat-relay/internal/models"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrSameUser       = errors.New("thread requires two distinct users")
)

// ThreadStore is the persistence contract consumed by the relay router. It is
// implemented by the direct Postgres binding (ThreadRepo) and by the remote
// HTTP proxy binding (RemoteThreadStore); the two are interchangeable and
// selected at startup.
type ThreadStore interface {
	// FindOrCreateThread resolves the canonical thread for an unordered user
	// pair, creating it on first contact. Concurrent calls for the same pair
	// must resolve to the same thread.
	FindOrCreateThread(ctx context.Context, userA, userB int64) (models.Thread, error)
	// AppendMessage inserts an unread message row and returns it with the
	// storage-assigned id and timestamp.
	AppendMessage(ctx context.Context, threadID, senderID int64, body string) (models.Message, error)
	// MarkRead flips unread messages in the thread not authored by the
	// acking user. Idempotent.
	MarkRead(ctx context.Context, threadID, ackingUserID int64) error

	GetThread(ctx context.Context, threadID int64) (models.Thread, error)
	ListThreads(ctx context.Context, userID int64) ([]models.Thread, error)
	ListMessages(ctx context.Context, threadID int64) ([]models.Message, error)
}

// canonicalPair orders a user pair ascending so each unordered pair has a
// single representation.
func canonicalPair(userA, userB int64) (int64, int64) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}
