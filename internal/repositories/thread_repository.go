package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/jmoiron/sqlx"

	"chat-relay/internal/models"
)

// ThreadRepo is the sqlx-backed direct binding of ThreadStore.
type ThreadRepo struct {
	db *sqlx.DB
}

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(db *sqlx.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// FindOrCreateThread resolves or creates the thread for the pair. The upsert
// rides on UNIQUE(user1_id, user2_id), so two concurrent first messages for
// the same pair cannot create two rows.
func (r *ThreadRepo) FindOrCreateThread(ctx context.Context, userA, userB int64) (models.Thread, error) {
	if userA == userB {
		return models.Thread{}, ErrSameUser
	}
	user1, user2 := canonicalPair(userA, userB)

	var thread models.Thread
	query := `SELECT id, user1_id, user2_id, created_at, last_message, last_message_at
        FROM chat_threads WHERE user1_id=$1 AND user2_id=$2`
	err := r.db.GetContext(ctx, &thread, query, user1, user2)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, err
	}

	// DO UPDATE instead of DO NOTHING so the RETURNING clause also yields
	// the row when a concurrent insert won the race.
	err = r.db.GetContext(ctx, &thread, `INSERT INTO chat_threads (user1_id, user2_id)
        VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
        RETURNING id, user1_id, user2_id, created_at, last_message, last_message_at`, user1, user2)
	if err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

// AppendMessage stores an unread message and best-effort refreshes the
// thread's last-message cache.
func (r *ThreadRepo) AppendMessage(ctx context.Context, threadID, senderID int64, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (thread_id, sender_id, body)
        VALUES ($1, $2, $3)
        RETURNING id, thread_id, sender_id, body, sent_at, is_read`, threadID, senderID, body).
		Scan(&msg.ID, &msg.ThreadID, &msg.SenderID, &msg.Body, &msg.SentAt, &msg.IsRead)
	if err != nil {
		return models.Message{}, err
	}

	// Cache update is secondary; its failure must not fail the insert.
	if _, err := r.db.ExecContext(ctx, `UPDATE chat_threads SET last_message=$1, last_message_at=$2 WHERE id=$3`,
		msg.Body, msg.SentAt, threadID); err != nil {
		log.Printf("thread %d last-message cache update failed: %v", threadID, err)
	}
	return msg, nil
}

// MarkRead flips unread messages not authored by the acking user.
func (r *ThreadRepo) MarkRead(ctx context.Context, threadID, ackingUserID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE thread_id=$1 AND sender_id<>$2 AND is_read = FALSE`, threadID, ackingUserID)
	return err
}

// GetThread fetches a thread by id.
func (r *ThreadRepo) GetThread(ctx context.Context, threadID int64) (models.Thread, error) {
	var thread models.Thread
	err := r.db.GetContext(ctx, &thread, `SELECT id, user1_id, user2_id, created_at, last_message, last_message_at
        FROM chat_threads WHERE id=$1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// ListThreads returns the threads the user participates in, most recent first.
func (r *ThreadRepo) ListThreads(ctx context.Context, userID int64) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.SelectContext(ctx, &threads, `SELECT id, user1_id, user2_id, created_at, last_message, last_message_at
        FROM chat_threads WHERE user1_id=$1 OR user2_id=$1
        ORDER BY COALESCE(last_message_at, created_at) DESC`, userID)
	return threads, err
}

// ListMessages returns all messages in a thread in send order.
func (r *ThreadRepo) ListMessages(ctx context.Context, threadID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, thread_id, sender_id, body, sent_at, is_read
        FROM messages WHERE thread_id=$1 ORDER BY sent_at ASC, id ASC`, threadID)
	return msgs, err
}

var _ ThreadStore = (*ThreadRepo)(nil)
