package models

import (
	"database/sql"
	"time"
)

// Thread represents the canonical conversation between exactly two users.
// Participants are stored in ascending order so any unordered pair maps to
// a single row.
type Thread struct {
	ID            int64          `db:"id" json:"id"`
	User1ID       int64          `db:"user1_id" json:"user1_id"`
	User2ID       int64          `db:"user2_id" json:"user2_id"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	LastMessage   sql.NullString `db:"last_message" json:"-"`
	LastMessageAt sql.NullTime   `db:"last_message_at" json:"-"`
}

// ThreadSummary provides an API-friendly view of a thread for one user.
type ThreadSummary struct {
	ThreadID      int64      `json:"thread_id"`
	PeerID        int64      `json:"peer_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Summarize builds the per-user view of a thread.
func (t Thread) Summarize(userID int64) ThreadSummary {
	peer := t.User1ID
	if peer == userID {
		peer = t.User2ID
	}
	s := ThreadSummary{ThreadID: t.ID, PeerID: peer, CreatedAt: t.CreatedAt}
	if t.LastMessage.Valid {
		s.LastMessage = t.LastMessage.String
	}
	if t.LastMessageAt.Valid {
		at := t.LastMessageAt.Time
		s.LastMessageAt = &at
	}
	return s
}

// IsParticipant reports whether the user belongs to the thread.
func (t Thread) IsParticipant(userID int64) bool {
	return t.User1ID == userID || t.User2ID == userID
}

// ThreadRecord is the JSON form of a thread on the storage API, shared by the
// server handlers and the remote store client.
type ThreadRecord struct {
	ID            int64      `json:"id"`
	User1ID       int64      `json:"user1_id"`
	User2ID       int64      `json:"user2_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Record converts a thread to its wire form.
func (t Thread) Record() ThreadRecord {
	rec := ThreadRecord{ID: t.ID, User1ID: t.User1ID, User2ID: t.User2ID, CreatedAt: t.CreatedAt}
	if t.LastMessage.Valid {
		msg := t.LastMessage.String
		rec.LastMessage = &msg
	}
	if t.LastMessageAt.Valid {
		at := t.LastMessageAt.Time
		rec.LastMessageAt = &at
	}
	return rec
}

// Thread converts a wire record back to the model.
func (r ThreadRecord) Thread() Thread {
	t := Thread{ID: r.ID, User1ID: r.User1ID, User2ID: r.User2ID, CreatedAt: r.CreatedAt}
	if r.LastMessage != nil {
		t.LastMessage = sql.NullString{String: *r.LastMessage, Valid: true}
	}
	if r.LastMessageAt != nil {
		t.LastMessageAt = sql.NullTime{Time: *r.LastMessageAt, Valid: true}
	}
	return t
}
