package models

import "time"

// Message represents a stored chat message.
type Message struct {
	ID       int64     `db:"id" json:"id"`
	ThreadID int64     `db:"thread_id" json:"thread_id"`
	SenderID int64     `db:"sender_id" json:"sender_id"`
	Body     string    `db:"body" json:"body"`
	SentAt   time.Time `db:"sent_at" json:"sent_at"`
	IsRead   bool      `db:"is_read" json:"is_read"`
}
