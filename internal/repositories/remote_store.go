package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chat-relay/internal/models"
)

// RemoteThreadStore proxies the ThreadStore contract to another relay
// deployment's storage API instead of talking to Postgres directly.
type RemoteThreadStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemoteThreadStore constructs the proxy binding.
func NewRemoteThreadStore(baseURL, token string) *RemoteThreadStore {
	return &RemoteThreadStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FindOrCreateThread resolves the thread via the remote resolve endpoint.
func (s *RemoteThreadStore) FindOrCreateThread(ctx context.Context, userA, userB int64) (models.Thread, error) {
	req := struct {
		UserA int64 `json:"user_a"`
		UserB int64 `json:"user_b"`
	}{UserA: userA, UserB: userB}

	var rec models.ThreadRecord
	if err := s.do(ctx, http.MethodPost, "/internal/threads/resolve", req, &rec); err != nil {
		return models.Thread{}, err
	}
	return rec.Thread(), nil
}

// AppendMessage stores a message through the remote API.
func (s *RemoteThreadStore) AppendMessage(ctx context.Context, threadID, senderID int64, body string) (models.Message, error) {
	req := struct {
		SenderID int64  `json:"sender_id"`
		Body     string `json:"body"`
	}{SenderID: senderID, Body: body}

	var msg models.Message
	path := fmt.Sprintf("/internal/threads/%d/messages", threadID)
	if err := s.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead forwards the bulk mark-read to the remote API.
func (s *RemoteThreadStore) MarkRead(ctx context.Context, threadID, ackingUserID int64) error {
	req := struct {
		UserID int64 `json:"user_id"`
	}{UserID: ackingUserID}
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/internal/threads/%d/read", threadID), req, nil)
}

// GetThread fetches one thread.
func (s *RemoteThreadStore) GetThread(ctx context.Context, threadID int64) (models.Thread, error) {
	var rec models.ThreadRecord
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/internal/threads/%d", threadID), nil, &rec); err != nil {
		return models.Thread{}, err
	}
	return rec.Thread(), nil
}

// ListThreads fetches the user's threads.
func (s *RemoteThreadStore) ListThreads(ctx context.Context, userID int64) ([]models.Thread, error) {
	var resp struct {
		Threads []models.ThreadRecord `json:"threads"`
	}
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/internal/threads?user_id=%d", userID), nil, &resp); err != nil {
		return nil, err
	}
	threads := make([]models.Thread, 0, len(resp.Threads))
	for _, rec := range resp.Threads {
		threads = append(threads, rec.Thread())
	}
	return threads, nil
}

// ListMessages fetches a thread's messages.
func (s *RemoteThreadStore) ListMessages(ctx context.Context, threadID int64) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/internal/threads/%d/messages", threadID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (s *RemoteThreadStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrThreadNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error == ErrSameUser.Error() {
			return ErrSameUser
		}
		return fmt.Errorf("storage api %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ ThreadStore = (*RemoteThreadStore)(nil)
