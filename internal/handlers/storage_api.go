package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// StorageAPIHandler exposes the thread store over HTTP. It is the server
// side of the remote store binding: a relay deployment running without its
// own database proxies persistence to these routes.
type StorageAPIHandler struct {
	store repositories.ThreadStore
}

// NewStorageAPIHandler builds a StorageAPIHandler.
func NewStorageAPIHandler(store repositories.ThreadStore) *StorageAPIHandler {
	return &StorageAPIHandler{store: store}
}

// ResolveThread finds or creates the thread for a user pair.
func (h *StorageAPIHandler) ResolveThread(c *gin.Context) {
	var req struct {
		UserA int64 `json:"user_a" binding:"required"`
		UserB int64 `json:"user_b" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thread, err := h.store.FindOrCreateThread(c.Request.Context(), req.UserA, req.UserB)
	if err != nil {
		if errors.Is(err, repositories.ErrSameUser) {
			c.JSON(http.StatusBadRequest, gin.H{"error": repositories.ErrSameUser.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve thread"})
		return
	}
	c.JSON(http.StatusOK, thread.Record())
}

// AppendMessage inserts a message into the thread.
func (h *StorageAPIHandler) AppendMessage(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}

	var req struct {
		SenderID int64  `json:"sender_id" binding:"required"`
		Body     string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.store.AppendMessage(c.Request.Context(), threadID, req.SenderID, req.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store message"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flips unread messages in the thread.
func (h *StorageAPIHandler) MarkRead(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.MarkRead(c.Request.Context(), threadID, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetThread returns a single thread.
func (h *StorageAPIHandler) GetThread(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}

	thread, err := h.store.GetThread(c.Request.Context(), threadID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "thread not found"})
		return
	}
	c.JSON(http.StatusOK, thread.Record())
}

// ListThreads returns all threads for a user.
func (h *StorageAPIHandler) ListThreads(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	threads, err := h.store.ListThreads(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load threads"})
		return
	}

	records := make([]models.ThreadRecord, 0, len(threads))
	for _, t := range threads {
		records = append(records, t.Record())
	}
	c.JSON(http.StatusOK, gin.H{"threads": records})
}

// ListMessages returns a thread's messages in send order.
func (h *StorageAPIHandler) ListMessages(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func parseThreadID(c *gin.Context) (int64, bool) {
	threadID, err := strconv.ParseInt(c.Param("thread_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return 0, false
	}
	return threadID, true
}
