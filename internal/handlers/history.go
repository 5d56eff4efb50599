package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// HistoryHandler serves thread and message history over REST, the fetch path
// for messages that accumulated while the recipient was offline.
type HistoryHandler struct {
	store repositories.ThreadStore
}

// NewHistoryHandler builds a HistoryHandler.
func NewHistoryHandler(store repositories.ThreadStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// ListThreads returns the caller's threads, most recently active first.
func (h *HistoryHandler) ListThreads(c *gin.Context) {
	userID := c.GetInt64("userID")

	threads, err := h.store.ListThreads(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threads"})
		return
	}

	summaries := make([]models.ThreadSummary, 0, len(threads))
	for _, t := range threads {
		summaries = append(summaries, t.Summarize(userID))
	}
	c.JSON(http.StatusOK, gin.H{"threads": summaries})
}

// ListMessages returns all messages of a thread the caller participates in.
func (h *HistoryHandler) ListMessages(c *gin.Context) {
	threadID, _, ok := h.threadForCaller(c)
	if !ok {
		return
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkRead is the REST variant of the markRead relay event.
func (h *HistoryHandler) MarkRead(c *gin.Context) {
	threadID, userID, ok := h.threadForCaller(c)
	if !ok {
		return
	}

	if err := h.store.MarkRead(c.Request.Context(), threadID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark thread read"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HistoryHandler) threadForCaller(c *gin.Context) (int64, int64, bool) {
	threadID, err := strconv.ParseInt(c.Param("thread_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return 0, 0, false
	}
	userID := c.GetInt64("userID")

	thread, err := h.store.GetThread(c.Request.Context(), threadID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "thread not found"})
		return 0, 0, false
	}
	if !thread.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a thread participant"})
		return 0, 0, false
	}
	return threadID, userID, true
}
