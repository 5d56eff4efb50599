package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/middleware"
	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

func setupStorageRouter(handler *StorageAPIHandler, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	internal := r.Group("/internal", middleware.StorageToken(token))
	internal.POST("/threads/resolve", handler.ResolveThread)
	internal.POST("/threads/:thread_id/messages", handler.AppendMessage)
	internal.POST("/threads/:thread_id/read", handler.MarkRead)
	return r
}

func TestResolveThreadSuccess(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router := setupStorageRouter(NewStorageAPIHandler(store), "secret")

	store.On("FindOrCreateThread", mock.Anything, int64(5), int64(7)).
		Return(models.Thread{ID: 3, User1ID: 5, User2ID: 7, CreatedAt: time.Now()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/internal/threads/resolve", bytes.NewBufferString(`{"user_a":5,"user_b":7}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestResolveThreadSameUser(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router := setupStorageRouter(NewStorageAPIHandler(store), "secret")

	store.On("FindOrCreateThread", mock.Anything, int64(5), int64(5)).
		Return(models.Thread{}, repositories.ErrSameUser).Once()

	req := httptest.NewRequest(http.MethodPost, "/internal/threads/resolve", bytes.NewBufferString(`{"user_a":5,"user_b":5}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppendMessageSuccess(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router := setupStorageRouter(NewStorageAPIHandler(store), "secret")

	store.On("AppendMessage", mock.Anything, int64(3), int64(5), "hi").
		Return(models.Message{ID: 11, ThreadID: 3, SenderID: 5, Body: "hi", SentAt: time.Now()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/internal/threads/3/messages", bytes.NewBufferString(`{"sender_id":5,"body":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	store.AssertExpectations(t)
}

func TestStorageAPIRejectsBadToken(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router := setupStorageRouter(NewStorageAPIHandler(store), "secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/threads/3/read", bytes.NewBufferString(`{"user_id":5}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	store.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestStorageAPIUnconfiguredToken(t *testing.T) {
	store := new(mocks.ThreadStoreMock)
	router := setupStorageRouter(NewStorageAPIHandler(store), "")

	req := httptest.NewRequest(http.MethodPost, "/internal/threads/3/read", bytes.NewBufferString(`{"user_id":5}`))
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
