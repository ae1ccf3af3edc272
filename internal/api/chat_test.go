package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chat-relay-demo/backend/internal/models"
	"chat-relay-demo/backend/internal/pending"
	"chat-relay-demo/backend/internal/service"
	"chat-relay-demo/backend/pkg/errors"
	"chat-relay-demo/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCallbackToken = "callback-secret"

type memoryLog struct {
	mu     sync.Mutex
	nextID uint
	rows   []models.Message
}

func (m *memoryLog) Append(userID uint, author, content, direction string) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	msg := models.Message{
		ID:        m.nextID,
		Author:    author,
		Content:   content,
		Direction: direction,
		CreatedAt: time.Now(),
		UserID:    userID,
	}
	m.rows = append(m.rows, msg)
	return msg, nil
}

type stubRelay struct {
	response map[string]any
	err      error
	block    chan struct{}
}

func (s *stubRelay) Invoke(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

type stubUsers struct{}

func (stubUsers) GetUserByID(id uint) (*models.User, error) {
	return &models.User{ID: id, Email: fmt.Sprintf("user%d@example.com", id), FullName: fmt.Sprintf("User %d", id)}, nil
}

// asUser is a stand-in for the JWT middleware in tests
func asUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	}
}

func newChatRouter(t *testing.T, rl service.RelayInvoker) (*gin.Engine, *service.ExchangeService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	tracker := pending.NewTracker(time.Minute)
	svc := service.NewExchangeService(tracker, &memoryLog{}, rl, nil, "n8n", time.Second, log)
	handler := NewChatHandler(svc, stubUsers{}, testCallbackToken, log)

	engine := gin.New()
	engine.Use(errors.ErrorHandler())

	chat := engine.Group("/api/v1/chat")
	chat.POST("/callback", handler.Callback)
	chat.POST("", asUser(1), handler.SendMessage)
	chat.GET("/pending", asUser(1), handler.GetPending)
	chat.DELETE("/pending", asUser(1), handler.ClearPending)
	chat.GET("/pending/:id", asUser(1), handler.GetPendingStatus)
	chat.POST("/pending/:id/fail", asUser(1), handler.FailPending)

	return engine, svc
}

func doJSON(engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestSendMessageQueued(t *testing.T) {
	engine, _ := newChatRouter(t, &stubRelay{response: map[string]any{"reply": "hello back"}})

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "hello"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var res models.ChatQueuedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.PendingReplyID)
	assert.Equal(t, "hello", res.User.Content)
	assert.Equal(t, models.DirectionIncoming, res.User.Direction)

	// Poll until the relay reply lands
	require.Eventually(t, func() bool {
		w := doJSON(engine, http.MethodGet, "/api/v1/chat/pending", nil, nil)
		if w.Code != http.StatusOK {
			return false
		}
		var ex pending.Exchange
		if err := json.Unmarshal(w.Body.Bytes(), &ex); err != nil {
			return false
		}
		return ex.Status == pending.StatusCompleted && ex.BotMessage != nil
	}, time.Second, 5*time.Millisecond)
}

func TestSendMessageConflict(t *testing.T) {
	rl := &stubRelay{response: map[string]any{"reply": "ok"}, block: make(chan struct{})}
	engine, _ := newChatRouter(t, rl)
	defer close(rl.block)

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "first"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "second"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT_PENDING", errorCode(t, w))
}

func TestSendMessageEmptyContent(t *testing.T) {
	engine, _ := newChatRouter(t, &stubRelay{})

	// Whitespace-only passes binding but fails semantic validation
	w := doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_CONTENT", errorCode(t, w))

	// A missing field is a binding error
	w = doJSON(engine, http.MethodPost, "/api/v1/chat", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}

func TestGetPendingNone(t *testing.T) {
	engine, _ := newChatRouter(t, &stubRelay{})

	w := doJSON(engine, http.MethodGet, "/api/v1/chat/pending", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestGetPendingStatusUnknownID(t *testing.T) {
	engine, _ := newChatRouter(t, &stubRelay{})

	w := doJSON(engine, http.MethodGet, "/api/v1/chat/pending/no-such-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestFailPendingThenConflictClears(t *testing.T) {
	rl := &stubRelay{response: map[string]any{"reply": "ok"}, block: make(chan struct{})}
	engine, _ := newChatRouter(t, rl)
	defer close(rl.block)

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "hello"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var res models.ChatQueuedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	w = doJSON(engine, http.MethodPost, "/api/v1/chat/pending/"+res.PendingReplyID+"/fail", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ex pending.Exchange
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ex))
	assert.Equal(t, pending.StatusFailed, ex.Status)

	// The failed slot no longer blocks the next send
	w = doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "again"}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestClearPending(t *testing.T) {
	engine, svc := newChatRouter(t, &stubRelay{response: map[string]any{"reply": "ok"}})

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "hello"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	require.Eventually(t, func() bool {
		ex, err := svc.GetPending(1)
		return err == nil && ex.Status == pending.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	w = doJSON(engine, http.MethodDelete, "/api/v1/chat/pending", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(engine, http.MethodGet, "/api/v1/chat/pending", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallbackResolvesExchange(t *testing.T) {
	rl := &stubRelay{response: map[string]any{"reply": "late"}, block: make(chan struct{})}
	engine, _ := newChatRouter(t, rl)
	defer close(rl.block)

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "hello"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var res models.ChatQueuedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	cb := models.CallbackRequest{MessageID: res.User.ID, Reply: "from automation"}
	w = doJSON(engine, http.MethodPost, "/api/v1/chat/callback", cb,
		map[string]string{"X-Callback-Token": testCallbackToken})
	require.Equal(t, http.StatusOK, w.Code)

	var ex pending.Exchange
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ex))
	assert.Equal(t, pending.StatusCompleted, ex.Status)
	require.NotNil(t, ex.BotMessage)
	assert.Equal(t, "from automation", ex.BotMessage.Content)
}

func TestCallbackRejectsBadToken(t *testing.T) {
	engine, _ := newChatRouter(t, &stubRelay{})

	cb := models.CallbackRequest{MessageID: 1, Reply: "nope"}

	w := doJSON(engine, http.MethodPost, "/api/v1/chat/callback", cb, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(engine, http.MethodPost, "/api/v1/chat/callback", cb,
		map[string]string{"X-Callback-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CALLBACK_TOKEN", errorCode(t, w))
}

func TestCallbackUnknownMessage(t *testing.T) {
	engine, _ := newChatRouter(t, &stubRelay{})

	cb := models.CallbackRequest{MessageID: 12345, Reply: "hello"}
	w := doJSON(engine, http.MethodPost, "/api/v1/chat/callback", cb,
		map[string]string{"X-Callback-Token": testCallbackToken})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestCallbackOnResolvedExchange(t *testing.T) {
	engine, svc := newChatRouter(t, &stubRelay{response: map[string]any{"reply": "first"}})

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", models.ChatRequest{Content: "hello"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var res models.ChatQueuedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	require.Eventually(t, func() bool {
		ex, err := svc.GetPending(1)
		return err == nil && ex.Status == pending.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	cb := models.CallbackRequest{MessageID: res.User.ID, Reply: "second"}
	w = doJSON(engine, http.MethodPost, "/api/v1/chat/callback", cb,
		map[string]string{"X-Callback-Token": testCallbackToken})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_RESOLVED", errorCode(t, w))
}
