package api

import (
	"crypto/subtle"
	stderrors "errors"
	"net/http"

	"chat-relay-demo/backend/internal/models"
	"chat-relay-demo/backend/internal/pending"
	"chat-relay-demo/backend/internal/service"
	"chat-relay-demo/backend/pkg/errors"
	"chat-relay-demo/backend/pkg/logger"
	"chat-relay-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// UserLookup resolves the authenticated user id to the full account.
type UserLookup interface {
	GetUserByID(id uint) (*models.User, error)
}

// ChatHandler handles message submission and the pending-reply polling
// endpoints.
type ChatHandler struct {
	exchangeService *service.ExchangeService
	users           UserLookup
	callbackToken   string
	log             *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(exchangeService *service.ExchangeService, users UserLookup, callbackToken string, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		exchangeService: exchangeService,
		users:           users,
		callbackToken:   callbackToken,
		log:             log,
	}
}

// SendMessage accepts a chat message, persists it and queues the relay
// round-trip. The reply arrives later through the pending endpoints.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	user, err := h.users.GetUserByID(userID)
	if err != nil {
		c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Account no longer exists"))
		return
	}

	res, err := h.exchangeService.SendMessage(user, req.Content)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrEmptyContent):
			c.Error(errors.NewBadRequestError("EMPTY_CONTENT", "Message content must not be empty"))
		case stderrors.Is(err, pending.ErrAlreadyPending):
			c.Error(errors.NewConflictError("CONFLICT_PENDING", "A reply is already pending; wait for it or fail it first"))
		default:
			c.Error(err)
		}
		return
	}

	c.JSON(http.StatusCreated, models.ChatQueuedResponse{
		User:           res.UserMessage,
		PendingReplyID: res.PendingReplyID,
	})
}

// GetPending returns the caller's current exchange, whatever its status.
func (h *ChatHandler) GetPending(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	ex, err := h.exchangeService.GetPending(userID)
	if err != nil {
		c.Error(errors.NewNotFoundError("NOT_FOUND", "No pending reply"))
		return
	}

	c.JSON(http.StatusOK, ex)
}

// GetPendingStatus returns the exchange behind a polling handle. Unknown and
// foreign handles are indistinguishable in the response.
func (h *ChatHandler) GetPendingStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	ex, err := h.exchangeService.GetPendingStatus(c.Param("id"), userID)
	if err != nil {
		c.Error(errors.NewNotFoundError("NOT_FOUND", "No pending reply with this id"))
		return
	}

	c.JSON(http.StatusOK, ex)
}

// FailPending marks the exchange failed after the client gave up waiting.
// If the relay got there first the completed state comes back instead, so a
// reply that raced in is never lost.
func (h *ChatHandler) FailPending(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	ex, err := h.exchangeService.FailPending(c.Param("id"), userID)
	if err != nil {
		c.Error(errors.NewNotFoundError("NOT_FOUND", "No pending reply with this id"))
		return
	}

	c.JSON(http.StatusOK, ex)
}

// ClearPending removes the caller's terminal exchange so the next send can
// be admitted immediately.
func (h *ChatHandler) ClearPending(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	h.exchangeService.ClearPending(userID)
	c.Status(http.StatusNoContent)
}

// Callback lets the automation resolve an exchange out of band. The shared
// token in X-Callback-Token is the only authentication on this route.
func (h *ChatHandler) Callback(c *gin.Context) {
	if h.callbackToken == "" {
		c.Error(errors.NewNotFoundError("NOT_FOUND", "Callback is not enabled"))
		return
	}
	token := c.GetHeader("X-Callback-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.callbackToken)) != 1 {
		c.Error(errors.NewUnauthorizedError("INVALID_CALLBACK_TOKEN", "Invalid callback token"))
		return
	}

	var req models.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	ex, err := h.exchangeService.CompleteFromCallback(req.MessageID, req.Reply, req.Author)
	if err != nil {
		switch {
		case stderrors.Is(err, pending.ErrNotFound):
			c.Error(errors.NewNotFoundError("NOT_FOUND", "No pending reply for this message"))
		case stderrors.Is(err, pending.ErrInvalidTransition):
			c.Error(errors.NewConflictError("ALREADY_RESOLVED", "The exchange is already resolved"))
		default:
			c.Error(err)
		}
		return
	}

	h.log.Info("Exchange resolved via callback",
		"pending_reply_id", ex.ID,
		"message_id", req.MessageID,
	)
	c.JSON(http.StatusOK, ex)
}
