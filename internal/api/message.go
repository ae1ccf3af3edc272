package api

import (
	"net/http"
	"strconv"

	"chat-relay-demo/backend/internal/models"
	"chat-relay-demo/backend/internal/service"
	"chat-relay-demo/backend/pkg/errors"
	"chat-relay-demo/backend/pkg/logger"
	"chat-relay-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// MessageHandler serves the chat history
type MessageHandler struct {
	messageService *service.MessageService
	log            *logger.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, log: log}
}

// History returns the caller's most recent messages in chronological order.
// The limit query parameter is clamped to the configured maximum.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.Error(errors.NewBadRequestError("INVALID_LIMIT", "limit must be an integer"))
			return
		}
		limit = parsed
	}

	messages, err := h.messageService.List(c.Request.Context(), userID, limit)
	if err != nil {
		c.Error(err)
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, models.HistoryResponse{Messages: messages})
}
