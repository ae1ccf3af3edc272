package api

import (
	stderrors "errors"
	"net/http"

	"chat-relay-demo/backend/internal/models"
	"chat-relay-demo/backend/internal/service"
	"chat-relay-demo/backend/pkg/errors"
	"chat-relay-demo/backend/pkg/logger"
	"chat-relay-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles signup, login and token refresh
type AuthHandler struct {
	userService *service.UserService
	log         *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *service.UserService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, log: log}
}

// Signup creates a new account and returns a token pair
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	tokens, err := h.userService.Signup(&req)
	if err != nil {
		if stderrors.Is(err, service.ErrUserAlreadyExists) {
			c.Error(errors.NewConflictError("EMAIL_TAKEN", "An account with this email already exists"))
			return
		}
		c.Error(err)
		return
	}

	h.log.Info("User signed up", "user_id", tokens.User.ID)
	c.JSON(http.StatusCreated, tokens)
}

// Login authenticates a user and returns a token pair
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	tokens, err := h.userService.Login(&req)
	if err != nil {
		if stderrors.Is(err, service.ErrInvalidCredentials) {
			c.Error(errors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	tokens, err := h.userService.Refresh(req.RefreshToken)
	if err != nil {
		c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired refresh token"))
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		if stderrors.Is(err, service.ErrUserNotFound) {
			c.Error(errors.NewNotFoundError("USER_NOT_FOUND", "User not found"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
