package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/users"
)

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.users.Authenticate(request.Username, request.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.writeServiceError(c, err)
		return
	}

	h.issueToken(c, auth.Session{Username: account.Username, Role: account.Role})
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.users.Register(request.Username, request.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username_taken"})
		case errors.Is(err, users.ErrInvalidUsername), errors.Is(err, users.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		default:
			h.writeServiceError(c, err)
		}
		return
	}

	h.issueToken(c, auth.Session{Username: account.Username, Role: account.Role})
}

// handleGuest issues a read-mostly session without credentials.
func (h *httpHandler) handleGuest(c *gin.Context) {
	h.issueToken(c, auth.GuestSession())
}

func (h *httpHandler) issueToken(c *gin.Context, session auth.Session) {
	token, expiresIn, err := h.tokens.IssueToken(session)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Role:        string(session.Role),
	})
}
