package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumetrymedia/stickerbooth/backend/internal/auth"
	"go.uber.org/zap"
)

type loginRequestPayload struct {
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

func (h *httpHandler) handleAdminLogin(c *gin.Context) {
	h.handlePasswordLogin(c, h.credentials.AdminPassword, auth.RoleAdmin)
}

func (h *httpHandler) handleCaptureLogin(c *gin.Context) {
	h.handlePasswordLogin(c, h.credentials.CapturePassword, auth.RoleCapture)
}

func (h *httpHandler) handlePasswordLogin(c *gin.Context, configured string, role auth.Role) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if !auth.SecretMatches(configured, request.Password) {
		h.logger.Warn("login rejected", zap.String("role", string(role)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueRoleToken(role)
	if err != nil {
		h.logger.Error("failed to issue role token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Role:        string(role),
	})
}
