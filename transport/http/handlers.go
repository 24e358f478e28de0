package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
)

// AuthHandlers contains HTTP handlers for session endpoints
type AuthHandlers struct {
	tokens      *service.TokenService
	credentials ports.CredentialVerifier
	logger      zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(tokens *service.TokenService, credentials ports.CredentialVerifier, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		tokens:      tokens,
		credentials: credentials,
		logger:      logger,
	}
}

// Login checks credentials and issues a session token
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.credentials.Verify(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			h.logger.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("login failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.Error().Err(err).Msg("credential check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable"})
		return
	}

	session, err := h.tokens.Issue(c.Request.Context(), req.Username)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to issue token"

		if errors.Is(err, core.ErrStoreUnavailable) {
			statusCode = http.StatusServiceUnavailable
			errorMsg = "Service unavailable"
		}

		h.logger.Error().Err(err).Str("username", req.Username).Msg("issue token")
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"token_type": "Bearer",
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
		"expires_in": int(session.TTL().Seconds()),
	})
}

// Logout revokes the bearer token the request was authorized with
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing bearer token"})
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), token); err != nil {
		h.logger.Error().Err(err).Msg("revoke token")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the subject of the current session
func (h *AuthHandlers) Me(c *gin.Context) {
	// Subject is set by the auth gate
	subject, ok := Subject(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Subject not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subject": subject})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
