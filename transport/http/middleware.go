package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/metrics"
)

const (
	// SubjectKey is the gin context key holding the authenticated subject
	SubjectKey = "subject"

	// RequestIDHeader carries the request id in and out
	RequestIDHeader = "X-Request-ID"
)

// Decision is the terminal state of the authorization gate for one request
type Decision string

const (
	DecisionAllowedPublic Decision = "allowed_public"
	DecisionAllowedToken  Decision = "allowed_token"
	DecisionRejected      Decision = "rejected"
	DecisionUnavailable   Decision = "unavailable"
)

// Validator resolves a bearer token to its session
type Validator interface {
	Validate(ctx context.Context, token string) (core.Session, error)
}

// AuthGate creates middleware that lets whitelisted routes through and requires
// a valid bearer token everywhere else. Every request leaves one access log record.
func AuthGate(whitelist *core.Whitelist, validator Validator, logger zerolog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		method := c.Request.Method
		path := c.Request.URL.Path

		access := func(decision Decision) *zerolog.Event {
			m.GateDecision(string(decision))
			return logger.Info().
				Str("request_id", requestID).
				Str("ip", c.ClientIP()).
				Str("method", method).
				Str("path", path).
				Str("decision", string(decision))
		}

		// Public routes never have their header inspected
		if whitelist.Contains(method, path) || whitelist.Contains(method, c.FullPath()) {
			access(DecisionAllowedPublic).Msg("access")
			c.Next()
			return
		}

		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			access(DecisionRejected).Str("reason", "missing or malformed authorization header").Msg("access")
			reject(c)
			return
		}

		session, err := validator.Validate(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(SubjectKey, session.Subject)
			access(DecisionAllowedToken).Str("subject", session.Subject).Msg("access")
			c.Next()

		case errors.Is(err, core.ErrInvalidToken):
			access(DecisionRejected).Str("reason", err.Error()).Msg("access")
			reject(c)

		default:
			// Never report an infrastructure failure as an authorization failure
			logger.Error().Err(err).Str("request_id", requestID).Msg("session validation failed")
			access(DecisionUnavailable).Msg("access")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		}
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}

// Subject returns the subject set by AuthGate
func Subject(c *gin.Context) (string, bool) {
	subject := c.GetString(SubjectKey)
	return subject, subject != ""
}

func reject(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="tollgate"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
