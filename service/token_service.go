package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/layer-3/tollgate/adapters/events"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/metrics"
	"github.com/layer-3/tollgate/ports"
)

const (
	// DefaultTTL is the lifetime of an issued session
	DefaultTTL = 24 * time.Hour

	// DefaultMaxIssueAttempts bounds token regeneration on key collisions
	DefaultMaxIssueAttempts = 5
)

// TokenService issues, validates and revokes opaque session tokens
type TokenService struct {
	tokenizer ports.TokenGenerator
	store     ports.SessionStore
	eventPub  ports.EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// Option configures a TokenService
type Option func(*TokenService)

// WithTTL sets the session lifetime
func WithTTL(ttl time.Duration) Option {
	return func(s *TokenService) { s.ttl = ttl }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// WithEventPublisher publishes session events through pub
func WithEventPublisher(pub ports.EventPublisher) Option {
	return func(s *TokenService) { s.eventPub = pub }
}

// WithMetrics records issue and revoke counts
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TokenService) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *TokenService) { s.logger = logger }
}

// WithMaxIssueAttempts sets how many tokens Issue generates before giving up
func WithMaxIssueAttempts(n int) Option {
	return func(s *TokenService) { s.maxAttempts = n }
}

// NewTokenService creates a new token service
func NewTokenService(tokenizer ports.TokenGenerator, store ports.SessionStore, opts ...Option) (*TokenService, error) {
	s := &TokenService{
		tokenizer:   tokenizer,
		store:       store,
		eventPub:    events.NopPublisher{},
		logger:      zerolog.Nop(),
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxIssueAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", s.ttl)
	}
	if s.maxAttempts < 1 {
		return nil, fmt.Errorf("max issue attempts must be at least 1, got %d", s.maxAttempts)
	}

	return s, nil
}

// TTL returns the lifetime of issued sessions
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates and persists a new session for subject
func (s *TokenService) Issue(ctx context.Context, subject string) (core.Session, error) {
	if strings.TrimSpace(subject) == "" {
		return core.Session{}, core.ErrInvalidSubject
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		token, err := s.tokenizer.NewToken()
		if err != nil {
			return core.Session{}, err
		}

		now := s.now().UTC()
		session := core.Session{
			Token:     token,
			Subject:   subject,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.ttl),
		}

		err = s.store.Create(ctx, session)
		if errors.Is(err, core.ErrTokenExists) {
			s.logger.Warn().Int("attempt", attempt).Msg("token collision, regenerating")
			continue
		}
		if err != nil {
			return core.Session{}, storeError(err)
		}

		s.metrics.SessionIssued()
		s.publish(ctx, core.EventIssued, session)

		return session, nil
	}

	return core.Session{}, fmt.Errorf("failed to issue token after %d attempts: %w", s.maxAttempts, core.ErrTokenExists)
}

// Validate returns the session for a token if it exists and has not expired.
// Expiry is computed from the stored timestamp; a sweep is never required.
func (s *TokenService) Validate(ctx context.Context, token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, core.ErrInvalidToken
	}

	session, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrTokenNotFound) {
			return core.Session{}, core.ErrInvalidToken
		}
		return core.Session{}, storeError(err)
	}

	if session.Expired(s.now()) {
		return core.Session{}, fmt.Errorf("%w: expired", core.ErrInvalidToken)
	}

	return session, nil
}

// Revoke deletes a session. Revoking an unknown token is not an error.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.store.Delete(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrTokenNotFound) {
			return nil
		}
		return storeError(err)
	}

	s.metrics.SessionRevoked()
	s.publish(ctx, core.EventRevoked, session)

	return nil
}

// ListExpired returns the tokens of sessions expiring at or before now
func (s *TokenService) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	tokens, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return nil, storeError(err)
	}
	return tokens, nil
}

func (s *TokenService) publish(ctx context.Context, kind core.EventKind, session core.Session) {
	event := core.SessionEvent{
		Kind:      kind,
		Subject:   session.Subject,
		ExpiresAt: session.ExpiresAt,
		At:        s.now().UTC(),
	}

	// The store is the source of truth, a lost event is only logged
	if err := s.eventPub.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to publish session event")
	}
}

// storeError makes sure backend failures carry core.ErrStoreUnavailable
func storeError(err error) error {
	if errors.Is(err, core.ErrStoreUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
}
