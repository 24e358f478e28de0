package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/metrics"
)

// DefaultSweepInterval is the cadence of the expiry sweeper
const DefaultSweepInterval = time.Minute

// Reaper lists and removes expired sessions; TokenService implements it
type Reaper interface {
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	Revoke(ctx context.Context, token string) error
}

// Sweeper periodically removes expired sessions from the store.
// It only reclaims storage; validation never depends on it.
type Sweeper struct {
	reaper   Reaper
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// SweeperOption configures a Sweeper
type SweeperOption func(*Sweeper)

// WithSweepClock replaces time.Now when computing expiry
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// WithSweepLogger sets the logger
func WithSweepLogger(logger zerolog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger }
}

// WithSweepMetrics records sweep results
func WithSweepMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(reaper Reaper, interval time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		reaper:   reaper,
		interval: interval,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
// Sweep failures are logged and never stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}

	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")
	defer s.logger.Info().Msg("sweeper stopped")

	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// both cases may be ready at once; cancellation wins
			if ctx.Err() != nil {
				return nil
			}
			s.sweepAndLog(ctx)
		}
	}
}

// Sweep runs a single cycle and returns how many sessions it removed.
// A failed removal does not abort the cycle; the token stays a candidate for the next one
// and the returned error wraps core.ErrSweepPartialFailure.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()

	tokens, err := s.reaper.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			s.metrics.SweepCompleted(removed, len(errs), time.Since(start))
			return removed, err
		}

		if err := s.reaper.Revoke(ctx, token); err != nil {
			s.logger.Error().Err(err).Str("token", fingerprint(token)).Msg("failed to remove expired session")
			errs = append(errs, err)
			continue
		}
		removed++
	}

	s.metrics.SweepCompleted(removed, len(errs), time.Since(start))

	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: %d of %d sessions: %w", core.ErrSweepPartialFailure, len(errs), len(tokens), errors.Join(errs...))
	}

	return removed, nil
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	removed, err := s.Sweep(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		s.logger.Debug().Int("removed", removed).Msg("sweep interrupted by shutdown")
	case err != nil:
		s.logger.Error().Err(err).Int("removed", removed).Msg("sweep failed")
	case removed > 0:
		s.logger.Info().Int("removed", removed).Msg("expired sessions swept")
	default:
		s.logger.Debug().Msg("sweep found nothing to remove")
	}
}

// fingerprint keeps bearer tokens out of logs
func fingerprint(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "***"
}
