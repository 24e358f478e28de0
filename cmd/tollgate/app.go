package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/layer-3/tollgate/adapters/events"
	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/adapters/tokenizer"
	"github.com/layer-3/tollgate/config"
	"github.com/layer-3/tollgate/metrics"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
)

// app owns every long-lived dependency of the process
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	redis     *redis.Client
	store     ports.SessionStore
	publisher message.Publisher
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	tokens    *service.TokenService
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if cfg.NeedsRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	switch cfg.StoreBackend {
	case config.BackendLevelDB:
		db, err := store.NewLevelDBStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		a.store = db
	case config.BackendRedis:
		a.store = store.NewRedisStore(a.redis)
	case config.BackendMemory:
		a.store = store.NewMemoryStore()
	}

	eventPub, err := a.newEventPublisher()
	if err != nil {
		return nil, err
	}

	a.tokens, err = service.NewTokenService(
		tokenizer.NewRandomTokenizer(cfg.TokenBytes),
		a.store,
		service.WithTTL(cfg.TokenTTL),
		service.WithEventPublisher(eventPub),
		service.WithMetrics(a.metrics),
		service.WithLogger(logger.With().Str("component", "tokens").Logger()),
	)
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("store", cfg.StoreBackend).
		Str("events", cfg.EventsBackend).
		Dur("ttl", cfg.TokenTTL).
		Msg("session store ready")

	return a, nil
}

func (a *app) newEventPublisher() (ports.EventPublisher, error) {
	wmLogger := events.NewZerologAdapter(a.logger.With().Str("component", "events").Logger())

	switch a.cfg.EventsBackend {
	case config.EventsGoChannel:
		a.publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	case config.EventsRedisStream:
		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: a.redis}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}
		a.publisher = pub
	default:
		return events.NopPublisher{}, nil
	}

	return events.NewWatermillPublisher(a.publisher, a.cfg.EventsTopic), nil
}

func (a *app) newSweeper() *service.Sweeper {
	return service.NewSweeper(a.tokens, a.cfg.SweepInterval,
		service.WithSweepLogger(a.logger.With().Str("component", "sweeper").Logger()),
		service.WithSweepMetrics(a.metrics),
	)
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return logger.Level(level).With().Timestamp().Logger()
}
