package config

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/layer-3/tollgate/core"
)

// Store backends
const (
	BackendLevelDB = "leveldb"
	BackendRedis   = "redis"
	BackendMemory  = "memory"
)

// Event backends
const (
	EventsNone        = "none"
	EventsGoChannel   = "gochannel"
	EventsRedisStream = "redisstream"
)

// Config holds runtime configuration for the tollgate service.
type Config struct {
	Addr      string `env:"ADDR,default=:2020"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	StoreBackend string `env:"STORE_BACKEND,default=leveldb"`
	StorePath    string `env:"STORE_PATH,default=./data/sessions"`
	RedisURL     string `env:"REDIS_URL,default=redis://localhost:6379/0"`

	TokenTTL      time.Duration `env:"TOKEN_TTL,default=24h"`
	TokenBytes    int           `env:"TOKEN_BYTES,default=32"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL,default=1m"`

	Whitelist []string          `env:"WHITELIST,default=GET /api/articles,GET /api/pdf_articles,GET /api/home/pdf_article_stat,POST /api/login,GET /healthz,GET /metrics"`
	AuthUsers map[string]string `env:"AUTH_USERS"`

	EventsBackend string `env:"EVENTS_BACKEND,default=none"`
	EventsTopic   string `env:"EVENTS_TOPIC,default=tollgate.sessions"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom returns a Config populated from the given lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the env tags cannot express
func (c Config) Validate() error {
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}

	switch c.StoreBackend {
	case BackendLevelDB:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required for the %s backend", BackendLevelDB)
		}
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.EventsBackend {
	case EventsNone, EventsGoChannel, EventsRedisStream:
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}

	if _, err := core.ParseWhitelist(c.Whitelist); err != nil {
		return fmt.Errorf("WHITELIST: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return nil
}

// NeedsRedis reports whether any component talks to Redis
func (c Config) NeedsRedis() bool {
	return c.StoreBackend == BackendRedis || c.EventsBackend == EventsRedisStream
}

// BuildWhitelist returns the immutable whitelist described by WHITELIST
func (c Config) BuildWhitelist() (*core.Whitelist, error) {
	return core.ParseWhitelist(c.Whitelist)
}
