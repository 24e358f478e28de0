package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, ":2020", cfg.Addr)
	assert.Equal(t, BackendLevelDB, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, EventsNone, cfg.EventsBackend)
	assert.False(t, cfg.NeedsRedis())

	whitelist, err := cfg.BuildWhitelist()
	require.NoError(t, err)
	assert.True(t, whitelist.Contains("GET", "/api/articles"))
	assert.True(t, whitelist.Contains("POST", "/api/login"))
	assert.False(t, whitelist.Contains("GET", "/api/logs"))
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORE_BACKEND":  "redis",
		"TOKEN_TTL":      "1s",
		"SWEEP_INTERVAL": "250ms",
		"WHITELIST":      "GET /healthz",
		"AUTH_USERS":     "admin:secret,ops:hunter2",
		"EVENTS_BACKEND": "redisstream",
	}))
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.TokenTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.SweepInterval)
	assert.Equal(t, []string{"GET /healthz"}, cfg.Whitelist)
	assert.Equal(t, map[string]string{"admin": "secret", "ops": "hunter2"}, cfg.AuthUsers)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"zero ttl":        {"TOKEN_TTL": "0s"},
		"negative sweep":  {"SWEEP_INTERVAL": "-1s"},
		"unknown backend": {"STORE_BACKEND": "sqlite"},
		"unknown events":  {"EVENTS_BACKEND": "kafka"},
		"bad whitelist":   {"WHITELIST": "GET"},
		"bad log level":   {"LOG_LEVEL": "chatty"},
		"bad duration":    {"TOKEN_TTL": "soon"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}
