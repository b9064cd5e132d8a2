package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.Client.BaseURL)
	assert.Equal(t, itemapprove.DefaultDebounce, cfg.Client.Debounce)
	assert.Equal(t, itemapprove.DefaultTimeout, cfg.Client.Timeout)
	assert.Equal(t, itemapprove.DefaultMaxTracked, cfg.Client.MaxTracked)
	assert.Equal(t, itemapprove.DefaultEvictInterval, cfg.Client.EvictInterval)
	assert.Equal(t, itemapprove.DefaultLoginURL, cfg.Session.LoginURL)
	assert.Equal(t, itemapprove.DefaultRedirectDelay, cfg.Session.RedirectDelay)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":8080", cfg.Mock.Addr)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ITEMAPPROVE_CLIENT__BASE_URL", "https://cmdb.example.com/api/v1")
	t.Setenv("ITEMAPPROVE_CLIENT__DEBOUNCE", "150ms")
	t.Setenv("ITEMAPPROVE_CLIENT__MAX_TRACKED", "50")
	t.Setenv("ITEMAPPROVE_CLIENT__IDENTITY", "alice")
	t.Setenv("ITEMAPPROVE_SESSION__REDIS_ADDR", "localhost:6379")
	t.Setenv("ITEMAPPROVE_LOGGER__LEVEL", "debug")
	t.Setenv("ITEMAPPROVE_METRICS__ENABLED", "true")
	t.Setenv("ITEMAPPROVE_MOCK__LATENCY", "25ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://cmdb.example.com/api/v1", cfg.Client.BaseURL)
	assert.Equal(t, 150*time.Millisecond, cfg.Client.Debounce)
	assert.Equal(t, 50, cfg.Client.MaxTracked)
	assert.Equal(t, "alice", cfg.Client.Identity)
	assert.Equal(t, "localhost:6379", cfg.Session.RedisAddr)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 25*time.Millisecond, cfg.Mock.Latency)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad level", "ITEMAPPROVE_LOGGER__LEVEL", "verbose"},
		{"bad url", "ITEMAPPROVE_CLIENT__BASE_URL", "not a url"},
		{"zero ceiling", "ITEMAPPROVE_CLIENT__MAX_TRACKED", "0"},
		{"negative debounce", "ITEMAPPROVE_CLIENT__DEBOUNCE", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestOptionsBuildValidOrchestrator(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.Client.Identity = "alice"
	cfg.Client.EvictInterval = 0

	tokens, cleanup := cfg.TokenStore()
	defer func() { assert.NoError(t, cleanup()) }()
	assert.IsType(t, &itemapprove.MemoryTokenStore{}, tokens)

	o := itemapprove.New(cfg.Options(slog.Default(), tokens)...)
	defer o.Close()

	assert.True(t, o.IsValid(), "validation error: %v", o.ValidationError())
}

func TestTokenStoreWithRedis(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.Session.RedisAddr = "127.0.0.1:0"
	cfg.Client.EvictInterval = 0

	tokens, cleanup := cfg.TokenStore()
	assert.IsType(t, &itemapprove.RedisTokenStore{}, tokens)

	o := itemapprove.New(cfg.Options(nil, tokens)...)
	defer o.Close()

	assert.True(t, o.IsValid())
	assert.NoError(t, cleanup())
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{Logger: LoggerConfig{Level: "warn"}}
	logger := cfg.NewLogger()

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	cfg.Logger.Level = "nonsense"
	assert.True(t, cfg.NewLogger().Enabled(context.Background(), slog.LevelInfo))
}

func TestString(t *testing.T) {
	cfg := &Config{Client: ClientConfig{BaseURL: "http://x", MaxTracked: 3}}

	assert.Contains(t, cfg.String(), "base_url=http://x")
	assert.Contains(t, cfg.String(), "token_store=<memory>")
}
