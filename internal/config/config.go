package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/redis/go-redis/v9"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
)

const envPrefix = "ITEMAPPROVE_"

type Config struct {
	Client  ClientConfig  `koanf:"client"`
	Session SessionConfig `koanf:"session"`
	Logger  LoggerConfig  `koanf:"logger"`
	Metrics MetricsConfig `koanf:"metrics"`
	Mock    MockConfig    `koanf:"mock"`
}

type ClientConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	Identity      string        `koanf:"identity"`
	Debounce      time.Duration `koanf:"debounce" validate:"gte=0"`
	Timeout       time.Duration `koanf:"timeout" validate:"required,gt=0"`
	MaxTracked    int           `koanf:"max_tracked" validate:"required,gt=0"`
	EvictInterval time.Duration `koanf:"evict_interval" validate:"gte=0"`
}

type SessionConfig struct {
	LoginURL      string        `koanf:"login_url" validate:"required"`
	RedirectDelay time.Duration `koanf:"redirect_delay" validate:"gte=0"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisKey      string        `koanf:"redis_key"`
	TokenTTL      time.Duration `koanf:"token_ttl" validate:"gte=0"`
}

type LoggerConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type MockConfig struct {
	Addr    string        `koanf:"addr" validate:"required"`
	Latency time.Duration `koanf:"latency" validate:"gte=0"`
}

var defaults = map[string]any{
	"client.base_url":        "http://localhost:8080/api",
	"client.identity":        "",
	"client.debounce":        itemapprove.DefaultDebounce.String(),
	"client.timeout":         itemapprove.DefaultTimeout.String(),
	"client.max_tracked":     itemapprove.DefaultMaxTracked,
	"client.evict_interval":  itemapprove.DefaultEvictInterval.String(),
	"session.login_url":      itemapprove.DefaultLoginURL,
	"session.redirect_delay": itemapprove.DefaultRedirectDelay.String(),
	"session.redis_addr":     "",
	"session.redis_key":      "itemapprove:session:token",
	"session.token_ttl":      "0s",
	"logger.level":           "info",
	"metrics.enabled":        false,
	"mock.addr":              ":8080",
	"mock.latency":           "0s",
}

// LoadConfig reads ITEMAPPROVE_* variables (a .env file is loaded first) on
// top of the defaults. Nested keys use a double underscore:
// ITEMAPPROVE_CLIENT__BASE_URL sets client.base_url.
func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load config defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// NewLogger returns a text slog logger on stderr at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logger.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// TokenStore returns a Redis-backed store when a Redis address is
// configured, sharing the session token across processes, and an in-memory
// store otherwise. cleanup closes the Redis client.
func (c *Config) TokenStore() (itemapprove.TokenStore, func() error) {
	if c.Session.RedisAddr == "" {
		return itemapprove.NewMemoryTokenStore(""), func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{Addr: c.Session.RedisAddr})
	return itemapprove.NewRedisTokenStore(client, c.Session.RedisKey, c.Session.TokenTTL), client.Close
}

// Options translates the configuration into orchestrator options.
func (c *Config) Options(logger *slog.Logger, tokens itemapprove.TokenStore) []itemapprove.Option {
	opts := []itemapprove.Option{
		itemapprove.WithBaseURL(c.Client.BaseURL),
		itemapprove.WithDebounce(c.Client.Debounce),
		itemapprove.WithTimeout(c.Client.Timeout),
		itemapprove.WithMaxTracked(c.Client.MaxTracked),
		itemapprove.WithEvictInterval(c.Client.EvictInterval),
		itemapprove.WithLoginURL(c.Session.LoginURL),
		itemapprove.WithRedirectDelay(c.Session.RedirectDelay),
	}
	if c.Client.Identity != "" {
		opts = append(opts, itemapprove.WithIdentity(c.Client.Identity))
	}
	if tokens != nil {
		opts = append(opts, itemapprove.WithTokenStore(tokens))
	}

	if logger != nil {
		opts = append(opts, itemapprove.WithLogger(logger))
		if c.Logger.Level == "debug" {
			opts = append(opts, itemapprove.WithDebug())
		}
	}

	return opts
}

// String renders the configuration for startup logs.
func (c *Config) String() string {
	redisAddr := c.Session.RedisAddr
	if redisAddr == "" {
		redisAddr = "<memory>"
	}
	return fmt.Sprintf("base_url=%s debounce=%v timeout=%v max_tracked=%d evict_interval=%v token_store=%s",
		c.Client.BaseURL, c.Client.Debounce, c.Client.Timeout, c.Client.MaxTracked, c.Client.EvictInterval, redisAddr)
}
