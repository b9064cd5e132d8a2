package itemapprove

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger is the structured logger the orchestrator writes to. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// NewSimpleLogger returns a text logger on stderr at debug level.
func NewSimpleLogger() Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// DebugConfig selects which concerns produce debug logs.
type DebugConfig struct {
	Enabled         bool
	LogRequests     bool
	LogDebounce     bool
	LogCancellation bool
	LogEviction     bool
	LogSession      bool
	RequestIDGen    func() string
}

// DefaultDebugConfig has every concern switched on but debugging itself off.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:         false,
		LogRequests:     true,
		LogDebounce:     true,
		LogCancellation: true,
		LogEviction:     true,
		LogSession:      true,
		RequestIDGen:    uuid.NewString,
	}
}
