// Package log provides structured logging for the TinyEVM executor. It
// wraps log/slog with per-subsystem child loggers, following the same
// shape the teacher client uses for its own module loggers.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with executor-specific context.
type Logger struct {
	inner *slog.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = New(levelFromEnv())
}

// levelFromEnv reads TEVM_LOG_LEVEL, falling back to info on unset/unknown values.
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("TEVM_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a Logger that writes JSON to stderr at the given level.
func New(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// Default returns the process-wide default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger tagged with a "module" attribute.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger with additional key/value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
