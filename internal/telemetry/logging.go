// Package telemetry sets up structured logging for the command line.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel reads the level from LOG_LEVEL: DEBUG, INFO, WARN or ERROR. INFO by default.
func LogLevel() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w. LOG_FORMAT=json selects JSON output,
// anything else the human readable text format.
func NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// SetupLogger creates the logger on stderr and makes it the default one.
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stderr)
	slog.SetDefault(logger)

	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey string

const ctxLogger ctxKey = "logger"

// WithLogger adds the logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLogger, logger)
}

// FromContext returns the logger stored in ctx, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLogger).(*slog.Logger); ok {
		return logger
	}

	return slog.Default()
}
