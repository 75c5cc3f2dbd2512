// Package observability provides slog setup and context helpers used across
// the converter.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Setup builds a slog.Logger writing to stderr. Format "json" selects a JSON
// handler; anything else selects the text handler. The returned logger is
// also installed as the process default.
func Setup(level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

type runIDKeyType string

const runIDKey runIDKeyType = "run-id"

// WithRunID stores a conversion run ID on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID retrieves the conversion run ID from the context, if any.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns the default logger enriched with the context's
// run ID when present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if id := RunID(ctx); id != "" {
		logger = logger.With(slog.String("run_id", id))
	}
	return logger
}
