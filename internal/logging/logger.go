// Package logging provides structured logging configuration using log/slog.
//
// Run IDs are propagated through a local context key (runIDKey) rather than
// chi's RequestID middleware: this repo has no HTTP surface, but the driver
// still wants one correlation ID per BatchedDriver.Run invocation threaded
// through every log line it emits.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey int

const runIDKey contextKey = iota

// WithRunID returns a context carrying runID for FromContext to pick up.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns a logger enriched with the run ID set by WithRunID,
// if any.
//
// Usage:
//
//	func (d *BatchedDriver) Run(ctx context.Context, user, dataset string, columnTypes []repository.ColumnDecl) error {
//	    ctx = logging.WithRunID(ctx, fmt.Sprintf("%s/%s", user, dataset))
//	    logger := logging.FromContext(ctx)
//	    logger.Info("driver run started", "dataset", dataset)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		logger = logger.With("run_id", runID)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// This is useful for creating operation-specific loggers that carry
// consistent context through a multi-step process.
//
// Usage:
//
//	driverLogger := logging.WithFields(ctx,
//	    "dataset", dataset,
//	    "user", user,
//	)
//	driverLogger.Info("run started")
//	// ... later ...
//	driverLogger.Info("run finished", "rows", processed)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
