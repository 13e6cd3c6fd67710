package startable

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with startable-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLocation adds a location field to the logger.
func (l *Logger) WithLocation(location string) *Logger {
	return &Logger{
		Logger: l.Logger.With("location", location),
	}
}

// WithTable adds a table name field to the logger.
func (l *Logger) WithTable(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", name),
	}
}

// LogLoad logs a table load.
func (l *Logger) LogLoad(ctx context.Context, location, format string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"location", location,
			"format", format,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "load completed",
			"location", location,
			"format", format,
		)
	}
}

// LogScan logs a full pass over a table.
func (l *Logger) LogScan(ctx context.Context, name string, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"table", name,
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"table", name,
			"rows", rows,
		)
	}
}

// LogJoin logs an array join.
func (l *Logger) LogJoin(ctx context.Context, name string, columns int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "array join failed",
			"table", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "array join prepared",
			"table", name,
			"columns", columns,
		)
	}
}
