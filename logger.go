package repairfs

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with repairfs-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogSalvage logs a salvage operation.
func (l *Logger) LogSalvage(ctx context.Context, src, dst string, copied, bad uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "salvage failed",
			"source", src,
			"destination", dst,
			"pages_copied", copied,
			"pages_bad", bad,
			"error", err,
		)
	} else if bad > 0 {
		l.WarnContext(ctx, "salvage completed with unreadable pages",
			"source", src,
			"destination", dst,
			"pages_copied", copied,
			"pages_bad", bad,
		)
	} else {
		l.InfoContext(ctx, "salvage completed",
			"source", src,
			"destination", dst,
			"pages_copied", copied,
		)
	}
}

// LogVerify logs a verification scan.
func (l *Logger) LogVerify(ctx context.Context, path string, pages, bad uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "verify failed",
			"path", path,
			"error", err,
		)
	} else if bad > 0 {
		l.WarnContext(ctx, "verify found unreadable pages",
			"path", path,
			"pages", pages,
			"pages_bad", bad,
		)
	} else {
		l.DebugContext(ctx, "verify completed",
			"path", path,
			"pages", pages,
		)
	}
}

// LogArchive logs an archive operation.
func (l *Logger) LogArchive(ctx context.Context, name string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive failed",
			"entry", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "archive completed",
			"entry", name,
			"bytes", size,
		)
	}
}

// LogRestore logs a restore operation.
func (l *Logger) LogRestore(ctx context.Context, name, dst string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"entry", name,
			"destination", dst,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"entry", name,
			"destination", dst,
		)
	}
}
