package slabgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/slabgo/slab"
)

// Logger wraps slog.Logger with slabgo-specific context.
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

// WithHandle adds a handle field to the logger (useful for tagging operations).
func (l *Logger) WithHandle(h slab.Handle) *Logger {
	return &Logger{
		Logger: l.Logger.With("handle", uint32(h)),
	}
}

// WithSeq adds a WAL sequence field to the logger.
func (l *Logger) WithSeq(seq uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("seq", seq),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, h slab.Handle, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"handle", uint32(h),
		)
	}
}

// LogBatchInsert logs a batch insert operation.
func (l *Logger) LogBatchInsert(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch insert completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch insert completed",
			"count", count,
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, h slab.Handle, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"handle", uint32(h),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"handle", uint32(h),
		)
	}
}

// LogErase logs an erase operation.
func (l *Logger) LogErase(ctx context.Context, h slab.Handle, err error) {
	if err != nil {
		l.ErrorContext(ctx, "erase failed",
			"handle", uint32(h),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "erase completed",
			"handle", uint32(h),
		)
	}
}

// LogClear logs a clear operation.
func (l *Logger) LogClear(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clear failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "store cleared")
	}
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
		)
	}
}

// LogCheckpoint logs a checkpoint (snapshot save plus WAL truncation).
func (l *Logger) LogCheckpoint(ctx context.Context, seq uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"seq", seq,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint completed",
			"seq", seq,
		)
	}
}

// LogRecovery logs a WAL recovery operation.
func (l *Logger) LogRecovery(ctx context.Context, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "WAL recovery failed",
			"entries_replayed", entriesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "WAL recovery completed",
			"entries_replayed", entriesReplayed,
		)
	}
}
