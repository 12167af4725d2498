package arenakit

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with allocator-specific fields.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithKind adds an allocator kind field ("linear", "freelist", "slotheap", ...).
func (l *Logger) WithKind(kind string) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", kind),
	}
}

// WithEpoch adds an epoch field.
func (l *Logger) WithEpoch(epoch uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("epoch", epoch),
	}
}

// LogAllocate logs an allocation at debug level. Exhaustion warnings are
// emitted, rate limited, by the allocators themselves.
func (l *Logger) LogAllocate(ctx context.Context, kind string, size int, err error) {
	if err != nil {
		l.DebugContext(ctx, "allocation failed",
			"kind", kind,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "allocation completed",
			"kind", kind,
			"size", size,
		)
	}
}

// LogReclaim logs a reclaim pass. Use WithEpoch to attach the epoch.
func (l *Logger) LogReclaim(ctx context.Context, slots int) {
	l.DebugContext(ctx, "reclaim completed",
		"slots", slots,
	)
}

// LogGrow logs a heap pool page of pageSize slots; pages is the number of
// pages added so far.
func (l *Logger) LogGrow(ctx context.Context, pages int, pageSize int) {
	l.DebugContext(ctx, "heap pool grew",
		"pages", pages,
		"page_size", pageSize,
	)
}

// LogTeardown logs an allocator closed by its provider. Use WithKind to
// attach the allocator kind.
func (l *Logger) LogTeardown(ctx context.Context, live int) {
	if live > 0 {
		l.WarnContext(ctx, "allocator closed with live allocations",
			"live", live,
		)
	} else {
		l.DebugContext(ctx, "allocator closed")
	}
}
