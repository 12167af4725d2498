// Package telemetry holds the observation hooks shared by the allocator
// packages: a metrics Recorder and a rate-limited gate for warning logs.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Recorder receives allocator events. Implementations must be safe for
// concurrent use; they are called while the allocator's lock is held, so
// they must not call back into the allocator.
type Recorder interface {
	// RecordAllocate is called after every allocation attempt.
	// units is the requested size (bytes or slots), err is nil on success.
	RecordAllocate(kind string, units int, duration time.Duration, err error)

	// RecordFree is called when units become free (synchronously for byte
	// arenas, on reclamation for slot heaps).
	RecordFree(kind string, units int)

	// RecordReclaim is called after a reclaim pass that freed at least one entry.
	RecordReclaim(entries, units int)

	// RecordGrow is called when a heap pool adds a page.
	RecordGrow(units int)
}

// Noop discards all events.
type Noop struct{}

func (Noop) RecordAllocate(string, int, time.Duration, error) {}
func (Noop) RecordFree(string, int)                          {}
func (Noop) RecordReclaim(int, int)                          {}
func (Noop) RecordGrow(int)                                  {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return DiscardLogger()
	}
	return l
}

// Default rate for capacity warnings: a burst of 5, then one per second.
const (
	DefaultWarnEvery = time.Second
	DefaultWarnBurst = 5
)

// WarnGate rate-limits warning records so an allocation storm against a full
// arena produces a bounded amount of log output.
type WarnGate struct {
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewWarnGate returns a gate allowing burst warnings, refilled once per every.
func NewWarnGate(logger *slog.Logger, every time.Duration, burst int) *WarnGate {
	return &WarnGate{
		logger:  OrDiscard(logger),
		limiter: rate.NewLimiter(rate.Every(every), burst),
	}
}

// Warn logs msg at Warn level if the limiter allows it and reports whether it did.
func (g *WarnGate) Warn(ctx context.Context, msg string, args ...any) bool {
	if !g.logger.Enabled(ctx, slog.LevelWarn) || !g.limiter.Allow() {
		return false
	}
	g.logger.WarnContext(ctx, msg, args...)
	return true
}
