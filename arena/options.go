package arena

import (
	"log/slog"
	"time"

	"github.com/hupe1980/arenakit/internal/backing"
	"github.com/hupe1980/arenakit/internal/telemetry"
	"github.com/hupe1980/arenakit/resource"
)

// Backing selects where an arena's buffer lives.
type Backing = backing.Kind

const (
	// BackingHeap keeps the buffer on the Go heap (default).
	BackingHeap = backing.Heap
	// BackingAnon maps the buffer outside the Go heap where supported.
	BackingAnon = backing.Anon
)

type options struct {
	logger     *slog.Logger
	metrics    telemetry.Recorder
	controller *resource.Controller
	backing    Backing
	warnEvery  time.Duration
	warnBurst  int
}

func defaultOptions() options {
	return options{
		metrics:   telemetry.Noop{},
		backing:   BackingHeap,
		warnEvery: telemetry.DefaultWarnEvery,
		warnBurst: telemetry.DefaultWarnBurst,
	}
}

// Option configures an allocator.
type Option func(*options)

// WithLogger sets the logger. Nil discards logs.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics recorder. Nil disables metrics.
func WithMetrics(m telemetry.Recorder) Option {
	return func(o *options) {
		o.metrics = telemetry.OrNoop(m)
	}
}

// WithController charges the arena's capacity to a shared memory budget.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithBacking selects heap or anonymous-mapping storage.
func WithBacking(b Backing) Option {
	return func(o *options) {
		o.backing = b
	}
}

// WithWarnRate limits out-of-memory warnings to burst records, refilled once per every.
func WithWarnRate(every time.Duration, burst int) Option {
	return func(o *options) {
		o.warnEvery = every
		o.warnBurst = burst
	}
}
