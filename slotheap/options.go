package slotheap

import (
	"log/slog"
	"time"

	"github.com/hupe1980/arenakit/internal/telemetry"
	"github.com/hupe1980/arenakit/resource"
)

// DefaultSlotBytes is the size charged per slot against a resource controller.
const DefaultSlotBytes = 32

type options struct {
	logger     *slog.Logger
	metrics    telemetry.Recorder
	clock      *Clock
	controller *resource.Controller
	slotBytes  int64
	maxPages   int
	warnEvery  time.Duration
	warnBurst  int
}

func defaultOptions() options {
	return options{
		metrics:   telemetry.Noop{},
		slotBytes: DefaultSlotBytes,
		warnEvery: telemetry.DefaultWarnEvery,
		warnBurst: telemetry.DefaultWarnBurst,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = telemetry.OrDiscard(o.logger)
	if o.clock == nil {
		o.clock = NewClock()
	}
	return o
}

// Option configures a Heap or a Pool.
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

// WithClock shares an epoch clock. Handle.Release tags ranges with its
// current epoch. Without it every Heap or Pool gets its own clock.
func WithClock(c *Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithController charges slotBytes per slot of every heap (or page) to a
// shared memory budget.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithSlotBytes sets the per-slot size charged to the controller.
func WithSlotBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.slotBytes = n
		}
	}
}

// WithMaxPages limits how many pages a Pool may create (0 means unlimited).
func WithMaxPages(n int) Option {
	return func(o *options) {
		o.maxPages = n
	}
}

// WithWarnRate limits exhaustion warnings to burst records, refilled once per every.
func WithWarnRate(every time.Duration, burst int) Option {
	return func(o *options) {
		o.warnEvery = every
		o.warnBurst = burst
	}
}
