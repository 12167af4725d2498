package arenakit

import (
	"log/slog"
	"time"

	"github.com/hupe1980/arenakit/arena"
	"github.com/hupe1980/arenakit/resource"
	"github.com/hupe1980/arenakit/slotheap"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
	memoryLimit      int64
	backing          arena.Backing
	clock            *slotheap.Clock
	slotBytes        int64
	maxPages         int
	warnEvery        time.Duration
	warnBurst        int
}

// Option configures a Provider.
type Option func(*options)

// WithLogger configures structured logging for every allocator of the provider.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := arenakit.NewJSONLogger(slog.LevelInfo)
//	p := arenakit.New(arenakit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring allocators.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &arenakit.BasicMetricsCollector{}
//	p := arenakit.New(arenakit.WithMetricsCollector(metrics))
//	// ... allocate ...
//	stats := metrics.GetStats()
//	fmt.Printf("Allocs: %d, Avg latency: %dns\n", stats.AllocCount, stats.AllocAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithMemoryLimit caps the total capacity of all allocators of the provider
// (byte arenas by capacity, slot heaps by slots times slot bytes). 0 means
// unlimited. Ignored when WithController is also given.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithController shares an existing memory budget, for example between
// several providers.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithBacking selects heap or anonymous-mapping storage for byte arenas.
func WithBacking(b arena.Backing) Option {
	return func(o *options) {
		o.backing = b
	}
}

// WithClock shares an epoch clock with slot heaps and heap pools. By default
// the provider creates one clock for all of them.
func WithClock(c *slotheap.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithSlotBytes sets the per-slot size charged to the memory budget.
func WithSlotBytes(n int64) Option {
	return func(o *options) {
		o.slotBytes = n
	}
}

// WithMaxPages limits the page count of every heap pool (0 means unlimited).
func WithMaxPages(n int) Option {
	return func(o *options) {
		o.maxPages = n
	}
}

// WithWarnRate limits exhaustion warnings per allocator to burst records,
// refilled once per every.
func WithWarnRate(every time.Duration, burst int) Option {
	return func(o *options) {
		o.warnEvery = every
		o.warnBurst = burst
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		backing:          arena.BackingHeap,
		slotBytes:        slotheap.DefaultSlotBytes,
		warnEvery:        time.Second,
		warnBurst:        5,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.controller == nil {
		o.controller = resource.NewController(resource.Config{MemoryLimitBytes: o.memoryLimit})
	}
	if o.clock == nil {
		o.clock = slotheap.NewClock()
	}
	return o
}
