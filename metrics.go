package arenakit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting allocator metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Implementations are called while the allocator's lock is held: they must be
// safe for concurrent use and must not call back into the allocator.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    allocs   *prometheus.CounterVec
//	    reclaims prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordAllocate(kind string, units int, d time.Duration, err error) {
//	    p.allocs.WithLabelValues(kind).Inc()
//	}
type MetricsCollector interface {
	// RecordAllocate is called after every allocation attempt.
	// units is the requested size (bytes or slots), err is nil if successful.
	RecordAllocate(kind string, units int, duration time.Duration, err error)

	// RecordFree is called when units become reusable.
	RecordFree(kind string, units int)

	// RecordReclaim is called after a slot heap reclaim pass that returned
	// at least one range.
	RecordReclaim(entries, units int)

	// RecordGrow is called when a heap pool adds a page of units slots.
	RecordGrow(units int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFree(string, int)                          {}
func (NoopMetricsCollector) RecordReclaim(int, int)                          {}
func (NoopMetricsCollector) RecordGrow(int)                                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocCount      atomic.Int64
	AllocErrors     atomic.Int64
	AllocUnits      atomic.Int64
	AllocTotalNanos atomic.Int64
	FreedUnits      atomic.Int64
	ReclaimPasses   atomic.Int64
	ReclaimEntries  atomic.Int64
	ReclaimUnits    atomic.Int64
	GrowCount       atomic.Int64
	GrowUnits       atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(_ string, units int, duration time.Duration, err error) {
	b.AllocCount.Add(1)
	b.AllocTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocErrors.Add(1)
		return
	}
	b.AllocUnits.Add(int64(units))
}

// RecordFree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFree(_ string, units int) {
	b.FreedUnits.Add(int64(units))
}

// RecordReclaim implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReclaim(entries, units int) {
	b.ReclaimPasses.Add(1)
	b.ReclaimEntries.Add(int64(entries))
	b.ReclaimUnits.Add(int64(units))
}

// RecordGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrow(units int) {
	b.GrowCount.Add(1)
	b.GrowUnits.Add(int64(units))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocCount:     b.AllocCount.Load(),
		AllocErrors:    b.AllocErrors.Load(),
		AllocUnits:     b.AllocUnits.Load(),
		AllocAvgNanos:  b.getAvgAllocNanos(),
		FreedUnits:     b.FreedUnits.Load(),
		ReclaimPasses:  b.ReclaimPasses.Load(),
		ReclaimEntries: b.ReclaimEntries.Load(),
		ReclaimUnits:   b.ReclaimUnits.Load(),
		GrowCount:      b.GrowCount.Load(),
		GrowUnits:      b.GrowUnits.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAllocNanos() int64 {
	count := b.AllocCount.Load()
	if count == 0 {
		return 0
	}
	return b.AllocTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocCount     int64
	AllocErrors    int64
	AllocUnits     int64
	AllocAvgNanos  int64
	FreedUnits     int64
	ReclaimPasses  int64
	ReclaimEntries int64
	ReclaimUnits   int64
	GrowCount      int64
	GrowUnits      int64
}
