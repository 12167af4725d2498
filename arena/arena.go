package arena

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/internal/align"
	"github.com/hupe1980/arenakit/internal/backing"
	"github.com/hupe1980/arenakit/internal/telemetry"
	"github.com/hupe1980/arenakit/resource"
)

const (
	// DefaultAlignment is used when Allocate is called with alignment 0.
	DefaultAlignment = 8
	// MaxAlignment is the largest supported alignment (the buffer base alignment).
	MaxAlignment = backing.Alignment
)

// Ptr is the offset of an allocation's payload from the start of its arena.
type Ptr int

// NilPtr is returned alongside errors.
const NilPtr Ptr = -1

// Allocator is the contract shared by all byte arenas.
type Allocator interface {
	Allocate(size, alignment int) (Ptr, error)
	Free(p Ptr)
	Reset()
	Bytes(p Ptr, n int) []byte
	Stats() Stats
	Layout() diag.Layout
	Close() error
}

var (
	_ Allocator = (*Linear)(nil)
	_ Allocator = (*Stack)(nil)
	_ Allocator = (*Pool)(nil)
	_ Allocator = (*FreeList)(nil)
)

// Stats is a snapshot of an allocator's counters.
type Stats struct {
	Kind        string
	Capacity    int
	Used        int    // bytes currently held, including padding and headers
	Peak        int    // historical maximum of Used since creation or Reset
	Live        int    // outstanding allocations (0 for Linear, which does not track them)
	TotalAllocs uint64 // cumulative successful allocations
	FreeBlocks  int
	LargestFree int
}

// base is the Arena shared by every allocator: one buffer and its counters.
// Callers hold the owning allocator's lock.
type base struct {
	kind     string
	buf      *backing.Buffer
	res      *resource.Reservation
	capacity int
	used     int
	peak     int
	allocs   uint64
	closed   bool

	logger  *slog.Logger
	metrics telemetry.Recorder
	warn    *telemetry.WarnGate
}

func newBase(kind string, capacity int, opts []Option) (*base, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := telemetry.OrDiscard(o.logger).With("arena", kind)

	res, err := o.controller.Reserve(int64(capacity))
	if err != nil {
		return nil, err
	}
	buf, err := backing.New(o.backing, capacity)
	if err != nil {
		res.Release()
		return nil, err
	}

	logger.Debug("arena created", "capacity", capacity, "backing", buf.Kind().String())

	return &base{
		kind:     kind,
		buf:      buf,
		res:      res,
		capacity: capacity,
		logger:   logger,
		metrics:  o.metrics,
		warn:     telemetry.NewWarnGate(logger, o.warnEvery, o.warnBurst),
	}, nil
}

func (b *base) grow(n int) {
	b.used += n
	b.peak = max(b.peak, b.used)
}

func (b *base) shrink(n int) {
	b.used -= n
	b.metrics.RecordFree(b.kind, n)
}

func (b *base) resetCounters() {
	if b.used > 0 {
		b.metrics.RecordFree(b.kind, b.used)
	}
	b.used = 0
	b.peak = 0
}

// normalizeAlignment applies the default and panics on alignments that cannot
// be honoured.
func (b *base) normalizeAlignment(alignment, minimum int) int {
	if alignment == 0 {
		alignment = max(DefaultAlignment, minimum)
	}
	if !align.IsPow2(alignment) {
		violation(b.kind, "Allocate", "alignment %d is not a power of two", alignment)
	}
	if alignment < minimum {
		violation(b.kind, "Allocate", "alignment %d below minimum %d", alignment, minimum)
	}
	if alignment > MaxAlignment {
		violation(b.kind, "Allocate", "alignment %d above maximum %d", alignment, MaxAlignment)
	}
	return alignment
}

// checkRequest validates state shared by every Allocate call.
func (b *base) checkRequest(size int) error {
	if b.closed {
		return ErrClosed
	}
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return nil
}

func (b *base) allocated(size int, start time.Time) {
	b.allocs++
	b.metrics.RecordAllocate(b.kind, size, time.Since(start), nil)
}

func (b *base) exhausted(size, alignment, free int, start time.Time) error {
	err := &AllocError{Kind: b.kind, Size: size, Alignment: alignment, Free: free}
	b.metrics.RecordAllocate(b.kind, size, time.Since(start), err)
	b.warn.Warn(context.Background(), "arena exhausted",
		"size", size,
		"alignment", alignment,
		"free", free,
		"capacity", b.capacity,
	)
	return err
}

func (b *base) bytes(p Ptr, n int) []byte {
	off := int(p)
	if off < 0 || n < 0 || off > b.capacity || n > b.capacity-off {
		violation(b.kind, "Bytes", "%d bytes at %d outside capacity %d", n, off, b.capacity)
	}
	return b.buf.Slice(off, n)
}

func (b *base) stats() Stats {
	return Stats{
		Kind:        b.kind,
		Capacity:    b.capacity,
		Used:        b.used,
		Peak:        b.peak,
		TotalAllocs: b.allocs,
	}
}

func (b *base) layout() diag.Layout {
	return diag.Layout{
		Kind:     b.kind,
		Capacity: int64(b.capacity),
		Used:     int64(b.used),
		Peak:     int64(b.peak),
	}
}

func (b *base) close(live int) error {
	if b.closed {
		return nil
	}
	b.closed = true
	if live > 0 {
		b.logger.Warn("arena closed with live allocations", "live", live, "used", b.used)
	}
	b.res.Release()
	return b.buf.Close()
}
