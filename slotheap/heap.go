package slotheap

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/internal/telemetry"
	"github.com/hupe1980/arenakit/resource"
)

const kind = "slotheap"

// Heap is a fixed table of slots with best-fit placement and epoch-gated
// reclamation of released ranges.
type Heap struct {
	mu        sync.Mutex
	capacity  uint32
	page      int    // index within the owning Pool, -1 for standalone heaps
	id        uint32 // page as stored in the pool's free set
	index     *freeIndex
	stale     staleQueue
	live      map[uint32]uint32 // offset -> size of allocated ranges
	peak      uint32
	allocs    uint64
	completed uint64
	closed    bool

	clock   *Clock
	res     *resource.Reservation
	logger  *slog.Logger
	metrics telemetry.Recorder
	warn    *telemetry.WarnGate
}

// New creates a heap of capacity slots, all free.
func New(capacity uint32, opts ...Option) (*Heap, error) {
	return newHeap(capacity, -1, applyOptions(opts))
}

func newHeap(capacity uint32, page int, o options) (*Heap, error) {
	if capacity == 0 {
		return nil, ErrInvalidCapacity
	}
	res, err := o.controller.Reserve(int64(capacity) * o.slotBytes)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With("heap", kind)
	if page >= 0 {
		logger = logger.With("page", page)
	}

	h := &Heap{
		capacity: capacity,
		page:     page,
		index:    newFreeIndex(),
		live:     make(map[uint32]uint32),
		clock:    o.clock,
		res:      res,
		logger:   logger,
		metrics:  o.metrics,
		warn:     telemetry.NewWarnGate(logger, o.warnEvery, o.warnBurst),
	}
	h.index.insert(Range{Offset: 0, Size: capacity})
	return h, nil
}

// Allocate reserves n contiguous slots from the smallest free range that
// fits. It fails with an *AllocError wrapping ErrOutOfSlots when no range is
// large enough; released ranges are not considered until reclaimed.
func (h *Heap) Allocate(n uint32) (*Handle, error) {
	start := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	rng, err := h.allocate(n, start)
	if err != nil {
		return nil, err
	}
	return newHandle(h, rng), nil
}

func (h *Heap) allocate(n uint32, start time.Time) (Range, error) {
	if h.closed {
		return Range{}, ErrClosed
	}
	if n == 0 {
		return Range{}, ErrInvalidSize
	}

	rng, ok := h.place(n, start)
	if !ok {
		err := &AllocError{Count: n, Free: h.index.free, Largest: h.index.largest()}
		h.metrics.RecordAllocate(kind, int(n), time.Since(start), err)
		h.warn.Warn(context.Background(), "slot heap exhausted",
			"count", n,
			"free", err.Free,
			"largest", err.Largest,
			"pending", h.stale.units,
		)
		return Range{}, err
	}
	return rng, nil
}

// place carves n slots out of the best-fitting free range.
func (h *Heap) place(n uint32, start time.Time) (Range, bool) {
	if n > h.index.free {
		return Range{}, false
	}
	blk, ok := h.index.bestFit(n)
	if !ok {
		return Range{}, false
	}

	rng := h.index.take(blk, n)
	h.live[rng.Offset] = rng.Size
	h.peak = max(h.peak, h.used())
	h.allocs++
	h.metrics.RecordAllocate(kind, int(n), time.Since(start), nil)
	return rng, true
}

// tryAllocate is Allocate for pool pages: a miss is not reported, since the
// pool moves on to another page. It also returns the free slots left.
func (h *Heap) tryAllocate(n uint32, start time.Time) (*Handle, uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, 0, false
	}
	rng, ok := h.place(n, start)
	if !ok {
		return nil, h.index.free, false
	}
	return newHandle(h, rng), h.index.free, true
}

// Release queues the handle's range for reclamation at epoch. It is
// equivalent to handle.ReleaseAt(epoch) and panics if the handle belongs to
// another heap or was already released.
func (h *Heap) Release(handle *Handle, epoch uint64) {
	if handle.heap != h {
		violation("Release", "handle for range [%d,%d) belongs to another heap", handle.rng.Offset, handle.rng.End())
	}
	handle.ReleaseAt(epoch)
}

// release moves an allocated range to the stale queue. The free indexes are
// not touched.
func (h *Heap) release(r Range, epoch uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		violation("Release", "range [%d,%d) released after the heap was closed", r.Offset, r.End())
	}
	if size, ok := h.live[r.Offset]; !ok || size != r.Size {
		violation("Release", "range [%d,%d) is not allocated", r.Offset, r.End())
	}
	delete(h.live, r.Offset)
	h.stale.Push(r, epoch)
}

// releaseLeaked is the cleanup path for handles that were dropped without
// Release. It never panics.
func (h *Heap) releaseLeaked(r Range) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	if size, ok := h.live[r.Offset]; !ok || size != r.Size {
		return
	}
	delete(h.live, r.Offset)
	epoch := h.stale.Push(r, h.clock.Current())
	h.logger.Warn("slot range leaked, released by cleanup",
		"offset", r.Offset,
		"size", r.Size,
		"epoch", epoch,
	)
}

// ReclaimUpTo returns every queued range whose epoch is at or before epoch to
// the free indexes, merging it with adjacent free ranges. Entries are
// processed in queue order and processing stops at the first younger entry.
// It returns the number of slots reclaimed.
func (h *Heap) ReclaimUpTo(epoch uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reclaimUpTo(epoch)
}

func (h *Heap) reclaimUpTo(epoch uint64) int {
	h.completed = max(h.completed, epoch)

	var entries, units int
	for {
		e, ok := h.stale.Front()
		if !ok || e.epoch > epoch {
			break
		}
		h.stale.Pop()
		if err := h.index.merge(e.rng); err != nil {
			violation("ReclaimUpTo", "%v", err)
		}
		entries++
		units += int(e.rng.Size)
	}

	if entries > 0 {
		h.metrics.RecordFree(kind, units)
		h.metrics.RecordReclaim(entries, units)
		h.logger.Debug("reclaimed", "epoch", epoch, "entries", entries, "slots", units)
	}
	return units
}

// Capacity returns the total number of slots.
func (h *Heap) Capacity() uint32 {
	return h.capacity
}

// Free returns the number of slots available to Allocate.
func (h *Heap) Free() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index.free
}

// Pending returns the number of released slots waiting for reclamation.
func (h *Heap) Pending() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stale.units
}

// Clock returns the epoch clock used by Handle.Release.
func (h *Heap) Clock() *Clock {
	return h.clock
}

func (h *Heap) used() uint32 {
	return h.capacity - h.index.free
}

// Stats is a snapshot of a heap or pool. Slot totals are 64-bit so that a
// pool's sum over many pages does not wrap.
type Stats struct {
	Capacity    uint64
	Free        uint64
	Pending     uint64 // released, waiting for reclamation
	Live        int    // outstanding allocations
	Used        uint64 // allocated plus pending
	Peak        uint64 // pools: sum of page peaks
	FreeRanges  int
	LargestFree uint32
	TotalAllocs uint64
	Completed   uint64 // highest epoch passed to ReclaimUpTo
	Pages       int    // pool only
}

// Stats returns a snapshot of the heap's counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats()
}

func (h *Heap) stats() Stats {
	return Stats{
		Capacity:    uint64(h.capacity),
		Free:        uint64(h.index.free),
		Pending:     uint64(h.stale.units),
		Live:        len(h.live),
		Used:        uint64(h.used()),
		Peak:        uint64(h.peak),
		FreeRanges:  h.index.len(),
		LargestFree: h.index.largest(),
		TotalAllocs: h.allocs,
		Completed:   h.completed,
	}
}

// Layout returns the free, live and stale ranges of the heap.
func (h *Heap) Layout() diag.Layout {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.layout()
}

func (h *Heap) layout() diag.Layout {
	out := diag.Layout{
		Kind:      kind,
		Capacity:  int64(h.capacity),
		Used:      int64(h.used()),
		Peak:      int64(h.peak),
		Completed: h.completed,
	}
	h.index.ascend(func(r Range) bool {
		out.Free = append(out.Free, span(r))
		return true
	})
	for off, size := range h.live {
		out.Live = append(out.Live, span(Range{Offset: off, Size: size}))
	}
	slices.SortFunc(out.Live, func(a, b diag.Span) int { return cmp.Compare(a.Offset, b.Offset) })
	h.stale.Each(func(e staleEntry) {
		out.Stale = append(out.Stale, diag.StaleSpan{Span: span(e.rng), Epoch: e.epoch})
	})
	return out
}

func span(r Range) diag.Span {
	return diag.Span{Offset: int64(r.Offset), Size: int64(r.Size)}
}

// Validate checks the heap invariants: free, allocated and pending ranges
// tile the table, both free indexes agree, no two free ranges touch and the
// stale queue epochs never decrease.
func (h *Heap) Validate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.validate()
}

func (h *Heap) validate() error {
	if err := h.index.check(); err != nil {
		return fmt.Errorf("slotheap: %w", err)
	}
	if err := h.layout().Check(); err != nil {
		return err
	}
	var (
		last uint64
		err  error
	)
	h.stale.Each(func(e staleEntry) {
		if err == nil && e.epoch < last {
			err = fmt.Errorf("slotheap: stale queue epoch %d after %d", e.epoch, last)
		}
		last = max(last, e.epoch)
	})
	return err
}

// Close releases the heap's memory budget. Handles released afterwards panic;
// leaked handles are ignored.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if len(h.live) > 0 || h.stale.Len() > 0 {
		h.logger.Warn("slot heap closed with outstanding ranges",
			"live", len(h.live),
			"pending", h.stale.units,
		)
	}
	h.res.Release()
	return nil
}
