package slotheap

import (
	"runtime"
	"sync/atomic"
)

// Handle owns one allocated range. Release it exactly once; a handle that
// becomes unreachable without being released is queued at the clock's
// current epoch by a runtime cleanup and logged as a leak.
type Handle struct {
	heap     *Heap
	rng      Range
	released atomic.Bool
	cleanup  runtime.Cleanup
}

// leak is the cleanup argument. It must not reference the Handle.
type leak struct {
	heap *Heap
	rng  Range
}

func newHandle(h *Heap, r Range) *Handle {
	handle := &Handle{heap: h, rng: r}
	handle.cleanup = runtime.AddCleanup(handle, func(l leak) {
		l.heap.releaseLeaked(l.rng)
	}, leak{heap: h, rng: r})
	return handle
}

// Offset returns the first slot of the range within its page.
func (h *Handle) Offset() uint32 { return h.rng.Offset }

// Size returns the number of slots.
func (h *Handle) Size() uint32 { return h.rng.Size }

// Range returns the allocated range.
func (h *Handle) Range() Range { return h.rng }

// Page returns the index of the owning page in its Pool, or -1 for a
// standalone Heap.
func (h *Handle) Page() int { return h.heap.page }

// Released reports whether the handle has been released.
func (h *Handle) Released() bool { return h.released.Load() }

// Release queues the range at the clock's current epoch.
func (h *Handle) Release() {
	h.ReleaseAt(h.heap.clock.Current())
}

// ReleaseAt queues the range at epoch. The range stays unavailable until the
// owning heap reclaims epoch. Releasing twice panics.
func (h *Handle) ReleaseAt(epoch uint64) {
	if !h.released.CompareAndSwap(false, true) {
		violation("Release", "range [%d,%d) released twice", h.rng.Offset, h.rng.End())
	}
	h.cleanup.Stop()
	h.heap.release(h.rng, epoch)
}
