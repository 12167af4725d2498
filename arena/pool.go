package arena

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/arenakit/diag"
)

// MinChunkSize is the smallest chunk a Pool accepts: one free-stack link.
const MinChunkSize = 8

// Pool hands out equal-sized chunks. Free chunks form a stack, so Allocate
// and Free are O(1) and the pool never fragments.
type Pool struct {
	mu        sync.Mutex
	b         *base
	chunkSize int
	chunks    int
	free      []uint32        // free stack of chunk indices; top is the next chunk handed out
	live      *roaring.Bitmap // indices of allocated chunks
}

// NewPool creates a pool of capacity/chunkSize chunks. Capacity is rounded
// down to a whole number of chunks.
func NewPool(capacity, chunkSize int, opts ...Option) (*Pool, error) {
	if chunkSize < MinChunkSize {
		return nil, fmt.Errorf("%w: %d (minimum %d)", ErrInvalidChunkSize, chunkSize, MinChunkSize)
	}
	if capacity < chunkSize {
		return nil, fmt.Errorf("%w: %d is smaller than one chunk of %d", ErrInvalidCapacity, capacity, chunkSize)
	}

	chunks := capacity / chunkSize
	if uint64(chunks) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d chunks exceed the chunk index range", ErrInvalidCapacity, chunks)
	}
	b, err := newBase("pool", chunks*chunkSize, opts)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		b:         b,
		chunkSize: chunkSize,
		chunks:    chunks,
		free:      make([]uint32, 0, chunks),
		live:      roaring.New(),
	}
	p.thread()
	return p, nil
}

// thread pushes every chunk so that pops come out in ascending address order.
func (p *Pool) thread() {
	p.free = p.free[:0]
	for i := p.chunks - 1; i >= 0; i-- {
		p.free = append(p.free, uint32(i))
	}
}

// ChunkSize returns the size of every chunk.
func (p *Pool) ChunkSize() int {
	return p.chunkSize
}

// naturalAlignment is the largest power of two dividing the chunk size,
// capped at MaxAlignment: every chunk start is aligned to it.
func (p *Pool) naturalAlignment() int {
	return min(p.chunkSize&-p.chunkSize, MaxAlignment)
}

// Allocate pops one chunk. size must not exceed ChunkSize and alignment must
// divide it; both are protocol violations. Alignment 0 selects the chunk's
// natural alignment up to DefaultAlignment.
func (p *Pool) Allocate(size, alignment int) (Ptr, error) {
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.b.checkRequest(size); err != nil {
		return NilPtr, err
	}
	if size > p.chunkSize {
		violation(p.b.kind, "Allocate", "size %d exceeds chunk size %d", size, p.chunkSize)
	}
	if alignment == 0 {
		alignment = min(DefaultAlignment, p.naturalAlignment())
	}
	alignment = p.b.normalizeAlignment(alignment, 1)
	if alignment > p.naturalAlignment() {
		violation(p.b.kind, "Allocate", "alignment %d does not divide chunk size %d", alignment, p.chunkSize)
	}

	n := len(p.free)
	if n == 0 {
		return NilPtr, p.b.exhausted(size, alignment, 0, start)
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]
	p.live.Add(idx)

	p.b.grow(p.chunkSize)
	p.b.allocated(size, start)
	return Ptr(int(idx) * p.chunkSize), nil
}

// Free pushes the chunk at ptr back onto the free stack. Freeing a pointer
// that is not the start of a live chunk panics.
func (p *Pool) Free(ptr Ptr) {
	p.mu.Lock()
	defer p.mu.Unlock()

	off := int(ptr)
	if off < 0 || off >= p.b.capacity || off%p.chunkSize != 0 {
		violation(p.b.kind, "Free", "%d is not a chunk start", ptr)
	}
	idx := uint32(off / p.chunkSize)
	if !p.live.CheckedRemove(idx) {
		violation(p.b.kind, "Free", "chunk %d is not allocated", idx)
	}
	p.free = append(p.free, idx)
	p.b.shrink(p.chunkSize)
}

// Reset returns every chunk to the free stack.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.live.Clear()
	p.thread()
	p.b.resetCounters()
}

// Available returns the number of free chunks.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Bytes returns the n bytes at ptr.
func (p *Pool) Bytes(ptr Ptr, n int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.b.bytes(ptr, n)
}

// Stats returns a snapshot of the pool counters. FreeBlocks counts free chunks.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.b.stats()
	s.Live = int(p.live.GetCardinality())
	s.FreeBlocks = len(p.free)
	if s.FreeBlocks > 0 {
		s.LargestFree = p.chunkSize
	}
	return s
}

// Layout reports one span per chunk.
func (p *Pool) Layout() diag.Layout {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.b.layout()
	size := int64(p.chunkSize)
	for i := 0; i < p.chunks; i++ {
		span := diag.Span{Offset: int64(i) * size, Size: size}
		if p.live.Contains(uint32(i)) {
			out.Live = append(out.Live, span)
		} else {
			out.Free = append(out.Free, span)
		}
	}
	return out
}

// Close releases the buffer and its memory budget.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.b.close(int(p.live.GetCardinality()))
}
