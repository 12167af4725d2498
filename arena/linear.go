package arena

import (
	"sync"
	"time"

	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/internal/align"
)

// Linear is a bump-pointer arena. Individual allocations cannot be freed;
// Reset releases all of them at once, which makes it suited to per-frame
// scratch memory.
type Linear struct {
	mu     sync.Mutex
	b      *base
	offset int
}

// NewLinear creates a linear arena of capacity bytes.
func NewLinear(capacity int, opts ...Option) (*Linear, error) {
	b, err := newBase("linear", capacity, opts)
	if err != nil {
		return nil, err
	}
	return &Linear{b: b}, nil
}

// Allocate returns size bytes aligned to alignment (0 means DefaultAlignment).
func (l *Linear) Allocate(size, alignment int) (Ptr, error) {
	start := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.b.checkRequest(size); err != nil {
		return NilPtr, err
	}
	alignment = l.b.normalizeAlignment(alignment, 1)

	payload := align.Up(l.offset, alignment)
	if payload > l.b.capacity || size > l.b.capacity-payload {
		return NilPtr, l.b.exhausted(size, alignment, l.b.capacity-l.offset, start)
	}

	l.b.grow(payload + size - l.offset)
	l.offset = payload + size
	l.b.allocated(size, start)
	return Ptr(payload), nil
}

// Free always panics: a linear arena only supports Reset.
func (l *Linear) Free(p Ptr) {
	violation(l.b.kind, "Free", "individual free of %d is not supported, use Reset", p)
}

// Reset drops every allocation in O(1). The buffer is kept for reuse and
// used/peak tracking starts over.
func (l *Linear) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.offset = 0
	l.b.resetCounters()
}

// Bytes returns the n bytes at p.
func (l *Linear) Bytes(p Ptr, n int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.bytes(p, n)
}

// Offset returns the bump cursor.
func (l *Linear) Offset() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Stats returns a snapshot of the arena counters.
func (l *Linear) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.b.stats()
	if free := l.b.capacity - l.offset; free > 0 {
		s.FreeBlocks, s.LargestFree = 1, free
	}
	return s
}

// Layout reports the used prefix as one live span and the tail as free.
func (l *Linear) Layout() diag.Layout {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.b.layout()
	if l.offset > 0 {
		out.Live = []diag.Span{{Offset: 0, Size: int64(l.offset)}}
	}
	if l.offset < l.b.capacity {
		out.Free = []diag.Span{{Offset: int64(l.offset), Size: int64(l.b.capacity - l.offset)}}
	}
	return out
}

// Close releases the buffer and its memory budget.
func (l *Linear) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.close(0)
}
