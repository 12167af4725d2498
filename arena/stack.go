package arena

import (
	"sync"
	"time"

	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/internal/align"
)

// stackFrame records one allocation: where the cursor was before it and
// where its payload starts.
type stackFrame struct {
	start   int
	payload Ptr
}

// Stack is a bump-pointer arena whose allocations must be freed in exactly
// the reverse order they were made.
type Stack struct {
	mu     sync.Mutex
	b      *base
	offset int
	frames []stackFrame
}

// NewStack creates a stack arena of capacity bytes.
func NewStack(capacity int, opts ...Option) (*Stack, error) {
	b, err := newBase("stack", capacity, opts)
	if err != nil {
		return nil, err
	}
	return &Stack{b: b}, nil
}

// Allocate pushes size bytes aligned to alignment (0 means DefaultAlignment).
func (s *Stack) Allocate(size, alignment int) (Ptr, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.b.checkRequest(size); err != nil {
		return NilPtr, err
	}
	alignment = s.b.normalizeAlignment(alignment, 1)

	payload := align.Up(s.offset, alignment)
	if payload > s.b.capacity || size > s.b.capacity-payload {
		return NilPtr, s.b.exhausted(size, alignment, s.b.capacity-s.offset, start)
	}

	s.frames = append(s.frames, stackFrame{start: s.offset, payload: Ptr(payload)})
	s.b.grow(payload + size - s.offset)
	s.offset = payload + size
	s.b.allocated(size, start)
	return Ptr(payload), nil
}

// Free pops the most recent allocation. p must be that allocation; anything
// else panics with a ProtocolError.
func (s *Stack) Free(p Ptr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.frames)
	if n == 0 {
		violation(s.b.kind, "Free", "free of %d on an empty stack", p)
	}
	top := s.frames[n-1]
	if top.payload != p {
		violation(s.b.kind, "Free", "free of %d out of order, top of stack is %d", p, top.payload)
	}

	s.frames = s.frames[:n-1]
	s.b.shrink(s.offset - top.start)
	s.offset = top.start
}

// Reset drops every allocation.
func (s *Stack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = s.frames[:0]
	s.offset = 0
	s.b.resetCounters()
}

// Depth returns the number of outstanding allocations.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Bytes returns the n bytes at p.
func (s *Stack) Bytes(p Ptr, n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.bytes(p, n)
}

// Stats returns a snapshot of the arena counters.
func (s *Stack) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.b.stats()
	st.Live = len(s.frames)
	if free := s.b.capacity - s.offset; free > 0 {
		st.FreeBlocks, st.LargestFree = 1, free
	}
	return st
}

// Layout reports one live span per frame (its padding included) and the free tail.
func (s *Stack) Layout() diag.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.b.layout()
	for i, f := range s.frames {
		end := s.offset
		if i+1 < len(s.frames) {
			end = s.frames[i+1].start
		}
		out.Live = append(out.Live, diag.Span{Offset: int64(f.start), Size: int64(end - f.start)})
	}
	if s.offset < s.b.capacity {
		out.Free = []diag.Span{{Offset: int64(s.offset), Size: int64(s.b.capacity - s.offset)}}
	}
	return out
}

// Close releases the buffer and its memory budget.
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.close(len(s.frames))
}
