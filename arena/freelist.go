package arena

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/internal/align"
)

const (
	// HeaderSize is reserved directly in front of every FreeList payload, so a
	// block always spans header, alignment padding and payload.
	HeaderSize = 16
	// MinFreeListAlignment is the smallest alignment FreeList accepts.
	MinFreeListAlignment = 8
)

// freeBlock is one free region; the tree orders blocks by address.
type freeBlock struct {
	offset int
	size   int
}

func (b freeBlock) end() int { return b.offset + b.size }

func lessByOffset(a, b freeBlock) bool { return a.offset < b.offset }

// blockHeader is the side-table record for one live allocation.
type blockHeader struct {
	blockSize int // header + padding + payload
	padding   int // bytes from block start to payload, header included
}

// FreeList allocates variable-sized blocks from an address-ordered list of
// free blocks, splitting on allocation and coalescing neighbours on free.
type FreeList struct {
	mu      sync.Mutex
	b       *base
	policy  Policy
	free    *btree.BTreeG[freeBlock]
	headers map[Ptr]blockHeader
}

// NewFreeList creates a free-list arena of capacity bytes that starts as a
// single free block.
func NewFreeList(capacity int, policy Policy, opts ...Option) (*FreeList, error) {
	if policy != PolicyFirstFit && policy != PolicyBestFit {
		return nil, fmt.Errorf("arena: unknown placement %s", policy)
	}
	b, err := newBase("freelist", capacity, opts)
	if err != nil {
		return nil, err
	}
	f := &FreeList{
		b:       b,
		policy:  policy,
		free:    btree.NewG(32, lessByOffset),
		headers: make(map[Ptr]blockHeader),
	}
	f.free.ReplaceOrInsert(freeBlock{offset: 0, size: capacity})
	return f, nil
}

// Policy returns the placement policy.
func (f *FreeList) Policy() Policy {
	return f.policy
}

// Allocate places size bytes aligned to alignment (0 means DefaultAlignment;
// anything below MinFreeListAlignment panics).
func (f *FreeList) Allocate(size, alignment int) (Ptr, error) {
	start := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.b.checkRequest(size); err != nil {
		return NilPtr, err
	}
	alignment = f.b.normalizeAlignment(alignment, MinFreeListAlignment)

	blk, padding, ok := f.find(size, alignment)
	if !ok {
		return NilPtr, f.b.exhausted(size, alignment, f.b.capacity-f.b.used, start)
	}

	required := size + padding
	f.free.Delete(blk)
	if rest := blk.size - required; rest > 0 {
		f.free.ReplaceOrInsert(freeBlock{offset: blk.offset + required, size: rest})
	}

	payload := Ptr(blk.offset + padding)
	f.headers[payload] = blockHeader{blockSize: required, padding: padding}
	f.b.grow(required)
	f.b.allocated(size, start)
	return payload, nil
}

// find walks the free list in address order. First-fit returns the first
// block that fits; best-fit keeps the first block with the smallest leftover
// and stops early only on an exact fit.
func (f *FreeList) find(size, alignment int) (freeBlock, int, bool) {
	var (
		best     freeBlock
		bestPad  int
		bestLeft int
		found    bool
	)
	f.free.Ascend(func(blk freeBlock) bool {
		pad := align.PaddingWithHeader(blk.offset, alignment, HeaderSize)
		if pad > blk.size || size > blk.size-pad {
			return true
		}
		left := blk.size - pad - size
		if !found || left < bestLeft {
			best, bestPad, bestLeft, found = blk, pad, left, true
		}
		return f.policy == PolicyBestFit && left > 0
	})
	return best, bestPad, found
}

// Free returns the block behind p to the free list and merges it with
// adjacent free blocks. Freeing an unknown pointer panics.
func (f *FreeList) Free(p Ptr) {
	f.mu.Lock()
	defer f.mu.Unlock()

	hdr, ok := f.headers[p]
	if !ok {
		violation(f.b.kind, "Free", "%d is not a live allocation", p)
	}
	delete(f.headers, p)

	blk := freeBlock{offset: int(p) - hdr.padding, size: hdr.blockSize}
	f.insert(blk)
	f.b.shrink(hdr.blockSize)
}

// insert adds blk in address order, coalescing with its successor and its
// predecessor when they touch.
func (f *FreeList) insert(blk freeBlock) {
	var (
		next, prev       freeBlock
		hasNext, hasPrev bool
	)
	f.free.AscendGreaterOrEqual(blk, func(b freeBlock) bool {
		next, hasNext = b, true
		return false
	})
	f.free.DescendLessOrEqual(blk, func(b freeBlock) bool {
		prev, hasPrev = b, true
		return false
	})

	if hasNext && next.offset < blk.end() {
		violation(f.b.kind, "Free", "block [%d,%d) overlaps free block at %d", blk.offset, blk.end(), next.offset)
	}
	if hasPrev && prev.end() > blk.offset {
		violation(f.b.kind, "Free", "block [%d,%d) overlaps free block ending at %d", blk.offset, blk.end(), prev.end())
	}

	if hasNext && blk.end() == next.offset {
		f.free.Delete(next)
		blk.size += next.size
	}
	if hasPrev && prev.end() == blk.offset {
		f.free.Delete(prev)
		blk = freeBlock{offset: prev.offset, size: prev.size + blk.size}
	}
	f.free.ReplaceOrInsert(blk)
}

// Reset frees every allocation, leaving one free block spanning the arena.
func (f *FreeList) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	clear(f.headers)
	f.free.Clear(false)
	f.free.ReplaceOrInsert(freeBlock{offset: 0, size: f.b.capacity})
	f.b.resetCounters()
}

// Bytes returns the n bytes at p.
func (f *FreeList) Bytes(p Ptr, n int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.b.bytes(p, n)
}

// BlockSize returns the full block size (header, padding and payload) of a
// live allocation.
func (f *FreeList) BlockSize(p Ptr) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hdr, ok := f.headers[p]
	return hdr.blockSize, ok
}

// FreeBlocks returns the free blocks in address order as spans.
func (f *FreeList) FreeBlocks() []diag.Span {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freeSpans()
}

func (f *FreeList) freeSpans() []diag.Span {
	var out []diag.Span
	f.free.Ascend(func(b freeBlock) bool {
		out = append(out, diag.Span{Offset: int64(b.offset), Size: int64(b.size)})
		return true
	})
	return out
}

// Stats returns a snapshot of the arena counters.
func (f *FreeList) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.b.stats()
	s.Live = len(f.headers)
	s.FreeBlocks = f.free.Len()
	f.free.Ascend(func(b freeBlock) bool {
		s.LargestFree = max(s.LargestFree, b.size)
		return true
	})
	return s
}

// Layout reports free blocks and live blocks (headers and padding included).
func (f *FreeList) Layout() diag.Layout {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.layout()
}

func (f *FreeList) layout() diag.Layout {
	out := f.b.layout()
	out.Free = f.freeSpans()
	for p, hdr := range f.headers {
		out.Live = append(out.Live, diag.Span{Offset: int64(int(p) - hdr.padding), Size: int64(hdr.blockSize)})
	}
	slices.SortFunc(out.Live, func(a, b diag.Span) int { return cmp.Compare(a.Offset, b.Offset) })
	return out
}

// Validate checks the free-list invariants: free and live blocks tile the
// arena exactly, used matches the live blocks, and no two free blocks touch.
func (f *FreeList) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.layout().Check(); err != nil {
		return err
	}
	var prev *freeBlock
	var err error
	f.free.Ascend(func(b freeBlock) bool {
		if prev != nil && prev.end() == b.offset {
			err = fmt.Errorf("arena: freelist: free blocks at %d and %d are adjacent but not coalesced", prev.offset, b.offset)
			return false
		}
		prev = &b
		return true
	})
	return err
}

// Close releases the buffer and its memory budget.
func (f *FreeList) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.b.close(len(f.headers))
}
