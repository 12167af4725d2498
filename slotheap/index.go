package slotheap

import (
	"fmt"

	"github.com/google/btree"
)

// Range is a run of slots.
type Range struct {
	Offset uint32
	Size   uint32
}

// End returns the first slot past the range.
func (r Range) End() uint32 { return r.Offset + r.Size }

func lessByOffset(a, b Range) bool { return a.Offset < b.Offset }

func lessBySize(a, b Range) bool {
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return a.Offset < b.Offset
}

// freeIndex holds every free range twice: ordered by offset for neighbour
// lookup and by (size, offset) for best-fit. Both trees always hold the same
// set of ranges.
type freeIndex struct {
	byOffset *btree.BTreeG[Range]
	bySize   *btree.BTreeG[Range]
	free     uint32
}

func newFreeIndex() *freeIndex {
	return &freeIndex{
		byOffset: btree.NewG(16, lessByOffset),
		bySize:   btree.NewG(16, lessBySize),
	}
}

func (x *freeIndex) insert(r Range) {
	x.byOffset.ReplaceOrInsert(r)
	x.bySize.ReplaceOrInsert(r)
	x.free += r.Size
}

func (x *freeIndex) remove(r Range) {
	x.byOffset.Delete(r)
	x.bySize.Delete(r)
	x.free -= r.Size
}

func (x *freeIndex) len() int {
	return x.byOffset.Len()
}

// bestFit returns the smallest free range of at least n slots, the lowest
// offset among equal sizes.
func (x *freeIndex) bestFit(n uint32) (Range, bool) {
	var (
		out   Range
		found bool
	)
	x.bySize.AscendGreaterOrEqual(Range{Size: n}, func(r Range) bool {
		out, found = r, true
		return false
	})
	return out, found
}

// take carves n slots from the front of r, re-inserting any remainder.
func (x *freeIndex) take(r Range, n uint32) Range {
	x.remove(r)
	if r.Size > n {
		x.insert(Range{Offset: r.Offset + n, Size: r.Size - n})
	}
	return Range{Offset: r.Offset, Size: n}
}

// neighbours returns the free ranges directly before and after offset.
func (x *freeIndex) neighbours(offset uint32) (prev, next Range, hasPrev, hasNext bool) {
	x.byOffset.DescendLessOrEqual(Range{Offset: offset}, func(r Range) bool {
		prev, hasPrev = r, true
		return false
	})
	x.byOffset.AscendGreaterOrEqual(Range{Offset: offset}, func(r Range) bool {
		next, hasNext = r, true
		return false
	})
	return prev, next, hasPrev, hasNext
}

// merge returns r to the index, folding it into contiguous neighbours. An
// overlap with an existing free range is reported as an error.
func (x *freeIndex) merge(r Range) error {
	prev, next, hasPrev, hasNext := x.neighbours(r.Offset)
	if hasPrev && prev.End() > r.Offset {
		return fmt.Errorf("range [%d,%d) overlaps free range [%d,%d)", r.Offset, r.End(), prev.Offset, prev.End())
	}
	if hasNext && next.Offset < r.End() {
		return fmt.Errorf("range [%d,%d) overlaps free range [%d,%d)", r.Offset, r.End(), next.Offset, next.End())
	}

	if hasPrev && prev.End() == r.Offset {
		x.remove(prev)
		r = Range{Offset: prev.Offset, Size: prev.Size + r.Size}
	}
	if hasNext && r.End() == next.Offset {
		x.remove(next)
		r.Size += next.Size
	}
	x.insert(r)
	return nil
}

func (x *freeIndex) largest() uint32 {
	var out uint32
	x.bySize.Descend(func(r Range) bool {
		out = r.Size
		return false
	})
	return out
}

func (x *freeIndex) ascend(fn func(Range) bool) {
	x.byOffset.Ascend(fn)
}

// check verifies that both trees agree, the free counter matches and no two
// free ranges touch.
func (x *freeIndex) check() error {
	if x.byOffset.Len() != x.bySize.Len() {
		return fmt.Errorf("index sizes differ: %d by offset, %d by size", x.byOffset.Len(), x.bySize.Len())
	}
	var (
		sum     uint32
		prev    Range
		hasPrev bool
		err     error
	)
	x.byOffset.Ascend(func(r Range) bool {
		if _, ok := x.bySize.Get(r); !ok {
			err = fmt.Errorf("range [%d,%d) missing from size index", r.Offset, r.End())
			return false
		}
		if hasPrev && prev.End() >= r.Offset {
			err = fmt.Errorf("free ranges [%d,%d) and [%d,%d) touch or overlap", prev.Offset, prev.End(), r.Offset, r.End())
			return false
		}
		sum += r.Size
		prev, hasPrev = r, true
		return true
	})
	if err != nil {
		return err
	}
	if sum != x.free {
		return fmt.Errorf("free counter %d, ranges hold %d", x.free, sum)
	}
	return nil
}
