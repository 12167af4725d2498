package diag

import (
	"fmt"
	"slices"
)

// Span is a contiguous run of units (bytes or slots).
type Span struct {
	Offset int64 `json:"offset"`
	Size   int64 `json:"size"`
}

// End returns the first unit past the span.
func (s Span) End() int64 { return s.Offset + s.Size }

// StaleSpan is a released span waiting for its epoch to complete.
type StaleSpan struct {
	Span
	Epoch uint64 `json:"epoch"`
}

// Layout is a point-in-time picture of one allocator.
type Layout struct {
	Kind     string      `json:"kind"`
	Capacity int64       `json:"capacity"`
	Used     int64       `json:"used"`
	Peak     int64       `json:"peak,omitempty"`
	Free     []Span      `json:"free,omitempty"`
	Live     []Span      `json:"live,omitempty"`
	Stale    []StaleSpan `json:"stale,omitempty"`

	// Completed is the highest epoch acknowledged by a reclaim call (slot heaps only).
	Completed uint64 `json:"completed,omitempty"`

	// Pages holds per-page layouts for heap pools.
	Pages []Layout `json:"pages,omitempty"`
}

// FreeUnits returns the sum of free span sizes.
func (l Layout) FreeUnits() int64 {
	var n int64
	for _, s := range l.Free {
		n += s.Size
	}
	return n
}

// LargestFree returns the size of the largest free span.
func (l Layout) LargestFree() int64 {
	var m int64
	for _, s := range l.Free {
		m = max(m, s.Size)
	}
	return m
}

// Fragmentation returns 1 - largest/total free, in [0, 1). A single free span
// (or none) is 0.
func (l Layout) Fragmentation() float64 {
	total := l.FreeUnits()
	if total == 0 {
		return 0
	}
	return 1 - float64(l.LargestFree())/float64(total)
}

// Check verifies that free, live and stale spans are pairwise disjoint, tile
// [0, Capacity) without gaps, and that live plus stale units equal Used.
// A layout with pages carries no spans of its own: its totals must equal the
// sum over its pages, and each page is checked recursively.
func (l Layout) Check() error {
	if len(l.Pages) > 0 {
		return l.checkPages()
	}

	spans := make([]Span, 0, len(l.Free)+len(l.Live)+len(l.Stale))
	spans = append(spans, l.Free...)
	spans = append(spans, l.Live...)
	var held int64
	for _, s := range l.Live {
		held += s.Size
	}
	for _, s := range l.Stale {
		spans = append(spans, s.Span)
		held += s.Size
	}
	slices.SortFunc(spans, func(a, b Span) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})

	var next int64
	for _, s := range spans {
		if s.Size <= 0 {
			return fmt.Errorf("diag: %s: empty span at %d", l.Kind, s.Offset)
		}
		if s.Offset < next {
			return fmt.Errorf("diag: %s: span [%d,%d) overlaps previous span ending at %d", l.Kind, s.Offset, s.End(), next)
		}
		if s.Offset > next {
			return fmt.Errorf("diag: %s: gap [%d,%d)", l.Kind, next, s.Offset)
		}
		next = s.End()
	}
	if next != l.Capacity {
		return fmt.Errorf("diag: %s: spans cover [0,%d), capacity is %d", l.Kind, next, l.Capacity)
	}
	if held != l.Used {
		return fmt.Errorf("diag: %s: live+stale units %d, used %d", l.Kind, held, l.Used)
	}
	return nil
}

func (l Layout) checkPages() error {
	var capacity, used int64
	for i, p := range l.Pages {
		if err := p.Check(); err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		capacity += p.Capacity
		used += p.Used
	}
	if capacity != l.Capacity || used != l.Used {
		return fmt.Errorf("diag: %s: pages hold capacity %d used %d, totals say %d/%d",
			l.Kind, capacity, used, l.Capacity, l.Used)
	}
	return nil
}
