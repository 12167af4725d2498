package slotheap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/internal/align"
	"github.com/hupe1980/arenakit/internal/telemetry"
)

// DefaultPageSize is the page size used when NewPool is given 0.
const DefaultPageSize = 1024

// Pool owns a growing list of heaps ("pages") and routes each allocation to a
// page with free slots, adding a page when none can serve it.
type Pool struct {
	mu       sync.Mutex
	pageSize uint32
	pages    []*Heap
	free     *roaring.Bitmap // pages with at least one free slot
	closed   bool

	opts    options
	logger  *slog.Logger
	metrics telemetry.Recorder
	warn    *telemetry.WarnGate
}

// NewPool creates an empty pool. Pages hold pageSize slots unless a larger
// request forces a bigger page.
func NewPool(pageSize uint32, opts ...Option) (*Pool, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	o := applyOptions(opts)
	if o.maxPages < 0 {
		return nil, fmt.Errorf("slotheap: negative page limit %d", o.maxPages)
	}
	logger := o.logger.With("pool", kind)
	return &Pool{
		pageSize: pageSize,
		free:     roaring.New(),
		opts:     o,
		logger:   logger,
		metrics:  o.metrics,
		warn:     telemetry.NewWarnGate(logger, o.warnEvery, o.warnBurst),
	}, nil
}

// Allocate reserves n contiguous slots on some page. Only pages in the free
// set are tried; a page that becomes full leaves the set. When no page fits,
// a new page of max(pageSize, n) slots is added and serves the request.
func (p *Pool) Allocate(n uint32) (*Handle, error) {
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if n == 0 {
		return nil, ErrInvalidSize
	}

	for _, idx := range p.free.ToArray() {
		handle, left, ok := p.pages[idx].tryAllocate(n, start)
		if !ok {
			continue
		}
		if left == 0 {
			p.free.Remove(idx)
		}
		return handle, nil
	}

	page, err := p.grow(n)
	if err != nil {
		p.metrics.RecordAllocate(kind, int(n), time.Since(start), err)
		p.warn.Warn(context.Background(), "slot pool cannot grow", "count", n, "pages", len(p.pages), "error", err)
		return nil, err
	}
	// A fresh page of at least n slots always fits.
	handle, left, _ := page.tryAllocate(n, start)
	if left > 0 {
		p.free.Add(page.id)
	}
	return handle, nil
}

// grow appends a page big enough for n slots.
func (p *Pool) grow(n uint32) (*Heap, error) {
	if p.opts.maxPages > 0 && len(p.pages) >= p.opts.maxPages {
		return nil, fmt.Errorf("%w: %d pages", ErrPoolExhausted, p.opts.maxPages)
	}
	id, err := pageID(len(p.pages))
	if err != nil {
		return nil, err
	}
	size := max(p.pageSize, n)
	page, err := newHeap(size, len(p.pages), p.opts)
	if err != nil {
		return nil, err
	}
	page.id = id
	p.pages = append(p.pages, page)
	p.metrics.RecordGrow(int(size))
	p.logger.Debug("page added", "page", page.page, "slots", size, "pages", len(p.pages))
	return page, nil
}

// pageID converts a page index to its free set key. The bitmap is keyed by
// uint32, which bounds the number of pages.
func pageID(i int) (uint32, error) {
	id, err := align.IntToUint32(i)
	if err != nil {
		return 0, fmt.Errorf("%w: page index: %w", ErrPoolExhausted, err)
	}
	return id, nil
}

// ReclaimUpTo reclaims every page up to epoch and returns pages that regained
// free slots to the free set. It returns the number of slots reclaimed.
func (p *Pool) ReclaimUpTo(epoch uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var units int
	for _, page := range p.pages {
		units += page.ReclaimUpTo(epoch)
		if page.Free() > 0 {
			p.free.Add(page.id)
		}
	}
	return units
}

// Clock returns the epoch clock shared by every page.
func (p *Pool) Clock() *Clock {
	return p.opts.clock
}

// Pages returns the number of pages.
func (p *Pool) Pages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

// FreePages returns the indexes of pages in the free set.
func (p *Pool) FreePages() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.ToArray()
}

// Stats sums the page statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out Stats
	for _, page := range p.pages {
		s := page.Stats()
		out.Capacity += s.Capacity
		out.Free += s.Free
		out.Pending += s.Pending
		out.Live += s.Live
		out.Used += s.Used
		out.Peak += s.Peak
		out.FreeRanges += s.FreeRanges
		out.LargestFree = max(out.LargestFree, s.LargestFree)
		out.TotalAllocs += s.TotalAllocs
		out.Completed = max(out.Completed, s.Completed)
	}
	out.Pages = len(p.pages)
	return out
}

// Layout returns one layout per page under a pool-level total.
func (p *Pool) Layout() diag.Layout {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := diag.Layout{Kind: "slotpool"}
	for _, page := range p.pages {
		l := page.Layout()
		out.Capacity += l.Capacity
		out.Used += l.Used
		out.Completed = max(out.Completed, l.Completed)
		out.Pages = append(out.Pages, l)
	}
	return out
}

// Validate checks every page and that the free set holds exactly the pages
// with free slots.
func (p *Pool) Validate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, page := range p.pages {
		if err := page.Validate(); err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		inSet := p.free.Contains(page.id)
		if hasFree := page.Free() > 0; inSet != hasFree {
			return fmt.Errorf("slotheap: page %d has %d free slots, in free set: %t", i, page.Free(), inSet)
		}
	}
	if n := p.free.GetCardinality(); n > uint64(len(p.pages)) {
		return fmt.Errorf("slotheap: free set holds %d pages, pool has %d", n, len(p.pages))
	}
	return nil
}

// Close closes every page.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for _, page := range p.pages {
		errs = append(errs, page.Close())
	}
	p.free.Clear()
	p.logger.Debug("pool closed", "pages", len(p.pages))
	return errors.Join(errs...)
}
