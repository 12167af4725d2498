package arenakit

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/arenakit/arena"
	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/resource"
	"github.com/hupe1980/arenakit/slotheap"
)

// Provider is an explicit allocator context. It carries the logger, metrics,
// memory budget and epoch clock every allocator it creates shares, and tears
// all of them down on Close. Providers are independent: nothing is global.
type Provider struct {
	mu      sync.Mutex
	opts    options
	obs     *observer
	tracked []tracked
	closed  bool
}

// tracked is one allocator owned by the provider.
type tracked struct {
	kind    string
	live    func() int
	layout  func() diag.Layout
	reclaim func(epoch uint64) int // slot heaps and pools only
	close   func() error
}

// New creates a provider.
func New(optFns ...Option) *Provider {
	o := applyOptions(optFns)
	return &Provider{
		opts: o,
		obs:  &observer{next: o.metricsCollector, logger: o.logger},
	}
}

func (p *Provider) arenaOptions() []arena.Option {
	return []arena.Option{
		arena.WithLogger(p.opts.logger.Logger),
		arena.WithMetrics(p.obs),
		arena.WithController(p.opts.controller),
		arena.WithBacking(p.opts.backing),
		arena.WithWarnRate(p.opts.warnEvery, p.opts.warnBurst),
	}
}

func (p *Provider) slotOptions() []slotheap.Option {
	return []slotheap.Option{
		slotheap.WithLogger(p.opts.logger.Logger),
		slotheap.WithMetrics(p.obs),
		slotheap.WithController(p.opts.controller),
		slotheap.WithClock(p.opts.clock),
		slotheap.WithSlotBytes(p.opts.slotBytes),
		slotheap.WithMaxPages(p.opts.maxPages),
		slotheap.WithWarnRate(p.opts.warnEvery, p.opts.warnBurst),
	}
}

// track registers an allocator created by fn unless the provider is closed.
func track[T any](p *Provider, kind string, fn func() (T, error), describe func(T) tracked) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if p.closed {
		return zero, ErrClosed
	}
	a, err := fn()
	if err != nil {
		return zero, err
	}
	t := describe(a)
	t.kind = kind
	p.tracked = append(p.tracked, t)
	return a, nil
}

func describeArena[A interface {
	Stats() arena.Stats
	Layout() diag.Layout
	Close() error
}](a A) tracked {
	return tracked{
		live:   func() int { return a.Stats().Live },
		layout: func() diag.Layout { return a.Layout() },
		close:  func() error { return a.Close() },
	}
}

// NewLinear creates a linear arena of capacity bytes.
func (p *Provider) NewLinear(capacity int) (*arena.Linear, error) {
	return track(p, "linear", func() (*arena.Linear, error) {
		return arena.NewLinear(capacity, p.arenaOptions()...)
	}, describeArena[*arena.Linear])
}

// NewStack creates a stack arena of capacity bytes.
func (p *Provider) NewStack(capacity int) (*arena.Stack, error) {
	return track(p, "stack", func() (*arena.Stack, error) {
		return arena.NewStack(capacity, p.arenaOptions()...)
	}, describeArena[*arena.Stack])
}

// NewPool creates a pool arena of capacity bytes split into chunkSize chunks.
func (p *Provider) NewPool(capacity, chunkSize int) (*arena.Pool, error) {
	return track(p, "pool", func() (*arena.Pool, error) {
		return arena.NewPool(capacity, chunkSize, p.arenaOptions()...)
	}, describeArena[*arena.Pool])
}

// NewFreeList creates a free-list arena of capacity bytes.
func (p *Provider) NewFreeList(capacity int, policy arena.Policy) (*arena.FreeList, error) {
	return track(p, "freelist", func() (*arena.FreeList, error) {
		return arena.NewFreeList(capacity, policy, p.arenaOptions()...)
	}, describeArena[*arena.FreeList])
}

// NewSlotHeap creates a slot heap of capacity slots on the provider's clock.
func (p *Provider) NewSlotHeap(capacity uint32) (*slotheap.Heap, error) {
	return track(p, "slotheap", func() (*slotheap.Heap, error) {
		return slotheap.New(capacity, p.slotOptions()...)
	}, func(h *slotheap.Heap) tracked {
		return tracked{
			live:    func() int { return h.Stats().Live },
			layout:  h.Layout,
			reclaim: h.ReclaimUpTo,
			close:   h.Close,
		}
	})
}

// NewHeapPool creates a heap pool with pages of pageSize slots on the
// provider's clock.
func (p *Provider) NewHeapPool(pageSize uint32) (*slotheap.Pool, error) {
	return track(p, "slotpool", func() (*slotheap.Pool, error) {
		return slotheap.NewPool(pageSize, p.slotOptions()...)
	}, func(sp *slotheap.Pool) tracked {
		return tracked{
			live:    func() int { return sp.Stats().Live },
			layout:  sp.Layout,
			reclaim: sp.ReclaimUpTo,
			close:   sp.Close,
		}
	})
}

// Clock returns the epoch clock shared by the provider's slot heaps and pools.
func (p *Provider) Clock() *slotheap.Clock {
	return p.opts.clock
}

// Controller returns the memory budget charged by every allocator.
func (p *Provider) Controller() *resource.Controller {
	return p.opts.controller
}

// Logger returns the provider's logger.
func (p *Provider) Logger() *Logger {
	return p.opts.logger
}

// ReclaimUpTo reclaims every slot heap and heap pool of the provider up to
// epoch and returns the number of slots reclaimed.
func (p *Provider) ReclaimUpTo(ctx context.Context, epoch uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var slots int
	for _, t := range p.tracked {
		if t.reclaim != nil {
			slots += t.reclaim(epoch)
		}
	}
	p.opts.logger.WithEpoch(epoch).LogReclaim(ctx, slots)
	return slots
}

// CompleteEpoch advances the clock and reclaims everything released before
// the advance. It returns the completed epoch.
func (p *Provider) CompleteEpoch(ctx context.Context) uint64 {
	done := p.opts.clock.Advance() - 1
	p.ReclaimUpTo(ctx, done)
	return done
}

// Layouts returns the layout of every allocator, in creation order.
func (p *Provider) Layouts() []diag.Layout {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]diag.Layout, 0, len(p.tracked))
	for _, t := range p.tracked {
		out = append(out, t.layout())
	}
	return out
}

// Dump writes the layouts of every allocator to w.
func (p *Provider) Dump(w io.Writer, opts ...diag.WriteOption) error {
	return diag.Write(w, p.Layouts(), opts...)
}

// Close closes every allocator created by the provider, logging those that
// still hold allocations. Further New* calls return ErrClosed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	ctx := context.Background()
	var errs []error
	for _, t := range p.tracked {
		p.opts.logger.WithKind(t.kind).LogTeardown(ctx, t.live())
		if err := t.close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.tracked = nil
	return errors.Join(errs...)
}

// observer forwards allocator events to the configured collector and logs
// them through the provider's Logger.
type observer struct {
	next   MetricsCollector
	logger *Logger
	pages  atomic.Int64
}

func (o *observer) RecordAllocate(kind string, units int, d time.Duration, err error) {
	o.next.RecordAllocate(kind, units, d, err)
	o.logger.LogAllocate(context.Background(), kind, units, err)
}

func (o *observer) RecordFree(kind string, units int) {
	o.next.RecordFree(kind, units)
}

func (o *observer) RecordReclaim(entries, units int) {
	o.next.RecordReclaim(entries, units)
}

func (o *observer) RecordGrow(units int) {
	o.next.RecordGrow(units)
	o.logger.LogGrow(context.Background(), int(o.pages.Add(1)), units)
}
