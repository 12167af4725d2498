package arenakit_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/arenakit"
	"github.com/hupe1980/arenakit/arena"
	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/resource"
	"github.com/hupe1980/arenakit/slotheap"
)

func TestProvider_CreatesAndClosesEverything(t *testing.T) {
	var buf bytes.Buffer
	logger := arenakit.NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := arenakit.New(arenakit.WithLogger(logger), arenakit.WithMemoryLimit(1<<20))

	l, err := p.NewLinear(1024)
	require.NoError(t, err)
	s, err := p.NewStack(1024)
	require.NoError(t, err)
	pool, err := p.NewPool(1024, 64)
	require.NoError(t, err)
	fl, err := p.NewFreeList(1024, arena.PolicyFirstFit)
	require.NoError(t, err)
	heap, err := p.NewSlotHeap(64)
	require.NoError(t, err)
	hp, err := p.NewHeapPool(32)
	require.NoError(t, err)

	assert.Equal(t, int64(4*1024+64*slotheap.DefaultSlotBytes), p.Controller().MemoryUsage())

	_, err = l.Allocate(10, 0)
	require.NoError(t, err)
	_, err = s.Allocate(10, 0)
	require.NoError(t, err)
	_, err = pool.Allocate(10, 0)
	require.NoError(t, err)
	_, err = fl.Allocate(10, 0)
	require.NoError(t, err)
	_, err = heap.Allocate(3)
	require.NoError(t, err)
	_, err = hp.Allocate(3)
	require.NoError(t, err)
	assert.Equal(t, int64(4*1024+96*slotheap.DefaultSlotBytes), p.Controller().MemoryUsage())

	layouts := p.Layouts()
	require.Len(t, layouts, 6)
	for _, l := range layouts {
		require.NoError(t, l.Check(), l.Kind)
	}

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Zero(t, p.Controller().MemoryUsage())
	assert.Contains(t, buf.String(), "allocator closed with live allocations")
	assert.Contains(t, buf.String(), "kind=freelist")
	assert.Contains(t, buf.String(), "heap pool grew")

	_, err = p.NewLinear(16)
	assert.ErrorIs(t, err, arenakit.ErrClosed)
	_, err = fl.Allocate(8, 0)
	assert.ErrorIs(t, err, arena.ErrClosed)
}

func TestProvider_MemoryLimit(t *testing.T) {
	p := arenakit.New(arenakit.WithMemoryLimit(2048), arenakit.WithSlotBytes(16))
	defer p.Close()

	_, err := p.NewFreeList(1024, arena.PolicyBestFit)
	require.NoError(t, err)
	_, err = p.NewSlotHeap(64)
	require.NoError(t, err)

	_, err = p.NewStack(1024)
	assert.ErrorIs(t, err, arenakit.ErrMemoryLimitExceeded)
	assert.True(t, arenakit.IsOutOfCapacity(err))
	assert.Len(t, p.Layouts(), 2, "failed allocators are not tracked")
}

func TestProvider_SharedController(t *testing.T) {
	ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 1024})
	a := arenakit.New(arenakit.WithController(ctrl))
	b := arenakit.New(arenakit.WithController(ctrl))
	defer a.Close()
	defer b.Close()

	_, err := a.NewLinear(768)
	require.NoError(t, err)
	_, err = b.NewLinear(512)
	assert.ErrorIs(t, err, arenakit.ErrMemoryLimitExceeded)
	assert.Same(t, a.Controller(), b.Controller())
}

func TestProvider_EpochReclaim(t *testing.T) {
	ctx := context.Background()
	p := arenakit.New()
	defer p.Close()

	heap, err := p.NewSlotHeap(8)
	require.NoError(t, err)
	pool, err := p.NewHeapPool(8)
	require.NoError(t, err)
	assert.Same(t, p.Clock(), heap.Clock())
	assert.Same(t, p.Clock(), pool.Clock())

	h1, err := heap.Allocate(8)
	require.NoError(t, err)
	h2, err := pool.Allocate(8)
	require.NoError(t, err)

	h1.Release()
	h2.Release()
	_, err = heap.Allocate(1)
	require.ErrorIs(t, err, arenakit.ErrOutOfSlots)

	assert.Equal(t, uint64(0), p.CompleteEpoch(ctx))
	assert.Equal(t, uint64(1), p.Clock().Current())
	assert.Equal(t, uint32(8), heap.Free())
	assert.Equal(t, []uint32{0}, pool.FreePages())

	h3, err := heap.Allocate(2)
	require.NoError(t, err)
	h3.Release() // tagged with epoch 1
	assert.Zero(t, p.ReclaimUpTo(ctx, 0))
	assert.Equal(t, 2, p.ReclaimUpTo(ctx, 1))
}

func TestProvider_LogFields(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	logger := arenakit.NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := arenakit.New(arenakit.WithLogger(logger))

	_, err := p.NewLinear(64)
	require.NoError(t, err)
	heap, err := p.NewSlotHeap(8)
	require.NoError(t, err)
	_, err = heap.Allocate(2)
	require.NoError(t, err)

	p.ReclaimUpTo(ctx, 5)
	require.NoError(t, p.Close())

	lineWith := func(msg string) string {
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, "msg=\""+msg+"\"") {
				return line
			}
		}
		return ""
	}
	assert.Contains(t, lineWith("reclaim completed"), "epoch=5")
	assert.Contains(t, lineWith("allocator closed"), "kind=linear")
	assert.Contains(t, lineWith("allocator closed with live allocations"), "kind=slotheap")
	assert.Contains(t, lineWith("allocator closed with live allocations"), "live=1")
}

func TestProvider_MetricsCollector(t *testing.T) {
	metrics := &arenakit.BasicMetricsCollector{}
	p := arenakit.New(arenakit.WithMetricsCollector(metrics))
	defer p.Close()

	pool, err := p.NewPool(64, 16)
	require.NoError(t, err)
	for range 4 {
		_, err := pool.Allocate(16, 0)
		require.NoError(t, err)
	}
	_, err = pool.Allocate(16, 0)
	require.ErrorIs(t, err, arenakit.ErrOutOfMemory)
	pool.Reset()

	hp, err := p.NewHeapPool(16)
	require.NoError(t, err)
	h, err := hp.Allocate(20)
	require.NoError(t, err)
	h.Release()
	p.CompleteEpoch(context.Background())

	stats := metrics.GetStats()
	assert.Equal(t, int64(6), stats.AllocCount)
	assert.Equal(t, int64(1), stats.AllocErrors)
	assert.Equal(t, int64(64+20), stats.AllocUnits)
	assert.Equal(t, int64(64+20), stats.FreedUnits)
	assert.Equal(t, int64(1), stats.ReclaimPasses)
	assert.Equal(t, int64(1), stats.ReclaimEntries)
	assert.Equal(t, int64(20), stats.ReclaimUnits)
	assert.Equal(t, int64(1), stats.GrowCount)
	assert.Equal(t, int64(20), stats.GrowUnits)
}

func TestProvider_Dump(t *testing.T) {
	p := arenakit.New()
	defer p.Close()

	fl, err := p.NewFreeList(4096, arena.PolicyBestFit)
	require.NoError(t, err)
	for _, n := range []int{100, 200, 300} {
		_, err := fl.Allocate(n, 8)
		require.NoError(t, err)
	}
	hp, err := p.NewHeapPool(64)
	require.NoError(t, err)
	h, err := hp.Allocate(10)
	require.NoError(t, err)
	h.ReleaseAt(7)

	var buf bytes.Buffer
	require.NoError(t, p.Dump(&buf, diag.WithCompression(diag.CompressionZSTD)))

	layouts, err := diag.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, p.Layouts(), layouts)
	require.Len(t, layouts, 2)
	require.Len(t, layouts[1].Pages, 1)
	assert.Equal(t, uint64(7), layouts[1].Pages[0].Stale[0].Epoch)
}

func TestProvider_ConcurrentFrames(t *testing.T) {
	ctx := context.Background()
	p := arenakit.New()
	defer p.Close()

	pool, err := p.NewHeapPool(128)
	require.NoError(t, err)

	for frame := 0; frame < 20; frame++ {
		var g errgroup.Group
		for w := range 4 {
			g.Go(func() error {
				for i := range 16 {
					h, err := pool.Allocate(uint32(1 + (w+i)%5)) //nolint:gosec // small
					if err != nil {
						return err
					}
					h.Release()
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		p.CompleteEpoch(ctx)
	}

	s := pool.Stats()
	assert.Zero(t, s.Used)
	require.NoError(t, pool.Validate())
}

func TestIsProtocolViolation(t *testing.T) {
	l, err := arena.NewLinear(64)
	require.NoError(t, err)
	defer l.Close()

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		l.Free(0)
	}()
	assert.True(t, arenakit.IsProtocolViolation(recovered))
	assert.False(t, arenakit.IsProtocolViolation("boom"))
	assert.False(t, arenakit.IsProtocolViolation(arena.ErrOutOfMemory))
}
