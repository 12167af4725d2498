package arena

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arenakit/diag"
	"github.com/hupe1980/arenakit/internal/align"
	"github.com/hupe1980/arenakit/testutil"
)

var policies = []Policy{PolicyFirstFit, PolicyBestFit}

func TestFreeList_Scenario(t *testing.T) {
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			f, err := NewFreeList(1024, policy)
			require.NoError(t, err)
			defer f.Close()

			a, err := f.Allocate(100, 8)
			require.NoError(t, err)
			b, err := f.Allocate(200, 8)
			require.NoError(t, err)
			c, err := f.Allocate(50, 8)
			require.NoError(t, err)

			bSize, ok := f.BlockSize(b)
			require.True(t, ok)
			bStart := int64(int(b) - (bSize - 200))

			f.Free(b)
			require.NoError(t, f.Validate())

			d, err := f.Allocate(150, 8)
			require.NoError(t, err)
			dSize, _ := f.BlockSize(d)
			assert.Equal(t, bSize-50, dSize)
			assert.Equal(t, int(b), int(d), "D reuses B's hole")
			assert.Contains(t, f.FreeBlocks(), diag.Span{Offset: bStart + int64(dSize), Size: 50})
			require.NoError(t, f.Validate())

			for _, p := range []Ptr{a, c, d} {
				f.Free(p)
				require.NoError(t, f.Validate())
			}
			assert.Equal(t, []diag.Span{{Offset: 0, Size: 1024}}, f.FreeBlocks())
			assert.Zero(t, f.Stats().Used)
		})
	}
}

func TestFreeList_HeaderAndAlignment(t *testing.T) {
	f, err := NewFreeList(4096, PolicyFirstFit)
	require.NoError(t, err)
	defer f.Close()

	for _, alignment := range []int{8, 16, 32, 64} {
		p, err := f.Allocate(10, alignment)
		require.NoError(t, err)
		assert.Zero(t, int(p)%alignment, "alignment %d", alignment)

		size, ok := f.BlockSize(p)
		require.True(t, ok)
		assert.GreaterOrEqual(t, size, 10+HeaderSize)
	}

	p, err := f.Allocate(1, 0)
	require.NoError(t, err)
	assert.Zero(t, int(p)%DefaultAlignment)

	requireViolation(t, func() { _, _ = f.Allocate(8, 4) })
	requireViolation(t, func() { _, _ = f.Allocate(8, 24) })
}

func TestFreeList_FirstFitVersusBestFit(t *testing.T) {
	// Free holes of 200 (low address) and 100 (high address) bytes of block.
	setup := func(t *testing.T, policy Policy) (*FreeList, Ptr, Ptr) {
		f, err := NewFreeList(2048, policy)
		require.NoError(t, err)

		big, err := f.Allocate(200-HeaderSize, 8)
		require.NoError(t, err)
		_, err = f.Allocate(64, 8)
		require.NoError(t, err)
		small, err := f.Allocate(100-HeaderSize, 8)
		require.NoError(t, err)
		_, err = f.Allocate(64, 8)
		require.NoError(t, err)

		f.Free(big)
		f.Free(small)
		return f, big, small
	}

	t.Run("first-fit takes the lowest hole", func(t *testing.T) {
		f, big, _ := setup(t, PolicyFirstFit)
		defer f.Close()

		p, err := f.Allocate(60, 8)
		require.NoError(t, err)
		assert.Equal(t, big, p)
	})

	t.Run("best-fit takes the tightest hole", func(t *testing.T) {
		f, _, small := setup(t, PolicyBestFit)
		defer f.Close()

		p, err := f.Allocate(60, 8)
		require.NoError(t, err)
		assert.Equal(t, small, p)
	})

	t.Run("best-fit ties go to the lowest address", func(t *testing.T) {
		f, err := NewFreeList(1024, PolicyBestFit)
		require.NoError(t, err)
		defer f.Close()

		var holes []Ptr
		for i := 0; i < 3; i++ {
			h, err := f.Allocate(48, 8)
			require.NoError(t, err)
			holes = append(holes, h)
			_, err = f.Allocate(16, 8)
			require.NoError(t, err)
		}
		f.Free(holes[2])
		f.Free(holes[0])

		p, err := f.Allocate(48, 8)
		require.NoError(t, err)
		assert.Equal(t, holes[0], p)
	})
}

func TestFreeList_OutOfMemory(t *testing.T) {
	f, err := NewFreeList(256, PolicyBestFit)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Allocate(256, 8)
	assert.ErrorIs(t, err, ErrOutOfMemory, "the header does not fit")

	p, err := f.Allocate(256-HeaderSize, 8)
	require.NoError(t, err)
	assert.Empty(t, f.FreeBlocks())

	_, err = f.Allocate(1, 8)
	var ae *AllocError
	require.ErrorAs(t, err, &ae)
	assert.Zero(t, ae.Free)

	f.Free(p)
	require.NoError(t, f.Validate())
}

func TestFreeList_FreeViolations(t *testing.T) {
	f, err := NewFreeList(512, PolicyFirstFit)
	require.NoError(t, err)
	defer f.Close()

	p, err := f.Allocate(32, 8)
	require.NoError(t, err)

	requireViolation(t, func() { f.Free(p + 8) })
	f.Free(p)
	requireViolation(t, func() { f.Free(p) })
	require.NoError(t, f.Validate())
}

func TestFreeList_Reset(t *testing.T) {
	f, err := NewFreeList(512, PolicyFirstFit)
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < 5; i++ {
		_, err := f.Allocate(40, 8)
		require.NoError(t, err)
	}
	f.Reset()
	assert.Equal(t, []diag.Span{{Offset: 0, Size: 512}}, f.FreeBlocks())
	s := f.Stats()
	assert.Zero(t, s.Live)
	assert.Zero(t, s.Peak)
	require.NoError(t, f.Validate())
}

// replay runs a workload and checks conservation and disjointness after every step.
func replay(t *testing.T, f *FreeList, ops []testutil.Op) []Ptr {
	t.Helper()

	var live []Ptr
	for i, op := range ops {
		switch op.Kind {
		case testutil.OpAlloc:
			p, err := f.Allocate(op.Size, op.Alignment)
			if err != nil {
				require.ErrorIs(t, err, ErrOutOfMemory, "step %d", i)
				continue
			}
			live = append(live, p)
		case testutil.OpFree:
			if len(live) == 0 {
				continue
			}
			k := op.Pick % len(live)
			f.Free(live[k])
			live = append(live[:k], live[k+1:]...)
		}
		require.NoError(t, f.Validate(), "step %d", i)
	}
	return live
}

func TestFreeList_Properties(t *testing.T) {
	for _, policy := range policies {
		for seed := int64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("%s/seed=%d", policy, seed), func(t *testing.T) {
				f, err := NewFreeList(16<<10, policy)
				require.NoError(t, err)
				defer f.Close()

				rng := testutil.NewRNG(seed)
				ops := rng.Workload(testutil.WorkloadConfig{
					Ops:        600,
					MaxSize:    512,
					Alignments: []int{0, 8, 16, 64},
					Skew:       1.1,
				})
				live := replay(t, f, ops)

				// Coalescing completeness: free the rest in random order.
				for _, k := range rng.Perm(len(live)) {
					f.Free(live[k])
				}
				require.NoError(t, f.Validate())
				assert.Equal(t, []diag.Span{{Offset: 0, Size: 16 << 10}}, f.FreeBlocks())
				assert.Zero(t, f.Stats().Used)
			})
		}
	}
}

func TestFreeList_BestFitOptimality(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		f, err := NewFreeList(8<<10, PolicyBestFit)
		require.NoError(t, err)

		rng := testutil.NewRNG(seed)
		replay(t, f, rng.Workload(testutil.WorkloadConfig{Ops: 300, MaxSize: 256, FreeRatio: 0.5}))

		for i := 0; i < 20; i++ {
			size := rng.Intn(200) + 1
			before := f.FreeBlocks()

			// Expected: minimal leftover, first in address order on ties.
			wantOffset, wantLeft := int64(-1), int64(-1)
			for _, b := range before {
				pad := int64(align.PaddingWithHeader(int(b.Offset), DefaultAlignment, HeaderSize))
				left := b.Size - int64(size) - pad
				if left >= 0 && (wantLeft < 0 || left < wantLeft) {
					wantOffset, wantLeft = b.Offset, left
				}
			}

			p, err := f.Allocate(size, DefaultAlignment)
			if wantOffset < 0 {
				require.ErrorIs(t, err, ErrOutOfMemory)
				continue
			}
			require.NoError(t, err)

			blockSize, _ := f.BlockSize(p)
			gotOffset := int64(int(p) - (blockSize - size))
			assert.Equal(t, wantOffset, gotOffset, "seed %d size %d", seed, size)
			f.Free(p)
		}
		require.NoError(t, f.Close())
	}
}

func BenchmarkFreeList_Allocate(b *testing.B) {
	for _, policy := range policies {
		b.Run(policy.String(), func(b *testing.B) {
			f, err := NewFreeList(1<<20, policy)
			require.NoError(b, err)
			defer f.Close()

			ptrs := make([]Ptr, 0, 1024)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if len(ptrs) == cap(ptrs) {
					for j := len(ptrs) - 1; j >= 0; j -= 2 {
						f.Free(ptrs[j])
						ptrs = append(ptrs[:j], ptrs[j+1:]...)
					}
				}
				p, err := f.Allocate(16+i%256, 8)
				if err != nil {
					b.Fatal(err)
				}
				ptrs = append(ptrs, p)
			}
		})
	}
}

func TestFreeList_HugeSizeDoesNotWrap(t *testing.T) {
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			f, err := NewFreeList(256, policy)
			require.NoError(t, err)
			defer f.Close()

			// Leave a one-byte tail block: a hole smaller than any header.
			_, err = f.Allocate(256-HeaderSize-1, 8)
			require.NoError(t, err)

			for _, size := range []int{math.MaxInt, math.MaxInt - 8} {
				_, err := f.Allocate(size, 64)
				assert.ErrorIs(t, err, ErrOutOfMemory, "size %d", size)
			}
			assert.Equal(t, 1, f.Stats().LargestFree)
			require.NoError(t, f.Validate())
		})
	}
}
