package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Validation(t *testing.T) {
	_, err := NewPool(1024, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
	_, err = NewPool(1024, 4)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
	_, err = NewPool(16, 32)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	p, err := NewPool(100, 32)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 96, p.Stats().Capacity, "capacity rounds down to whole chunks")
	assert.Equal(t, 3, p.Available())
}

func TestPool_AllocateFree(t *testing.T) {
	p, err := NewPool(4*64, 64)
	require.NoError(t, err)
	defer p.Close()

	var ptrs []Ptr
	for i := 0; i < 4; i++ {
		ptr, err := p.Allocate(64, 0)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	assert.Equal(t, []Ptr{0, 64, 128, 192}, ptrs, "chunks come out in address order")

	_, err = p.Allocate(1, 0)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	p.Free(ptrs[2])
	again, err := p.Allocate(10, 16)
	require.NoError(t, err)
	assert.Equal(t, ptrs[2], again, "the most recently freed chunk is reused first")

	s := p.Stats()
	assert.Equal(t, 4, s.Live)
	assert.Equal(t, 256, s.Used)
	require.NoError(t, p.Layout().Check())

	for _, ptr := range ptrs {
		p.Free(ptr)
	}
	s = p.Stats()
	assert.Zero(t, s.Used)
	assert.Equal(t, 256, s.Peak)
	assert.Equal(t, 4, s.FreeBlocks)
}

func TestPool_ProtocolViolations(t *testing.T) {
	p, err := NewPool(256, 24)
	require.NoError(t, err)
	defer p.Close()

	t.Run("oversize", func(t *testing.T) {
		requireViolation(t, func() { _, _ = p.Allocate(25, 0) })
	})

	t.Run("alignment", func(t *testing.T) {
		requireViolation(t, func() { _, _ = p.Allocate(8, 16) })
		ptr, err := p.Allocate(8, 8)
		require.NoError(t, err)
		p.Free(ptr)
	})

	t.Run("double free", func(t *testing.T) {
		ptr, err := p.Allocate(8, 0)
		require.NoError(t, err)
		p.Free(ptr)
		requireViolation(t, func() { p.Free(ptr) })
	})

	t.Run("interior pointer", func(t *testing.T) {
		ptr, err := p.Allocate(8, 0)
		require.NoError(t, err)
		requireViolation(t, func() { p.Free(ptr + 4) })
		p.Free(ptr)
	})

	t.Run("out of range", func(t *testing.T) {
		requireViolation(t, func() { p.Free(-24) })
		requireViolation(t, func() { p.Free(Ptr(24 * 100)) })
	})
}

func TestPool_Reset(t *testing.T) {
	p, err := NewPool(128, 32)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 4; i++ {
		_, err := p.Allocate(32, 0)
		require.NoError(t, err)
	}
	p.Reset()
	assert.Equal(t, 4, p.Available())
	assert.Zero(t, p.Stats().Live)

	ptr, err := p.Allocate(32, 0)
	require.NoError(t, err)
	assert.Equal(t, Ptr(0), ptr)
}
