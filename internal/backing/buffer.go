package backing

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

// Alignment is the minimum alignment of the first byte of every Buffer.
const Alignment = 64

// Kind selects where a Buffer's bytes live.
type Kind int

const (
	// Heap allocates from the Go heap.
	Heap Kind = iota
	// Anon uses an anonymous private mapping outside the Go heap.
	Anon
)

func (k Kind) String() string {
	switch k {
	case Heap:
		return "heap"
	case Anon:
		return "anon"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidSize is returned for non-positive buffer sizes.
	ErrInvalidSize = errors.New("backing: invalid size")
	// ErrClosed is returned when using a closed buffer.
	ErrClosed = errors.New("backing: buffer is closed")
)

// Buffer is a fixed-size, aligned byte region.
type Buffer struct {
	data   []byte
	kind   Kind
	closed atomic.Bool
	unmap  func([]byte) error
}

// New returns a Buffer of exactly size bytes.
func New(kind Kind, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if kind == Anon {
		data, unmap, err := mapAnon(size)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return &Buffer{data: data[:size:size], kind: Anon, unmap: unmap}, nil
		}
	}
	return &Buffer{data: allocAligned(size), kind: Heap}, nil
}

// allocAligned over-allocates by Alignment bytes and slices from the first
// aligned address. The returned slice keeps the whole array alive.
func allocAligned(size int) []byte {
	buf := make([]byte, size+Alignment)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // address is only inspected for alignment
	off := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)
	return buf[off : off+uintptr(size) : off+uintptr(size)]
}

// Bytes returns the whole region, or nil after Close.
func (b *Buffer) Bytes() []byte {
	if b.closed.Load() {
		return nil
	}
	return b.data
}

// Slice returns data[off:off+n] with its capacity clamped to n.
func (b *Buffer) Slice(off, n int) []byte {
	if b.closed.Load() {
		return nil
	}
	return b.data[off : off+n : off+n]
}

// Size returns the size of the region in bytes.
func (b *Buffer) Size() int {
	return len(b.data)
}

// Kind reports where the bytes actually live (Anon requests may fall back to Heap).
func (b *Buffer) Kind() Kind {
	return b.kind
}

// Close releases the region. It is idempotent.
func (b *Buffer) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	data := b.data
	b.data = nil
	if b.unmap != nil && data != nil {
		return b.unmap(data)
	}
	return nil
}
