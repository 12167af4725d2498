package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when no space can satisfy a request.
	ErrOutOfMemory = errors.New("arena: out of memory")
	// ErrInvalidCapacity is returned by constructors for unusable capacities.
	ErrInvalidCapacity = errors.New("arena: invalid capacity")
	// ErrInvalidChunkSize is returned by NewPool for chunk sizes below MinChunkSize.
	ErrInvalidChunkSize = errors.New("arena: invalid chunk size")
	// ErrInvalidSize is returned for non-positive allocation sizes.
	ErrInvalidSize = errors.New("arena: invalid allocation size")
	// ErrClosed is returned when allocating from a closed arena.
	ErrClosed = errors.New("arena: closed")
	// ErrProtocol is wrapped by every ProtocolError panic value.
	ErrProtocol = errors.New("arena: protocol violation")
)

// AllocError describes a failed allocation.
type AllocError struct {
	Kind      string
	Size      int
	Alignment int
	Free      int // bytes free when the request failed (possibly fragmented)
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("arena: %s: cannot allocate %d bytes (alignment %d), %d bytes free", e.Kind, e.Size, e.Alignment, e.Free)
}

func (e *AllocError) Unwrap() error { return ErrOutOfMemory }

// ProtocolError is the panic value for allocator misuse.
type ProtocolError struct {
	Kind   string
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("arena: %s.%s: %s", e.Kind, e.Op, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

func violation(kind, op, format string, args ...any) {
	panic(&ProtocolError{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)})
}
