package slotheap

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfSlots is returned when no free range can hold the request.
	ErrOutOfSlots = errors.New("slotheap: out of slots")
	// ErrPoolExhausted is returned when a Pool needs a page beyond its page limit.
	ErrPoolExhausted = errors.New("slotheap: pool exhausted")
	// ErrInvalidSize is returned for zero-slot requests.
	ErrInvalidSize = errors.New("slotheap: invalid size")
	// ErrInvalidCapacity is returned by constructors for zero capacities.
	ErrInvalidCapacity = errors.New("slotheap: invalid capacity")
	// ErrClosed is returned when allocating from a closed heap or pool.
	ErrClosed = errors.New("slotheap: closed")
	// ErrProtocol is wrapped by every ProtocolError panic value.
	ErrProtocol = errors.New("slotheap: protocol violation")
)

// AllocError describes a failed slot allocation.
type AllocError struct {
	Count   uint32 // requested slots
	Free    uint32 // free slots when the request failed
	Largest uint32 // largest free range
}

func (e *AllocError) Error() string {
	if e.Count <= e.Free {
		return fmt.Sprintf("slotheap: cannot allocate %d slots: %d free but largest range is %d", e.Count, e.Free, e.Largest)
	}
	return fmt.Sprintf("slotheap: cannot allocate %d slots: %d free", e.Count, e.Free)
}

func (e *AllocError) Unwrap() error { return ErrOutOfSlots }

// ProtocolError is the panic value for heap misuse.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("slotheap: %s: %s", e.Op, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

func violation(op, format string, args ...any) {
	panic(&ProtocolError{Op: op, Detail: fmt.Sprintf(format, args...)})
}
