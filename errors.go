package arenakit

import (
	"errors"

	"github.com/hupe1980/arenakit/arena"
	"github.com/hupe1980/arenakit/resource"
	"github.com/hupe1980/arenakit/slotheap"
)

var (
	// ErrClosed is returned when creating an allocator from a closed Provider.
	ErrClosed = errors.New("arenakit: provider closed")

	// ErrOutOfMemory is returned by byte arenas that cannot fit a request.
	ErrOutOfMemory = arena.ErrOutOfMemory
	// ErrOutOfSlots is returned by slot heaps that cannot fit a request.
	ErrOutOfSlots = slotheap.ErrOutOfSlots
	// ErrPoolExhausted is returned by heap pools that reached their page limit.
	ErrPoolExhausted = slotheap.ErrPoolExhausted
	// ErrMemoryLimitExceeded is returned when a new allocator would exceed the memory budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// IsOutOfCapacity reports whether err means "no room": the caller may grow,
// reclaim, retry or fail the surrounding operation.
func IsOutOfCapacity(err error) bool {
	return errors.Is(err, ErrOutOfMemory) ||
		errors.Is(err, ErrOutOfSlots) ||
		errors.Is(err, ErrPoolExhausted) ||
		errors.Is(err, ErrMemoryLimitExceeded)
}

// IsProtocolViolation reports whether v, typically a recovered panic value,
// is an allocator misuse error.
func IsProtocolViolation(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	return errors.Is(err, arena.ErrProtocol) || errors.Is(err, slotheap.ErrProtocol)
}
