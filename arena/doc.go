// Package arena provides fixed-capacity byte allocators carved out of a single
// contiguous backing buffer.
//
// Four allocators share the same base (capacity, used and peak counters over
// one buffer) and differ in how they hand out and take back space:
//
//   - Linear: bump pointer. No per-allocation free; Reset drops everything in O(1).
//   - Stack: bump pointer with strict LIFO Free.
//   - Pool: fixed-size chunks on a free stack. O(1) Allocate and Free.
//   - FreeList: variable-size blocks from an address-ordered free list with
//     splitting and coalescing, using a first-fit or best-fit Policy.
//
// # Pointers
//
// Allocations are identified by a Ptr: the payload offset from the start of
// the buffer. Bytes(p, n) returns the payload. Buffers are at least 64-byte
// aligned, so an offset aligned to a power of two up to 64 is also an aligned
// address. Bookkeeping (stack frames, free-list block headers) lives in side
// tables, never inside the buffer, so payload bytes are never reinterpreted.
//
// # Errors
//
// Running out of space is an ordinary error (ErrOutOfMemory, with details in
// *AllocError). Misuse that indicates a broken caller invariant, such as
// freeing out of order, freeing twice, or an alignment below the minimum, panics
// with a *ProtocolError that wraps ErrProtocol.
//
// # Concurrency
//
// Every allocator guards its state with its own mutex, so one instance may be
// shared by concurrent producers. Close must not race with other calls.
package arena
