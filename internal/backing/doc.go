// Package backing provides the storage that byte arenas carve allocations from.
//
// Two kinds of storage are supported:
//
//   - Heap: a Go byte slice whose first byte is 64-byte aligned. The memory is
//     owned by the garbage collector and released when the buffer is dropped.
//   - Anon: a private anonymous mapping (mmap(2) on Unix). The memory lives
//     outside the Go heap, so large arenas add no GC scanning cost. Close
//     unmaps it; on platforms without mmap support Anon falls back to Heap.
//
// A Buffer never moves or grows. Offsets into it are stable for its lifetime.
package backing
