// Package slotheap allocates ranges of slots from fixed-size tables whose
// contents may still be read by an asynchronous consumer after their owner is
// done with them.
//
// # Deferred reclamation
//
// Releasing a range never frees it. The range is queued with an epoch and
// becomes allocatable again only once ReclaimUpTo is called with an epoch at
// or past it. The consumer side (a frame loop, a GPU fence, a worker pool)
// owns the notion of "epoch E is complete"; this package only enforces the
// ordering:
//
//	Free -> Allocated -> Pending -> Free
//
// Any other transition is a protocol violation and panics with a
// *ProtocolError.
//
// # Placement
//
// Each Heap keeps its free ranges in two ordered indexes: by offset (for
// merging neighbours on reclaim) and by (size, offset) (for best-fit lookup).
// Both are github.com/google/btree trees, so allocation and reclamation are
// O(log n) in the number of free ranges.
//
// # Pools
//
// Pool grows a set of Heaps ("pages") on demand and tracks which pages still
// have free slots in a roaring bitmap, so exhausted pages are skipped without
// being probed.
//
// # Concurrency
//
// Heap and Pool are safe for concurrent use. A Handle is owned by one
// goroutine at a time. Lock order is Pool, then Heap; releasing a Handle only
// takes the Heap lock.
package slotheap
