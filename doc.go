// Package arenakit provides fixed-capacity allocators for raw bytes and for
// slot tables whose reuse is gated on an external epoch.
//
// # Allocators
//
// The byte arenas live in package arena:
//
//	arena.Linear    bump allocation, Reset only
//	arena.Stack     LIFO frees
//	arena.Pool      fixed-size chunks
//	arena.FreeList  variable sizes, first-fit or best-fit, split and coalesce
//
// The slot allocators live in package slotheap:
//
//	slotheap.Heap   best-fit over a dual index, deferred reclamation
//	slotheap.Pool   growable set of heaps ("pages")
//
// # Quick Start
//
//	p := arenakit.New(arenakit.WithMemoryLimit(64 << 20))
//	defer p.Close()
//
//	fl, _ := p.NewFreeList(1<<20, arena.PolicyBestFit)
//	ptr, _ := fl.Allocate(256, 16)
//	buf := fl.Bytes(ptr, 256)
//	fl.Free(ptr)
//
// # Epochs
//
// Slot ranges are released into a stale queue tagged with an epoch and only
// become allocatable again once that epoch is reported complete:
//
//	pool, _ := p.NewHeapPool(1024)
//	h, _ := pool.Allocate(8)
//	h.Release()                  // tagged with p.Clock().Current()
//	p.CompleteEpoch(ctx)         // consumer finished: reclaim
//
// # Errors
//
// Running out of capacity is an error value (see IsOutOfCapacity). Misuse,
// such as freeing out of order on a Stack or releasing a slot range twice,
// panics with a protocol error (see IsProtocolViolation).
//
// # Observability
//
// Every allocator logs through log/slog (see Logger) and reports to a
// MetricsCollector. Layouts and Dump write allocator maps for offline
// fragmentation analysis (package diag).
package arenakit
