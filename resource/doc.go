// Package resource implements a shared memory budget for allocators.
//
// Byte arenas reserve their full capacity when they are created and give it
// back on Close. Slot heap pools reserve slotBytes × pageSize for every page
// they add. When the budget is exhausted the reservation fails immediately
// with ErrMemoryLimitExceeded; nothing in this package blocks.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20, // 64MB for all arenas and pages
//	})
//
//	r, err := rc.Reserve(1 << 20)
//	if err != nil {
//	    // ErrMemoryLimitExceeded - caller decides whether to shrink or fail
//	}
//	defer r.Release()
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully: reservations always succeed
// and only their size is remembered. This lets allocators accept an optional
// controller without nil checks everywhere.
package resource
