// Package testutil provides testing utilities for arenakit.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded RNG and reproducible allocate/free workloads that
// property tests replay against any allocator.
//
//	rng := testutil.NewRNG(seed)
//	ops := rng.Workload(testutil.WorkloadConfig{Ops: 1000, MaxSize: 256})
//	for _, op := range ops {
//	    switch op.Kind {
//	    case testutil.OpAlloc:
//	        // allocate op.Size with op.Alignment, remember the result
//	    case testutil.OpFree:
//	        // free live[op.Pick%len(live)] if anything is live
//	    }
//	}
package testutil
