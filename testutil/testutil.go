package testutil

import (
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Zipf returns a Zipfian-distributed value in [0, n): small values dominate,
// which matches real allocation size distributions.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// OpKind is the kind of a workload step.
type OpKind int

const (
	// OpAlloc requests Size units with Alignment.
	OpAlloc OpKind = iota
	// OpFree frees the live allocation at index Pick modulo the live count.
	OpFree
)

// Op is one workload step.
type Op struct {
	Kind      OpKind
	Size      int
	Alignment int
	Pick      int
}

// WorkloadConfig shapes a generated workload.
type WorkloadConfig struct {
	Ops        int     // number of steps
	MaxSize    int     // sizes are drawn from [1, MaxSize]
	Alignments []int   // alignments to choose from; empty means 0 (allocator default)
	FreeRatio  float64 // probability of a free step; 0 means 0.4
	Skew       float64 // Zipf exponent for sizes; 0 means uniform
}

// Workload generates a reproducible mix of allocations and frees.
// Free steps never reference a specific pointer, so the same workload can
// be replayed against allocators that fail at different points.
func (r *RNG) Workload(cfg WorkloadConfig) []Op {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1
	}
	if cfg.FreeRatio <= 0 {
		cfg.FreeRatio = 0.4
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]Op, 0, cfg.Ops)
	for i := 0; i < cfg.Ops; i++ {
		if r.rand.Float64() < cfg.FreeRatio {
			ops = append(ops, Op{Kind: OpFree, Pick: r.rand.Intn(1 << 30)})
			continue
		}

		var size int
		if cfg.Skew > 0 {
			size = r.zipfLocked(cfg.MaxSize, cfg.Skew) + 1
		} else {
			size = r.rand.Intn(cfg.MaxSize) + 1
		}
		alignment := 0
		if len(cfg.Alignments) > 0 {
			alignment = cfg.Alignments[r.rand.Intn(len(cfg.Alignments))]
		}
		ops = append(ops, Op{Kind: OpAlloc, Size: size, Alignment: alignment})
	}
	return ops
}
