package resource

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for arena and page storage.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64
}

// Controller tracks and limits the memory held by allocators.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
	peak    atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	return c
}

// Reserve claims bytes from the budget without blocking.
func (c *Controller) Reserve(bytes int64) (*Reservation, error) {
	if bytes < 0 {
		return nil, fmt.Errorf("resource: negative reservation %d", bytes)
	}
	if c == nil || bytes == 0 {
		return &Reservation{bytes: bytes}, nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return nil, fmt.Errorf("%w: requested %d, in use %d of %d",
			ErrMemoryLimitExceeded, bytes, c.memUsed.Load(), c.cfg.MemoryLimitBytes)
	}

	used := c.memUsed.Add(bytes)
	for {
		p := c.peak.Load()
		if used <= p || c.peak.CompareAndSwap(p, used) {
			break
		}
	}
	return &Reservation{c: c, bytes: bytes}, nil
}

func (c *Controller) release(bytes int64) {
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// PeakUsage returns the highest MemoryUsage observed.
func (c *Controller) PeakUsage() int64 {
	if c == nil {
		return 0
	}
	return c.peak.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// Reservation is a claim on part of a Controller's budget.
type Reservation struct {
	c        *Controller
	bytes    int64
	released atomic.Bool
}

// Bytes returns the reserved amount.
func (r *Reservation) Bytes() int64 {
	if r == nil {
		return 0
	}
	return r.bytes
}

// Release returns the reservation to the budget. It is idempotent.
func (r *Reservation) Release() {
	if r == nil || r.released.Swap(true) {
		return
	}
	if r.c != nil && r.bytes > 0 {
		r.c.release(r.bytes)
	}
}
