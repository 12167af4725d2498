package slotheap

import "sync/atomic"

// Clock is a monotonically increasing epoch counter shared between the
// goroutines that release handles and the one that completes epochs.
type Clock struct {
	epoch atomic.Uint64
}

// NewClock returns a clock at epoch 0.
func NewClock() *Clock {
	return &Clock{}
}

// Current returns the current epoch.
func (c *Clock) Current() uint64 {
	return c.epoch.Load()
}

// Advance moves to the next epoch and returns it.
func (c *Clock) Advance() uint64 {
	return c.epoch.Add(1)
}
