package arena

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// requireViolation runs fn and asserts that it panics with a ProtocolError.
func requireViolation(t *testing.T, fn func()) *ProtocolError {
	t.Helper()

	var pe *ProtocolError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a protocol violation")
			err, ok := r.(error)
			require.True(t, ok, "panic value %v is not an error", r)
			require.ErrorIs(t, err, ErrProtocol)
			require.ErrorAs(t, err, &pe)
		}()
		fn()
	}()
	return pe
}

// countingRecorder is a minimal metrics recorder for assertions.
type countingRecorder struct {
	mu       sync.Mutex
	allocs   int
	failures int
	freed    int
	lastKind string
}

func (c *countingRecorder) RecordAllocate(kind string, _ int, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastKind = kind
	if err != nil {
		c.failures++
		return
	}
	c.allocs++
}

func (c *countingRecorder) RecordFree(_ string, units int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freed += units
}

func (c *countingRecorder) RecordReclaim(int, int) {}
func (c *countingRecorder) RecordGrow(int)         {}
