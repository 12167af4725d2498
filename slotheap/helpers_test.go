package slotheap

import (
	"testing"

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

func mustHeap(t *testing.T, capacity uint32, opts ...Option) *Heap {
	t.Helper()

	h, err := New(capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}
