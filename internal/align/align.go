package align

import (
	"fmt"
	"math"
)

// IsPow2 reports whether v is a positive power of two.
func IsPow2(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// Up rounds off up to the next multiple of alignment.
// alignment must be a power of two.
func Up(off, alignment int) int {
	mask := alignment - 1
	return (off + mask) &^ mask
}

// Padding returns the number of bytes needed to move off to the next
// multiple of alignment (0 when off is already aligned).
func Padding(off, alignment int) int {
	return Up(off, alignment) - off
}

// PaddingWithHeader returns the smallest padding p such that p >= header and
// off+p is a multiple of alignment. The header occupies the last header bytes
// of the padding, directly in front of the aligned payload.
func PaddingWithHeader(off, alignment, header int) int {
	p := Padding(off, alignment)
	if p >= header {
		return p
	}
	return p + Up(header-p, alignment)
}

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (negative)", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (too large)", v)
	}
	return uint32(v), nil
}
