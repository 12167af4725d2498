// Package align provides offset alignment and checked integer conversion
// helpers shared by the byte arenas and the slot heaps.
//
// Offsets handed out by the arenas are relative to a backing buffer whose base
// is at least 64-byte aligned, so aligning an offset also aligns the address
// for every power-of-two alignment up to that base alignment.
package align
