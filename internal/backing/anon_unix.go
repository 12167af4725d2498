//go:build unix

package backing

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func mapAnon(size int) ([]byte, func([]byte) error, error) {
	// Round to whole pages; mmap hands back page-aligned memory.
	page := unix.Getpagesize()
	mapped := (size + page - 1) / page * page

	data, err := unix.Mmap(-1, 0, mapped, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("backing: map anonymous memory: %w", err)
	}
	return data, func([]byte) error { return unix.Munmap(data) }, nil
}
