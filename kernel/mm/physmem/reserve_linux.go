//go:build linux

package physmem

import (
	"errors"

	"golang.org/x/sys/unix"
)

// reserveFn is mocked by tests.
var reserveFn = mmapReserve

// mmapReserve backs the address space with an anonymous private mapping.
// MAP_NORESERVE lets a machine with a 4G memory map only pay for the pages
// the allocators actually touch.
func mmapReserve(size uint64) ([]byte, func([]byte) error, error) {
	if size > uint64(^uint(0)>>1) {
		return nil, nil, unix.ENOMEM
	}

	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_NORESERVE)
	if err != nil {
		return nil, nil, err
	}

	return data, munmap, nil
}

func munmap(data []byte) error {
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
