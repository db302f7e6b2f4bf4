//go:build !linux

package physmem

import "errors"

// reserveFn is mocked by tests.
var reserveFn = heapReserve

var errTooLarge = errors.New("physical memory size exceeds the host address space")

// heapReserve backs the address space with a regular Go slice on platforms
// without MAP_NORESERVE.
func heapReserve(size uint64) ([]byte, func([]byte) error, error) {
	if size > uint64(^uint(0)>>1) {
		return nil, nil, errTooLarge
	}
	return make([]byte, size), nil, nil
}
