// Package physmem models the machine's physical RAM as a flat,
// byte-addressable store. The allocators keep all of their metadata inside
// it: the frame bitmap lives at a fixed physical address and heap entry
// headers sit right in front of the payloads they describe.
package physmem

import (
	"encoding/binary"

	"buhos/kernel"
	"buhos/kernel/mm"
)

var (
	errOutOfRange  = &kernel.Error{Module: "physmem", Message: "physical address range out of bounds"}
	errZeroSize    = &kernel.Error{Module: "physmem", Message: "physical memory size must be greater than zero"}
	errMapFailed   = &kernel.Error{Module: "physmem", Message: "unable to reserve backing store for physical memory"}
	errUnmapFailed = &kernel.Error{Module: "physmem", Message: "unable to release backing store for physical memory"}
)

// Memory is a physical address space of a fixed size starting at address 0.
type Memory struct {
	data    []byte
	release func([]byte) error
}

// New reserves a physical address space of the given size. The contents are
// zero-filled.
func New(size mm.Size) (*Memory, *kernel.Error) {
	if size == 0 {
		return nil, errZeroSize
	}

	data, release, err := reserveFn(uint64(size))
	if err != nil {
		return nil, errMapFailed
	}

	return &Memory{data: data, release: release}, nil
}

// Close releases the backing store. The Memory must not be used afterwards.
func (m *Memory) Close() *kernel.Error {
	if m.data == nil {
		return nil
	}

	data := m.data
	m.data = nil
	if m.release != nil {
		if err := m.release(data); err != nil {
			return errUnmapFailed
		}
	}
	return nil
}

// Size returns the size of the address space in bytes.
func (m *Memory) Size() mm.Size {
	return mm.Size(len(m.data))
}

// Contains returns true if [addr, addr+n) lies inside the address space.
func (m *Memory) Contains(addr uintptr, n mm.Size) bool {
	end := uint64(addr) + uint64(n)
	return end >= uint64(addr) && end <= uint64(len(m.data))
}

// Bytes returns a slice that aliases the n bytes starting at addr.
func (m *Memory) Bytes(addr uintptr, n mm.Size) ([]byte, *kernel.Error) {
	if !m.Contains(addr, n) {
		return nil, errOutOfRange
	}
	return m.data[addr : uint64(addr)+uint64(n) : uint64(addr)+uint64(n)], nil
}

// Memset sets n bytes starting at addr to value. Instead of a byte loop it
// uses log2(n) copy calls.
func (m *Memory) Memset(addr uintptr, value byte, n mm.Size) *kernel.Error {
	target, err := m.Bytes(addr, n)
	if err != nil || n == 0 {
		return err
	}

	target[0] = value
	for index := 1; index < len(target); index *= 2 {
		copy(target[index:], target[:index])
	}
	return nil
}

// Uint8 returns the byte stored at addr. The caller must ensure that addr is
// inside the address space.
func (m *Memory) Uint8(addr uintptr) uint8 {
	return m.data[addr]
}

// PutUint8 stores v at addr. The caller must ensure that addr is inside the
// address space.
func (m *Memory) PutUint8(addr uintptr, v uint8) {
	m.data[addr] = v
}

// Uint32 returns the little-endian 32-bit value stored at addr. The caller
// must ensure that the 4 bytes at addr are inside the address space.
func (m *Memory) Uint32(addr uintptr) uint32 {
	return binary.LittleEndian.Uint32(m.data[addr:])
}

// PutUint32 stores v at addr in little-endian order. The caller must ensure
// that the 4 bytes at addr are inside the address space.
func (m *Memory) PutUint32(addr uintptr, v uint32) {
	binary.LittleEndian.PutUint32(m.data[addr:], v)
}
