// Package mem ties the physical frame allocator and the kernel heap together
// and exposes the entry points used by the rest of the kernel.
package mem

import (
	"io"

	"buhos/kernel"
	"buhos/kernel/hal/e820"
	"buhos/kernel/kfmt"
	"buhos/kernel/mm"
	"buhos/kernel/mm/kheap"
	"buhos/kernel/mm/physmem"
	"buhos/kernel/mm/pmm"
	"buhos/kernel/sync"
)

var errNotInitialized = &kernel.Error{Module: "mem", Message: "memory subsystem is not initialized"}

// Manager owns the memory subsystem state: the frame bitmap, the kernel heap
// and the GDT base handed over by the boot code.
type Manager struct {
	gdtBase uintptr
	frames  pmm.Allocator
	heap    *kheap.Heap
}

// Init ingests the boot memory map and sets up an empty kernel heap. The GDT
// base is stored as is. Errors returned by Init are fatal.
func (m *Manager) Init(phys *physmem.Memory, gdtBase uintptr, memMap e820.Map) *kernel.Error {
	m.heap = nil
	if err := m.frames.Init(phys, memMap); err != nil {
		return err
	}

	m.gdtBase = gdtBase
	m.heap = kheap.New(phys, &m.frames)
	kfmt.Printf("[mem] kernel heap frames: [%d, %d)\n", uint32(mm.KernelFirstFrame), uint32(mm.UserFirstFrame))
	return nil
}

// EnableIRQGuard protects every entry point by disabling interrupts and
// holding a spinlock while the allocator state is modified. The heap calls
// the frame allocator from inside its own critical section so each of them
// gets a separate guard.
func (m *Manager) EnableIRQGuard() {
	m.frames.SetCriticalSection(&sync.IRQGuard{})
	if m.heap != nil {
		m.heap.SetCriticalSection(&sync.IRQGuard{})
	}
}

// GDTBase returns the GDT base address passed to Init.
func (m *Manager) GDTBase() uintptr { return m.gdtBase }

// Frames returns the physical frame allocator.
func (m *Manager) Frames() *pmm.Allocator { return &m.frames }

// Heap returns the kernel heap or nil if Init has not succeeded.
func (m *Manager) Heap() *kheap.Heap { return m.heap }

// AllocateFrames reserves count contiguous frames in [first, last) and returns
// the address of the first one. See pmm.Allocator.AllocFrames.
func (m *Manager) AllocateFrames(count uint32, first, last mm.Frame) (uintptr, *kernel.Error) {
	if m.heap == nil {
		return 0, errNotInitialized
	}
	return m.frames.AllocFrames(count, first, last)
}

// ReleaseFrames returns count frames starting at addr to the free pool and
// reports how many of them were actually in use.
func (m *Manager) ReleaseFrames(addr uintptr, count uint32) uint32 {
	if m.heap == nil {
		return 0
	}
	return m.frames.ReleaseFrames(addr, count)
}

// Kalloc allocates bytes bytes from the kernel heap.
func (m *Manager) Kalloc(bytes uint32) (uintptr, *kernel.Error) {
	if m.heap == nil {
		return 0, errNotInitialized
	}
	return m.heap.Alloc(bytes)
}

// Kfree releases an allocation made by Kalloc.
func (m *Manager) Kfree(ptr uintptr) {
	if m.heap == nil {
		return
	}
	m.heap.Free(ptr)
}

// Inspect dumps the frame bitmap to w.
func (m *Manager) Inspect(w io.Writer) {
	if m.heap == nil {
		return
	}
	m.frames.Inspect(w)
}

// InspectAlloc dumps the kernel heap entry list to w.
func (m *Manager) InspectAlloc(w io.Writer) {
	if m.heap == nil {
		return
	}
	m.heap.Inspect(w)
}
