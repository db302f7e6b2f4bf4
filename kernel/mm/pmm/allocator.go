// Package pmm implements the physical frame allocator. Frame state is kept in
// a 2-bit-per-frame bitmap stored at a fixed physical address.
package pmm

import (
	"buhos/kernel"
	"buhos/kernel/mm"
	"buhos/kernel/sync"
)

// BitmapAddr is the fixed physical address of the frame bitmap: the very
// beginning of the kernel heap.
const BitmapAddr = mm.KernelHeapAddr

var (
	// ErrOutOfMemory is returned by AllocFrames when no run of free frames
	// satisfies the request.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	errZeroFrames = &kernel.Error{Module: "pmm", Message: "frame count must be greater than zero"}
)

// Allocator is a first-fit physical frame allocator. The zero value is not
// usable; Init must be called with the boot memory map first.
type Allocator struct {
	bitmap Bitmap

	// guard protects the public entry points. It defaults to no protection.
	guard sync.CriticalSection
}

// SetCriticalSection installs the critical section that protects
// AllocFrames, ReleaseFrames and the diagnostic dumps. A nil value disables
// protection.
func (alloc *Allocator) SetCriticalSection(cs sync.CriticalSection) {
	if cs == nil {
		cs = sync.NopCriticalSection{}
	}
	alloc.guard = cs
}

// lock enters the installed critical section and returns the function that
// leaves it.
func (alloc *Allocator) lock() func() {
	cs := alloc.guard
	if cs == nil {
		return func() {}
	}

	flags := cs.Enter()
	return func() { cs.Leave(flags) }
}

// TotalFrames returns the number of frames tracked by the allocator.
func (alloc *Allocator) TotalFrames() uint32 {
	return alloc.bitmap.frames
}

// Bitmap returns the bitmap backing the allocator.
func (alloc *Allocator) Bitmap() *Bitmap {
	return &alloc.bitmap
}

// Entry returns the status of frame. The result is undefined if frame is not
// smaller than TotalFrames().
func (alloc *Allocator) Entry(frame mm.Frame) FrameStatus {
	return alloc.bitmap.Get(frame)
}

// SetEntry unconditionally overwrites the status of frame. The result is
// undefined if frame is not smaller than TotalFrames().
func (alloc *Allocator) SetEntry(frame mm.Frame, status FrameStatus) {
	alloc.bitmap.Set(frame, status)
}

// AllocFrames scans [first, last) for the lowest run of count contiguous free
// frames, marks it as used and returns the address of its first frame. If
// last is 0, mm.InvalidFrame or beyond the tracked frames, the scan runs to
// the last tracked frame.
//
// AllocFrames returns ErrOutOfMemory if no such run exists.
func (alloc *Allocator) AllocFrames(count uint32, first, last mm.Frame) (uintptr, *kernel.Error) {
	if count == 0 {
		return 0, errZeroFrames
	}

	defer alloc.lock()()

	if last == 0 || uint32(last) > alloc.bitmap.frames {
		last = mm.Frame(alloc.bitmap.frames)
	}

	var run uint32
	for frame := first; frame < last; frame++ {
		if alloc.bitmap.Get(frame) != FrameFree {
			run = 0
			continue
		}

		if run++; run == count {
			start := frame - mm.Frame(count) + 1
			for f := start; f <= frame; f++ {
				alloc.bitmap.Set(f, FrameUsed)
			}
			return start.Address(), nil
		}
	}

	return 0, ErrOutOfMemory
}

// ReleaseFrames marks count frames starting with the frame that contains addr
// as free. Only frames in the used state are changed; reserved frames inside
// the range are silently skipped. It returns the number of frames that were
// actually released so callers can detect a partial release.
func (alloc *Allocator) ReleaseFrames(addr uintptr, count uint32) uint32 {
	defer alloc.lock()()

	if uint64(addr)>>mm.FrameShift >= uint64(alloc.bitmap.frames) {
		return 0
	}
	frame := mm.FrameFromAddress(addr)

	last := uint64(frame) + uint64(count)
	if last > uint64(alloc.bitmap.frames) {
		last = uint64(alloc.bitmap.frames)
	}

	var released uint32
	for ; uint64(frame) < last; frame++ {
		if alloc.bitmap.Get(frame) == FrameUsed {
			alloc.bitmap.Set(frame, FrameFree)
			released++
		}
	}

	return released
}

// Stats summarizes the bitmap contents.
type Stats struct {
	Free, Used, Reserved, Reserved2 uint32
}

// Stats returns the number of frames in each state.
func (alloc *Allocator) Stats() Stats {
	defer alloc.lock()()

	var stats Stats
	for frame := mm.Frame(0); uint32(frame) < alloc.bitmap.frames; frame++ {
		switch alloc.bitmap.Get(frame) {
		case FrameFree:
			stats.Free++
		case FrameUsed:
			stats.Used++
		case FrameReserved:
			stats.Reserved++
		case FrameReserved2:
			stats.Reserved2++
		}
	}
	return stats
}
