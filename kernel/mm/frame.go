// Package mm contains the types and layout constants shared by the physical
// and logical memory allocators.
package mm

import "math"

// Frame describes a physical memory frame index.
type Frame uint32

const (
	// InvalidFrame is returned by frame allocators when they fail to
	// reserve the requested frames. As a range bound passed to
	// pmm.Allocator.AllocFrames it selects the last available frame.
	InvalidFrame = Frame(math.MaxUint32)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte in this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << FrameShift
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Addresses that are not frame-aligned are rounded down.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(physAddr >> FrameShift)
}
