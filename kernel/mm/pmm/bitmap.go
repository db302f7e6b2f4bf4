package pmm

import (
	"buhos/kernel/mm"
	"buhos/kernel/mm/physmem"
)

// FrameStatus is the 2-bit state recorded for every frame in the bitmap.
type FrameStatus uint8

const (
	// FrameFree marks a frame that can be allocated.
	FrameFree FrameStatus = iota

	// FrameUsed marks a frame handed out by AllocFrames.
	FrameUsed

	// FrameReserved marks a frame that is never allocated nor released:
	// firmware regions, the kernel image and the bitmap itself.
	FrameReserved

	// FrameReserved2 is currently unused. It is kept apart from
	// FrameReserved so that e.g. ACPI-reclaimable memory can be told apart
	// in the future.
	FrameReserved2
)

const (
	// bitsPerEntry and entriesPerByte describe the bitmap packing.
	bitsPerEntry   = 2
	entriesPerByte = 8 / bitsPerEntry
	entryMask      = 1<<bitsPerEntry - 1
)

// String implements fmt.Stringer for FrameStatus.
func (s FrameStatus) String() string {
	switch s {
	case FrameFree:
		return "free"
	case FrameUsed:
		return "used"
	case FrameReserved:
		return "reserved"
	case FrameReserved2:
		return "reserved2"
	default:
		return "invalid"
	}
}

// Bitmap stores a FrameStatus for each frame in [0, frames). Entries are
// packed four per byte starting with the least significant bits.
type Bitmap struct {
	phys   *physmem.Memory
	addr   uintptr
	frames uint32
}

// bitmapBytes returns the number of bytes needed to track frames.
func bitmapBytes(frames uint32) mm.Size {
	return mm.Size((uint64(frames)*bitsPerEntry + 7) / 8)
}

// Frames returns the number of frames tracked by the bitmap.
func (b *Bitmap) Frames() uint32 {
	return b.frames
}

// Addr returns the physical address of the bitmap storage.
func (b *Bitmap) Addr() uintptr {
	return b.addr
}

// Size returns the size of the bitmap storage in bytes.
func (b *Bitmap) Size() mm.Size {
	return bitmapBytes(b.frames)
}

// Get returns the status of frame. The result is undefined if frame is not
// smaller than Frames().
func (b *Bitmap) Get(frame mm.Frame) FrameStatus {
	pack := b.phys.Uint8(b.addr + uintptr(frame/entriesPerByte))
	return FrameStatus(pack>>((frame%entriesPerByte)*bitsPerEntry)) & entryMask
}

// Set overwrites the status of frame. The result is undefined if frame is not
// smaller than Frames().
func (b *Bitmap) Set(frame mm.Frame, status FrameStatus) {
	addr := b.addr + uintptr(frame/entriesPerByte)
	shift := (frame % entriesPerByte) * bitsPerEntry

	pack := b.phys.Uint8(addr)
	pack &^= entryMask << shift
	pack |= uint8(status&entryMask) << shift
	b.phys.PutUint8(addr, pack)
}
