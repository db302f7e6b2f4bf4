package pmm

import (
	"math"

	"buhos/kernel"
	"buhos/kernel/hal/e820"
	"buhos/kernel/kfmt"
	"buhos/kernel/mm"
	"buhos/kernel/mm/physmem"
)

var (
	errNoBitmapRegion   = &kernel.Error{Module: "pmm", Message: "no available memory region can hold the frame bitmap"}
	errBitmapVerify     = &kernel.Error{Module: "pmm", Message: "frame bitmap write verification failed"}
	errPhysMemTooSmall  = &kernel.Error{Module: "pmm", Message: "physical memory does not cover the memory map"}
	errTooManyFrames    = &kernel.Error{Module: "pmm", Message: "memory map exceeds the addressable frame range"}
	errNilPhysicalSpace = &kernel.Error{Module: "pmm", Message: "no physical memory supplied"}
)

// Init ingests the boot memory map and prepares the frame bitmap at
// BitmapAddr. Any error returned by Init is fatal: the kernel cannot run
// without a frame bitmap.
//
// Once Init returns, every frame inside a region that is not reported as
// available, every frame below the end of the bitmap storage and the bitmap
// storage itself is marked as reserved; all other frames are free.
func (alloc *Allocator) Init(phys *physmem.Memory, memMap e820.Map) *kernel.Error {
	if phys == nil {
		return errNilPhysicalSpace
	}

	var maxAddr uint64
	err := memMap.Visit(func(region *e820.Region) bool {
		if end := region.End(); end > maxAddr {
			maxAddr = end
		}
		return true
	})
	if err != nil {
		return err
	}

	totalFrames := maxAddr >> mm.FrameShift
	if totalFrames > math.MaxUint32 {
		return errTooManyFrames
	}
	if mm.Size(totalFrames)*mm.FrameSize > phys.Size() {
		return errPhysMemTooSmall
	}

	alloc.bitmap = Bitmap{phys: phys, addr: BitmapAddr, frames: uint32(totalFrames)}
	bitmapStart := uint64(alloc.bitmap.addr)
	bitmapEnd := bitmapStart + uint64(alloc.bitmap.Size())

	// The bitmap must fit inside a single available region.
	var bitmapFits bool
	_ = memMap.Visit(func(region *e820.Region) bool {
		bitmapFits = region.Type == e820.RegionAvailable &&
			region.Base <= bitmapStart && region.End() >= bitmapEnd
		return !bitmapFits
	})
	if !bitmapFits {
		return errNoBitmapRegion
	}

	// Most memory will be free.
	if err = phys.Memset(alloc.bitmap.addr, 0, alloc.bitmap.Size()); err != nil {
		return err
	}

	// ACPI memory is never reclaimed so every region that is not available
	// gets reserved. Partially covered frames are reserved as a whole.
	_ = memMap.Visit(func(region *e820.Region) bool {
		if region.Type == e820.RegionAvailable {
			return true
		}

		firstFrame := region.Base >> mm.FrameShift
		endFrame := (region.End() + uint64(mm.FrameSize) - 1) >> mm.FrameShift
		if err = alloc.reserveRange(firstFrame, endFrame); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	// Frame 0 up to the end of the bitmap holds the real-mode data, the
	// GDT, the kernel image and the bitmap itself. None of it is ever
	// released.
	if err = alloc.reserveRange(0, (bitmapEnd+uint64(mm.FrameSize)-1)>>mm.FrameShift); err != nil {
		return err
	}

	alloc.printMemoryMap(memMap)
	return nil
}

// reserveRange marks frames in [first, end) as reserved, clamping end to the
// tracked frames, and reads back every write.
func (alloc *Allocator) reserveRange(first, end uint64) *kernel.Error {
	if end > uint64(alloc.bitmap.frames) {
		end = uint64(alloc.bitmap.frames)
	}

	for frame := first; frame < end; frame++ {
		alloc.bitmap.Set(mm.Frame(frame), FrameReserved)
		if alloc.bitmap.Get(mm.Frame(frame)) != FrameReserved {
			return errBitmapVerify
		}
	}
	return nil
}

// printMemoryMap logs the system memory map and the resulting bitmap layout.
func (alloc *Allocator) printMemoryMap(memMap e820.Map) {
	kfmt.Printf("[pmm] system memory map:\n")
	var totalFree mm.Size
	_ = memMap.Visit(func(region *e820.Region) bool {
		kfmt.Printf("\t[0x%010x - 0x%010x], size: %10d, type: %s\n", region.Base, region.End(), region.Size, region.Type.String())

		if region.Type == e820.RegionAvailable {
			totalFree += mm.Size(region.Size)
		}
		return true
	})
	kfmt.Printf("[pmm] available memory: %dKb\n", uint64(totalFree/mm.Kb))
	kfmt.Printf("[pmm] total frames: %d, bitmap at 0x%x (%d bytes)\n",
		alloc.bitmap.frames, alloc.bitmap.addr, uint64(alloc.bitmap.Size()),
	)
}
