// Package kheap implements the kernel's logical allocator: a first-fit heap
// kept as an address-ordered, doubly linked list of entries. Each entry
// header sits right in front of the payload it describes so Free can locate
// the metadata from the bare payload address.
//
// The heap starts empty and grows on demand by requesting frames from the
// physical frame allocator. Frames are never given back.
package kheap

import (
	"buhos/kernel"
	"buhos/kernel/mm"
	"buhos/kernel/mm/physmem"
	"buhos/kernel/sync"
)

var (
	// ErrOutOfMemory is returned by Alloc when the heap cannot grow to
	// satisfy a request.
	ErrOutOfMemory = &kernel.Error{Module: "kheap", Message: "out of memory"}

	errUnknownPointer = &kernel.Error{Module: "kheap", Message: "pointer does not refer to a live allocation"}
)

// FrameAllocator is implemented by physical allocators that can hand out runs
// of contiguous frames inside [first, last).
type FrameAllocator interface {
	AllocFrames(count uint32, first, last mm.Frame) (uintptr, *kernel.Error)
}

// Heap is a first-fit logical allocator.
type Heap struct {
	phys   *physmem.Memory
	frames FrameAllocator

	// firstFrame and lastFrame bound the frames requested when growing.
	firstFrame, lastFrame mm.Frame

	// head is the list sentinel. It never describes any memory.
	head header

	guard sync.CriticalSection
}

// New returns an empty heap that keeps its entries inside phys and grows by
// requesting frames from the kernel heap range
// [mm.KernelFirstFrame, mm.UserFirstFrame).
func New(phys *physmem.Memory, frames FrameAllocator) *Heap {
	h := &Heap{
		phys:       phys,
		frames:     frames,
		firstFrame: mm.KernelFirstFrame,
		lastFrame:  mm.UserFirstFrame,
	}
	h.Init()
	return h
}

// Init resets the list head. Entries created so far are forgotten but the
// frames backing them are not released.
func (h *Heap) Init() {
	h.head = header{status: EntryNull}
}

// SetCriticalSection installs the critical section that protects Alloc, Free
// and the diagnostic dumps. A nil value disables protection. The heap calls
// the frame allocator while inside its critical section so the two must not
// share a non re-entrant lock.
func (h *Heap) SetCriticalSection(cs sync.CriticalSection) {
	if cs == nil {
		cs = sync.NopCriticalSection{}
	}
	h.guard = cs
}

func (h *Heap) lock() func() {
	cs := h.guard
	if cs == nil {
		return func() {}
	}

	flags := cs.Enter()
	return func() { cs.Leave(flags) }
}

// Alloc reserves bytes bytes and returns the address of the payload. The
// request is rounded up to a whole number of EntrySize units; a zero-byte
// request still reserves one unit.
//
// Alloc returns ErrOutOfMemory if no free entry can hold the request and the
// frame allocator cannot provide enough frames to grow the heap.
func (h *Heap) Alloc(bytes uint32) (uintptr, *kernel.Error) {
	defer h.lock()()

	units := bytes / EntrySize
	if bytes%EntrySize > 0 || units == 0 {
		units++
	}

	var (
		addr = headAddr
		hdr  = h.head
		err  *kernel.Error
	)

	for {
		if hdr.status == EntryFree {
			// Taking an entry that is one unit larger than needed
			// avoids leaving behind a zero-sized entry.
			if hdr.size == units || hdr.size == units+1 {
				hdr.status = EntryUsed
				h.store(addr, hdr)
				return addr + EntrySize, nil
			}

			if hdr.size > units+1 {
				h.split(addr, hdr, units)
				return addr + EntrySize, nil
			}
		}

		if hdr.next != 0 {
			addr = uintptr(hdr.next)
			hdr = h.load(addr)
			continue
		}

		// End of the list: the new region always fits the request.
		if addr, err = h.grow(addr, units); err != nil {
			return 0, err
		}
		hdr = h.load(addr)
	}
}

// split carves a used entry of units units out of the front of the free
// entry at addr and links the remainder right after it.
func (h *Heap) split(addr uintptr, hdr header, units uint32) {
	restAddr := addr + uintptr(units+1)*EntrySize
	rest := header{
		next:   hdr.next,
		prev:   uint32(addr),
		size:   hdr.size - units - 1,
		status: EntryFree,
	}
	if rest.next != 0 {
		h.setPrev(uintptr(rest.next), restAddr)
	}
	writeHeader(h.phys, restAddr, rest)

	hdr.next = uint32(restAddr)
	hdr.size = units
	hdr.status = EntryUsed
	h.store(addr, hdr)
}

// grow requests enough frames to hold an entry of units units, links a free
// entry spanning them into the list and returns its address. tail is the
// address of the last entry in the list.
func (h *Heap) grow(tail uintptr, units uint32) (uintptr, *kernel.Error) {
	frameCount := mm.Size(uint64(units+1) * EntrySize).Frames()
	addr, err := h.frames.AllocFrames(frameCount, h.firstFrame, h.lastFrame)
	if err != nil {
		return 0, ErrOutOfMemory
	}

	// Frames come back in address order unless someone released frames
	// below the heap tail; keep the list sorted either way.
	prevAddr := tail
	if addr < tail {
		prevAddr = h.predecessor(addr)
	}

	prev := h.load(prevAddr)
	hdr := header{
		next:   prev.next,
		prev:   uint32(prevAddr),
		size:   uint32(uint64(frameCount)*uint64(mm.FrameSize)/EntrySize) - 1,
		status: EntryFree,
	}
	if hdr.next != 0 {
		h.setPrev(uintptr(hdr.next), addr)
	}
	writeHeader(h.phys, addr, hdr)

	prev.next = uint32(addr)
	h.store(prevAddr, prev)
	return addr, nil
}

// predecessor returns the address of the last entry located below addr.
func (h *Heap) predecessor(addr uintptr) uintptr {
	prevAddr := headAddr
	for next := h.head.next; next != 0 && uintptr(next) < addr; next = h.load(uintptr(next)).next {
		prevAddr = uintptr(next)
	}
	return prevAddr
}

// Free releases the allocation whose payload starts at ptr and merges it with
// free neighbors. Freeing a nil pointer, a pointer that was never returned by
// Alloc or an allocation that is already free has no effect.
func (h *Heap) Free(ptr uintptr) {
	if ptr < EntrySize {
		return
	}

	defer h.lock()()

	prevAddr, prev := headAddr, h.head
	for prev.next != 0 {
		addr := uintptr(prev.next)
		hdr := h.load(addr)
		if addr+EntrySize != ptr {
			prevAddr, prev = addr, hdr
			continue
		}

		if hdr.status != EntryUsed {
			// Double free; this is a caller bug but the list stays
			// intact.
			return
		}
		hdr.status = EntryFree

		if hdr.next != 0 {
			if next := h.load(uintptr(hdr.next)); next.status == EntryFree && adjacent(addr, hdr, uintptr(hdr.next)) {
				hdr.size += next.size + 1
				hdr.next = next.next
				if hdr.next != 0 {
					h.setPrev(uintptr(hdr.next), addr)
				}
			}
		}

		if prev.status == EntryFree && adjacent(prevAddr, prev, addr) {
			prev.size += hdr.size + 1
			prev.next = hdr.next
			if prev.next != 0 {
				h.setPrev(uintptr(prev.next), prevAddr)
			}
			h.store(prevAddr, prev)
			return
		}

		h.store(addr, hdr)
		return
	}
}

// Payload returns the payload of the live allocation at ptr. The slice spans
// the whole entry which may be larger than the size passed to Alloc.
func (h *Heap) Payload(ptr uintptr) ([]byte, *kernel.Error) {
	defer h.lock()()

	for next := h.head.next; next != 0; {
		addr := uintptr(next)
		hdr := h.load(addr)
		if addr+EntrySize == ptr && hdr.status == EntryUsed {
			return h.phys.Bytes(ptr, mm.Size(hdr.size)*EntrySize)
		}
		next = hdr.next
	}

	return nil, errUnknownPointer
}

// adjacent returns true if the entry at nextAddr starts right after the
// payload of the entry at addr.
func adjacent(addr uintptr, hdr header, nextAddr uintptr) bool {
	return addr != headAddr && addr+EntrySize+uintptr(hdr.size)*EntrySize == nextAddr
}

func (h *Heap) load(addr uintptr) header {
	if addr == headAddr {
		return h.head
	}
	return readHeader(h.phys, addr)
}

func (h *Heap) store(addr uintptr, hdr header) {
	if addr == headAddr {
		h.head = hdr
		return
	}
	writeHeader(h.phys, addr, hdr)
}

func (h *Heap) setPrev(addr, prev uintptr) {
	h.phys.PutUint32(addr+offPrev, uint32(prev))
}
