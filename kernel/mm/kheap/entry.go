package kheap

import "buhos/kernel/mm/physmem"

// EntryStatus describes the state of a heap entry.
type EntryStatus uint32

const (
	// EntryNull marks the list head sentinel.
	EntryNull EntryStatus = iota

	// EntryFree marks an entry whose payload can be handed out.
	EntryFree

	// EntryUsed marks an entry whose payload belongs to a caller.
	EntryUsed
)

// String implements fmt.Stringer for EntryStatus.
func (s EntryStatus) String() string {
	switch s {
	case EntryNull:
		return "null"
	case EntryFree:
		return "free"
	case EntryUsed:
		return "used"
	default:
		return "invalid"
	}
}

// EntrySize is the size of an entry header in bytes. It is also the unit in
// which entry sizes are expressed so that every header and payload stays
// aligned to EntrySize.
//
// Header layout (little-endian, 32-bit fields):
//
//	offset  field
//	0       next entry address (0 for the tail)
//	4       previous entry address (0 for the list head)
//	8       payload size in EntrySize units
//	12      status
const EntrySize = 16

const (
	offNext   = 0
	offPrev   = 4
	offSize   = 8
	offStatus = 12
)

// headAddr identifies the list head. Frame 0 is always reserved so no entry
// can live at this address.
const headAddr = uintptr(0)

// header mirrors an entry header. The list head is kept in a header value
// owned by the Heap; all other headers live in physical memory.
type header struct {
	next, prev uint32
	size       uint32
	status     EntryStatus
}

func readHeader(phys *physmem.Memory, addr uintptr) header {
	return header{
		next:   phys.Uint32(addr + offNext),
		prev:   phys.Uint32(addr + offPrev),
		size:   phys.Uint32(addr + offSize),
		status: EntryStatus(phys.Uint32(addr + offStatus)),
	}
}

func writeHeader(phys *physmem.Memory, addr uintptr, hdr header) {
	phys.PutUint32(addr+offNext, hdr.next)
	phys.PutUint32(addr+offPrev, hdr.prev)
	phys.PutUint32(addr+offSize, hdr.size)
	phys.PutUint32(addr+offStatus, uint32(hdr.status))
}

// Entry is a snapshot of a heap entry as reported by Heap.Entries.
type Entry struct {
	// Addr is the address of the entry header. The head sentinel is
	// reported with address 0.
	Addr uintptr

	// Next and Prev are the addresses of the neighboring entries or 0.
	Next, Prev uintptr

	// Size is the payload size in EntrySize units.
	Size uint32

	Status EntryStatus
}

// Payload returns the address of the first payload byte.
func (e Entry) Payload() uintptr {
	return e.Addr + EntrySize
}

// End returns the address of the first byte after the payload.
func (e Entry) End() uintptr {
	return e.Payload() + uintptr(e.Size)*EntrySize
}
