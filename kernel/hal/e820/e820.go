// Package e820 decodes the memory map collected by the real-mode boot stage
// through INT 0x15, AX=0xE820.
//
// The boot stage stores the map as a contiguous list of packed records
// terminated by an all-zero record:
//
//	offset  size  field
//	0       8     base address
//	8       8     region length
//	16      4     region type
package e820

import (
	"encoding/binary"

	"buhos/kernel"
)

// EntrySize is the size in bytes of a packed memory map record.
const EntrySize = 20

// RegionType defines the type of a memory Region.
type RegionType uint32

const (
	// RegionAvailable indicates that the memory region is available for use.
	RegionAvailable RegionType = iota + 1

	// RegionReserved indicates that the memory region is not available for use.
	RegionReserved

	// RegionACPIReclaim indicates a memory region that holds ACPI tables
	// that can be reused by the OS once parsed.
	RegionACPIReclaim

	// RegionACPINVS indicates memory that must be preserved when
	// hibernating.
	RegionACPINVS

	// Any value >= regionUnknown will be mapped to RegionReserved.
	regionUnknown
)

var errMissingTerminator = &kernel.Error{Module: "e820", Message: "memory map is not terminated by an empty entry"}

// String implements fmt.Stringer for RegionType.
func (t RegionType) String() string {
	switch t {
	case RegionAvailable:
		return "available"
	case RegionReserved:
		return "reserved"
	case RegionACPIReclaim:
		return "ACPI (reclaimable)"
	case RegionACPINVS:
		return "ACPI NVS"
	default:
		return "unknown"
	}
}

// Region describes one span of physical memory as reported by the firmware.
type Region struct {
	// The physical address for this memory region.
	Base uint64

	// The length of the memory region.
	Size uint64

	// The type of this entry.
	Type RegionType
}

// End returns the address of the first byte after the region.
func (r Region) End() uint64 {
	return r.Base + r.Size
}

// isTerminator returns true for the all-zero record that ends the map.
func (r Region) isTerminator() bool {
	return r.Base == 0 && r.Size == 0 && r.Type == 0
}

// RegionVisitor defines a visitor function that gets invoked by Map.Visit
// for each memory region. The visitor must return true to continue or false
// to abort the scan.
type RegionVisitor func(region *Region) bool

// Map is a raw memory map as left in memory by the boot stage.
type Map []byte

// Visit invokes the supplied visitor for each region in the map until the
// terminating record is reached. Unknown region types are reported as
// RegionReserved. Visit returns an error if the data ends before the
// terminating record.
func (m Map) Visit(visitor RegionVisitor) *kernel.Error {
	var region Region
	for offset := 0; offset+EntrySize <= len(m); offset += EntrySize {
		region = Region{
			Base: binary.LittleEndian.Uint64(m[offset:]),
			Size: binary.LittleEndian.Uint64(m[offset+8:]),
			Type: RegionType(binary.LittleEndian.Uint32(m[offset+16:])),
		}

		if region.isTerminator() {
			return nil
		}

		if region.Type == 0 || region.Type >= regionUnknown {
			region.Type = RegionReserved
		}

		if !visitor(&region) {
			return nil
		}
	}

	return errMissingTerminator
}

// Regions decodes all regions in the map.
func (m Map) Regions() ([]Region, *kernel.Error) {
	var regions []Region
	err := m.Visit(func(region *Region) bool {
		regions = append(regions, *region)
		return true
	})
	if err != nil {
		return nil, err
	}
	return regions, nil
}

// Encode packs the supplied regions into a Map, appending the terminating
// record.
func Encode(regions []Region) Map {
	m := make(Map, (len(regions)+1)*EntrySize)
	for i, region := range regions {
		offset := i * EntrySize
		binary.LittleEndian.PutUint64(m[offset:], region.Base)
		binary.LittleEndian.PutUint64(m[offset+8:], region.Size)
		binary.LittleEndian.PutUint32(m[offset+16:], uint32(region.Type))
	}
	return m
}
