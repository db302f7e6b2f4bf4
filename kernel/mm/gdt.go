package mm

// Segment descriptor offsets inside the GDT. The boot stage installs the
// NULL and kernel segments; the remaining slots are reserved for the user
// segments and the TSS.
const (
	GDTNullSegment       = 0x00
	GDTKernelCodeSegment = 0x08
	GDTKernelDataSegment = 0x10
	GDTUserCodeSegment   = 0x18
	GDTUserDataSegment   = 0x20
	GDTTSS               = 0x28
)

// Requested privilege levels.
const (
	RPLKernel = 0x00
	RPLUser   = 0x03
)

// SegmentSelector builds a segment selector for the descriptor at offset seg
// with the given requested privilege level.
func SegmentSelector(seg, rpl uint16) uint16 {
	return seg | rpl
}
