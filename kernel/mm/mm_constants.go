package mm

// Physical layout of the kernel address space. The kernel runs with flat
// segmentation and no paging so these addresses are physical.
//
//	------------------- 0xffffffff (4G)
//	|    USER SPACE   |
//	|-----------------| 0x00300000 (3M)
//	|  KERNEL STACK   |
//	|  KERNEL HEAP    |
//	|-----------------| 0x00100000 (1M)
//	|     UNUSED      |
//	|-----------------| 0x00001000 + sizeof(KERNEL_TEXT)
//	|   KERNEL TEXT   |
//	|-----------------| 0x00001000 (4K)
//	|    RESERVED     |
//	------------------- 0x00000000
const (
	// FrameShift is equal to log2(FrameSize). This constant is used when
	// we need to convert a physical address to a frame number (shift right
	// by FrameShift) and vice-versa.
	FrameShift = 12

	// FrameSize defines the size of a physical frame in bytes.
	FrameSize = Size(1 << FrameShift)

	// KernelHeapAddr is the start of the kernel heap. The frame bitmap is
	// stored at the very beginning of this region.
	KernelHeapAddr = uintptr(0x00100000)

	// KernelHeapSize is the combined size of the kernel heap and stack.
	KernelHeapSize = 2 * Mb

	// KernelFirstFrame is the first frame the kernel heap may use.
	KernelFirstFrame = Frame(KernelHeapAddr >> FrameShift)

	// KernelStackTop is the initial kernel stack pointer. The stack grows
	// down towards the heap.
	KernelStackTop = KernelHeapAddr + uintptr(KernelHeapSize)

	// KernelStackFrame is the frame that holds the top of the kernel stack.
	KernelStackFrame = Frame(KernelStackTop>>FrameShift) - 1

	// UserSpaceAddr is where user-space addressing begins.
	UserSpaceAddr = KernelHeapAddr + uintptr(KernelHeapSize)

	// UserFirstFrame is the first frame outside the kernel heap.
	UserFirstFrame = Frame(UserSpaceAddr >> FrameShift)
)
