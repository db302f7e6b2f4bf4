package kmain

import (
	"buhos/kernel"
	"buhos/kernel/hal/e820"
	"buhos/kernel/kfmt"
	"buhos/kernel/mem"
	"buhos/kernel/mm"
	"buhos/kernel/mm/physmem"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errStackFrame = &kernel.Error{Module: "kmain", Message: "unable to reserve the kernel stack frame"}
)

// Kmain runs the memory part of the boot sequence. The boot code passes the
// physical memory, the GDT base it installed and the BIOS memory map.
//
// Kmain initializes the memory subsystem and reserves the frame that will
// hold the relocated kernel stack. Any failure halts the CPU; if the halt
// handler returns, Kmain returns nil.
func Kmain(phys *physmem.Memory, gdtBase uintptr, memMap e820.Map) *mem.Manager {
	var m mem.Manager
	if err := m.Init(phys, gdtBase, memMap); err != nil {
		panicFn(err)
		return nil
	}

	if _, err := m.AllocateFrames(1, mm.KernelStackFrame, mm.KernelStackFrame+1); err != nil {
		panicFn(errStackFrame)
		return nil
	}

	kfmt.Printf("[kmain] kernel stack frame %d reserved, stack top at 0x%x\n", uint32(mm.KernelStackFrame), mm.KernelStackTop)
	return &m
}
