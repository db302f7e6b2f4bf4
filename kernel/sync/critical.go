package sync

import "buhos/kernel/cpu"

// CriticalSection is implemented by objects that can protect an allocator
// entry point from re-entrant execution. Enter returns the state that must be
// passed to the matching Leave call.
type CriticalSection interface {
	Enter() cpu.Flags
	Leave(cpu.Flags)
}

// NopCriticalSection performs no synchronization. Allocator calls are only
// safe before interrupts are enabled or outside interrupt handlers.
type NopCriticalSection struct{}

// Enter implements CriticalSection.
func (NopCriticalSection) Enter() cpu.Flags { return 0 }

// Leave implements CriticalSection.
func (NopCriticalSection) Leave(cpu.Flags) {}

// IRQGuard masks interrupts for the duration of the critical section and
// serializes callers with a spinlock. Interrupt state is restored on Leave so
// guards nest correctly when the caller already runs with interrupts off.
type IRQGuard struct {
	lock Spinlock
}

// Enter implements CriticalSection.
func (g *IRQGuard) Enter() cpu.Flags {
	flags := cpu.SaveAndDisableInterrupts()
	g.lock.Acquire()
	return flags
}

// Leave implements CriticalSection.
func (g *IRQGuard) Leave(flags cpu.Flags) {
	g.lock.Release()
	cpu.RestoreInterrupts(flags)
}
