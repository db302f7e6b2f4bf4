// Package cpu models the handful of processor controls the memory core
// depends on: the interrupt-enable flag and the halt instruction.
//
// The kernel runs on a single logical CPU. Hardware interrupts are the only
// source of re-entrancy, so the interrupt flag is the only piece of processor
// state shared between normal execution and interrupt handlers.
package cpu

import "sync/atomic"

// Flags holds a saved copy of the interrupt-enable state as returned by
// SaveAndDisableInterrupts.
type Flags uint32

const (
	// FlagInterruptsEnabled mirrors the IF bit of EFLAGS.
	FlagInterruptsEnabled Flags = 1 << 9
)

var (
	// eflags tracks the simulated EFLAGS register. Only IF is modelled.
	eflags uint32

	// haltFn is invoked by Halt. The default implementation parks the
	// calling goroutine forever which is the closest equivalent of a
	// cli/hlt loop.
	haltFn = func() { select {} }
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() {
	atomic.StoreUint32(&eflags, uint32(FlagInterruptsEnabled))
}

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() {
	atomic.StoreUint32(&eflags, 0)
}

// InterruptsEnabled returns true if the interrupt flag is set.
func InterruptsEnabled() bool {
	return Flags(atomic.LoadUint32(&eflags))&FlagInterruptsEnabled != 0
}

// SaveAndDisableInterrupts clears the interrupt flag and returns its previous
// value (pushf; cli).
func SaveAndDisableInterrupts() Flags {
	return Flags(atomic.SwapUint32(&eflags, 0))
}

// RestoreInterrupts restores an interrupt flag previously returned by
// SaveAndDisableInterrupts (popf).
func RestoreInterrupts(f Flags) {
	atomic.StoreUint32(&eflags, uint32(f&FlagInterruptsEnabled))
}

// SetHaltHandler replaces the function invoked by Halt and returns the
// previous one. Host-side machines use it to turn a halt into a process exit.
func SetHaltHandler(fn func()) func() {
	prev := haltFn
	haltFn = fn
	return prev
}

// Halt disables interrupts and stops instruction execution.
func Halt() {
	DisableInterrupts()
	haltFn()
}
