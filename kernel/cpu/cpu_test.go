package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterruptFlag(t *testing.T) {
	defer DisableInterrupts()

	DisableInterrupts()
	require.False(t, InterruptsEnabled())

	EnableInterrupts()
	require.True(t, InterruptsEnabled())

	t.Run("save and restore", func(t *testing.T) {
		EnableInterrupts()
		saved := SaveAndDisableInterrupts()
		require.Equal(t, FlagInterruptsEnabled, saved)
		require.False(t, InterruptsEnabled())

		// nested sections keep the outer state
		inner := SaveAndDisableInterrupts()
		require.Equal(t, Flags(0), inner)
		RestoreInterrupts(inner)
		require.False(t, InterruptsEnabled())

		RestoreInterrupts(saved)
		require.True(t, InterruptsEnabled())
	})
}

func TestHalt(t *testing.T) {
	var haltCalled bool
	prev := SetHaltHandler(func() { haltCalled = true })
	defer SetHaltHandler(prev)

	EnableInterrupts()
	Halt()

	require.True(t, haltCalled, "expected Halt to invoke the registered handler")
	require.False(t, InterruptsEnabled(), "expected Halt to disable interrupts")
}
