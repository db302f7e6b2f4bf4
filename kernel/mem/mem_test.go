package mem

import (
	"bytes"
	"strings"
	"testing"

	"buhos/kernel/cpu"
	"buhos/kernel/hal/e820"
	"buhos/kernel/mm"
	"buhos/kernel/mm/physmem"
	"buhos/kernel/mm/pmm"

	"github.com/stretchr/testify/require"
)

var testMemoryMap = []e820.Region{
	{Base: 0x0, Size: 0x9fc00, Type: e820.RegionAvailable},
	{Base: 0x9fc00, Size: 0x400, Type: e820.RegionReserved},
	{Base: 0xf0000, Size: 0x10000, Type: e820.RegionReserved},
	{Base: 0x100000, Size: 0x700000, Type: e820.RegionAvailable},
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	phys, err := physmem.New(8 * mm.Mb)
	require.Nil(t, err)
	t.Cleanup(func() { phys.Close() })

	var m Manager
	require.Nil(t, m.Init(phys, 0x800, e820.Encode(testMemoryMap)))
	return &m
}

func TestUninitializedManager(t *testing.T) {
	var m Manager

	_, err := m.AllocateFrames(1, 0, 0)
	require.Equal(t, errNotInitialized, err)

	_, err = m.Kalloc(16)
	require.Equal(t, errNotInitialized, err)

	require.Zero(t, m.ReleaseFrames(0x200000, 1))
	m.Kfree(0x101010)

	var buf bytes.Buffer
	m.Inspect(&buf)
	m.InspectAlloc(&buf)
	require.Zero(t, buf.Len())
}

func TestInitFailure(t *testing.T) {
	phys, err := physmem.New(mm.Mb)
	require.Nil(t, err)
	defer phys.Close()

	// The bitmap address lies outside the only available region.
	memMap := e820.Encode([]e820.Region{
		{Base: 0x0, Size: 0x9fc00, Type: e820.RegionAvailable},
	})

	var m Manager
	require.NotNil(t, m.Init(phys, 0x800, memMap))
	require.Nil(t, m.Heap())

	_, err = m.Kalloc(16)
	require.Equal(t, errNotInitialized, err)
}

func TestManager(t *testing.T) {
	m := newTestManager(t)
	require.Equal(t, uintptr(0x800), m.GDTBase())
	require.NotNil(t, m.Heap())

	t.Run("frames", func(t *testing.T) {
		addr, err := m.AllocateFrames(1, mm.KernelStackFrame, mm.KernelStackFrame+1)
		require.Nil(t, err)
		require.Equal(t, mm.KernelStackFrame.Address(), addr)

		_, err = m.AllocateFrames(1, mm.KernelStackFrame, mm.KernelStackFrame+1)
		require.Equal(t, pmm.ErrOutOfMemory, err)

		require.Equal(t, uint32(1), m.ReleaseFrames(addr, 1))
		require.Equal(t, pmm.FrameFree, m.Frames().Entry(mm.KernelStackFrame))
	})

	t.Run("kalloc", func(t *testing.T) {
		ptr, err := m.Kalloc(100)
		require.Nil(t, err)
		require.Equal(t, uintptr(0x101010), ptr)
		require.Equal(t, pmm.FrameUsed, m.Frames().Entry(257))

		var buf bytes.Buffer
		m.InspectAlloc(&buf)
		require.Equal(t, 3, strings.Count(buf.String(), "\n"))

		m.Kfree(ptr)
		again, err := m.Kalloc(100)
		require.Nil(t, err)
		require.Equal(t, ptr, again)
		m.Kfree(again)
	})

	t.Run("inspect", func(t *testing.T) {
		var buf bytes.Buffer
		m.Inspect(&buf)

		exp := "[0,256] = reserved\n" +
			"[257,257] = used\n" +
			"[258,2047] = free\n"
		require.Equal(t, exp, buf.String())
	})
}

func TestEnableIRQGuard(t *testing.T) {
	m := newTestManager(t)
	m.EnableIRQGuard()

	cpu.EnableInterrupts()
	defer cpu.DisableInterrupts()

	ptr, err := m.Kalloc(64)
	require.Nil(t, err)
	require.True(t, cpu.InterruptsEnabled(), "expected the interrupt flag to be restored")

	m.Kfree(ptr)
	require.True(t, cpu.InterruptsEnabled())
}
