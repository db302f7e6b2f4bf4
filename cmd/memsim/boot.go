package main

import (
	"errors"
	"io"

	"buhos/kernel/cpu"
	"buhos/kernel/hal/e820"
	"buhos/kernel/kfmt"
	"buhos/kernel/kmain"
	"buhos/kernel/mem"
	"buhos/kernel/mm/physmem"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// newPhysMemFn is mocked by tests.
	newPhysMemFn = physmem.New

	errHalted = errors.New("kernel halted during boot")
)

func init() {
	rootCmd.AddCommand(newBootCmd())
}

func newBootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot [machine.yaml]",
		Short: "Boot a machine and report the memory subsystem state",
		Long: `The boot command ingests the machine memory map, reserves the kernel
stack frame and prints the frame bitmap summary. Without a machine file a
128M qemu-like machine is used.

Example:
  memsim boot
  memsim boot testdata/small.yaml --verbose`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot(cmd.OutOrStdout(), args)
		},
	}
	return cmd
}

func runBoot(out io.Writer, args []string) error {
	machine, err := loadMachine(firstArg(args))
	if err != nil {
		return err
	}

	m, shutdown, err := bootMachine(machine, out)
	if err != nil {
		return err
	}
	defer shutdown()

	printSummary(out, m)
	return nil
}

// bootMachine runs the kernel boot sequence on a fresh simulated RAM. Kernel
// output goes to out. The returned function releases the simulated RAM.
func bootMachine(machine *Machine, out io.Writer) (*mem.Manager, func(), error) {
	kfmt.SetOutputSink(out)

	phys, kerr := newPhysMemFn(machine.PhysSize())
	if kerr != nil {
		return nil, nil, kerr
	}
	logger.Debug("simulated RAM ready", "size", uint64(phys.Size()), "regions", len(machine.MemoryMap))

	// A failed boot halts the CPU; return to the caller instead.
	prevHalt := cpu.SetHaltHandler(func() {})
	defer cpu.SetHaltHandler(prevHalt)

	m := kmain.Kmain(phys, uintptr(machine.GDTBase), e820.Encode(machine.Regions()))
	if m == nil {
		_ = phys.Close()
		return nil, nil, errHalted
	}

	if irqSafe {
		logger.Debug("enabling allocator IRQ guards")
		m.EnableIRQGuard()
	}

	return m, func() { _ = phys.Close() }, nil
}

// printSummary writes the frame and heap statistics to w.
func printSummary(w io.Writer, m *mem.Manager) {
	p := message.NewPrinter(language.English)

	frames := m.Frames().Stats()
	p.Fprintf(w, "frames: %d total, %d free, %d used, %d reserved\n",
		m.Frames().TotalFrames(), frames.Free, frames.Used, frames.Reserved+frames.Reserved2,
	)

	heap := m.Heap().Stats()
	p.Fprintf(w, "heap: %d used entries (%d bytes), %d free entries (%d bytes)\n",
		heap.UsedEntries, heap.UsedBytes, heap.FreeEntries, heap.FreeBytes,
	)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
