package main

import (
	"fmt"
	"io"

	"buhos/kernel/kfmt"
	"buhos/kernel/mem"
	"buhos/kernel/mm"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <machine.yaml>",
		Short: "Boot a machine and replay its allocation script",
		Long: `The run command boots the machine and executes the steps listed in the
script section of the machine file. Supported operations:

  kalloc         allocate bytes bytes from the kernel heap
  kfree          free a named heap allocation
  frames         allocate count frames in [first, last)
  release        release count frames of a named frame allocation
  inspect        dump the frame bitmap
  inspect-alloc  dump the kernel heap entry list

Example:
  memsim run testdata/small.yaml
  memsim run testdata/small.yaml --irq-safe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.OutOrStdout(), args)
		},
	}
	return cmd
}

// Step is a single script operation. Allocation results are remembered
// under Name so later steps can refer to them.
type Step struct {
	Op    string `yaml:"op"`
	Name  string `yaml:"name"`
	Bytes uint32 `yaml:"bytes"`
	Count uint32 `yaml:"count"`
	First uint32 `yaml:"first"`
	Last  uint32 `yaml:"last"`
}

func runScript(out io.Writer, args []string) error {
	machine, err := loadMachine(args[0])
	if err != nil {
		return err
	}

	m, shutdown, err := bootMachine(machine, out)
	if err != nil {
		return err
	}
	defer shutdown()

	names := make(map[string]uintptr)
	for index, step := range machine.Script {
		logger.Debug("executing step", "index", index, "op", step.Op, "name", step.Name)
		if err := execStep(out, m, names, step); err != nil {
			return fmt.Errorf("step %d: %w", index, err)
		}
	}

	printSummary(out, m)
	return nil
}

func execStep(out io.Writer, m *mem.Manager, names map[string]uintptr, step Step) error {
	switch step.Op {
	case "kalloc":
		ptr, err := m.Kalloc(step.Bytes)
		if err != nil {
			fmt.Fprintf(out, "kalloc(%d) failed: %s\n", step.Bytes, err.String())
			return nil
		}
		fmt.Fprintf(out, "kalloc(%d) = 0x%08x\n", step.Bytes, ptr)
		remember(names, step.Name, ptr)
	case "kfree":
		ptr, err := lookup(names, step.Name)
		if err != nil {
			return err
		}
		m.Kfree(ptr)
		fmt.Fprintf(out, "kfree(0x%08x)\n", ptr)
		delete(names, step.Name)
	case "frames":
		addr, err := m.AllocateFrames(step.Count, mm.Frame(step.First), mm.Frame(step.Last))
		if err != nil {
			fmt.Fprintf(out, "allocate_frames(%d, %d, %d) failed: %s\n", step.Count, step.First, step.Last, err.String())
			return nil
		}
		fmt.Fprintf(out, "allocate_frames(%d, %d, %d) = 0x%08x\n", step.Count, step.First, step.Last, addr)
		remember(names, step.Name, addr)
	case "release":
		addr, err := lookup(names, step.Name)
		if err != nil {
			return err
		}
		released := m.ReleaseFrames(addr, step.Count)
		fmt.Fprintf(out, "release_frames(0x%08x, %d) = %d released\n", addr, step.Count, released)
	case "inspect":
		fmt.Fprintln(out, "frame bitmap:")
		m.Inspect(&kfmt.PrefixWriter{Sink: out, Prefix: []byte("  ")})
	case "inspect-alloc":
		fmt.Fprintln(out, "heap entries:")
		m.InspectAlloc(&kfmt.PrefixWriter{Sink: out, Prefix: []byte("  ")})
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func remember(names map[string]uintptr, name string, addr uintptr) {
	if name != "" {
		names[name] = addr
	}
}

func lookup(names map[string]uintptr, name string) (uintptr, error) {
	addr, ok := names[name]
	if !ok {
		return 0, fmt.Errorf("no allocation named %q", name)
	}
	return addr, nil
}
