package main

import (
	"io"

	"buhos/kernel/hal/e820"
	"buhos/kernel/mm"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	rootCmd.AddCommand(newMapCmd())
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map [machine.yaml]",
		Short: "Print a machine memory map",
		Long: `The map command decodes the BIOS memory map exactly as the kernel sees
it and prints every region along with the resulting frame count.

Example:
  memsim map
  memsim map testdata/small.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd.OutOrStdout(), args)
		},
	}
	return cmd
}

func runMap(out io.Writer, args []string) error {
	machine, err := loadMachine(firstArg(args))
	if err != nil {
		return err
	}

	// Round-trip through the BIOS encoding so unknown types are reported
	// the way the kernel treats them.
	regions, kerr := e820.Encode(machine.Regions()).Regions()
	if kerr != nil {
		return kerr
	}

	p := message.NewPrinter(language.English)

	var available, maxAddr uint64
	for _, region := range regions {
		p.Fprintf(out, "0x%010x - 0x%010x %15d bytes  %s\n", region.Base, region.End(), region.Size, region.Type.String())

		if region.Type == e820.RegionAvailable {
			available += region.Size
		}
		if end := region.End(); end > maxAddr {
			maxAddr = end
		}
	}

	p.Fprintf(out, "available: %d Kb, total frames: %d\n", available/uint64(mm.Kb), maxAddr>>mm.FrameShift)
	return nil
}
