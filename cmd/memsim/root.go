package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	irqSafe bool
)

var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "Simulate the buhos memory subsystem",
	Long: `memsim boots the buhos frame allocator and kernel heap on a synthetic
machine described by a BIOS memory map. It can print the ingested map, report
the state right after boot or replay an allocation script and dump the frame
bitmap and heap entry list along the way.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(verbose, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().
		BoolVar(&irqSafe, "irq-safe", false, "Guard allocator entry points with interrupts disabled")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
