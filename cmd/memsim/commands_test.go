package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"buhos/kernel"
	"buhos/kernel/mm"
	"buhos/kernel/mm/physmem"

	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Reset flags
	verbose = false
	irqSafe = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}

func writeMachine(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestBootCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     error
		wantContain []string
	}{
		{
			name: "default machine",
			args: []string{"boot"},
			wantContain: []string{
				"[pmm] system memory map:",
				"[pmm] total frames: 32768, bitmap at 0x100000 (8192 bytes)",
				"[kmain] kernel stack frame 767 reserved, stack top at 0x300000",
				"frames: 32,768 total, 32,477 free, 1 used, 290 reserved",
				"heap: 0 used entries (0 bytes), 0 free entries (0 bytes)",
			},
		},
		{
			name: "machine file with irq guards",
			args: []string{"boot", "testdata/small.yaml", "--irq-safe", "--verbose"},
			wantContain: []string{
				"[pmm] available memory: 7807Kb",
				"frames: 2,048 total, 1,790 free, 1 used, 257 reserved",
				"enabling allocator IRQ guards",
			},
		},
		{
			name:    "bitmap cannot be placed",
			args:    []string{"boot", "testdata/no_bitmap.yaml"},
			wantErr: errHalted,
			wantContain: []string{
				"[pmm] unrecoverable error: no available memory region can hold the frame bitmap",
				"*** kernel panic: system halted ***",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runCommand(t, tt.args...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestBootPhysMemFailure(t *testing.T) {
	defer func() {
		newPhysMemFn = physmem.New
	}()

	expErr := &kernel.Error{Module: "test", Message: "mmap failed"}
	newPhysMemFn = func(_ mm.Size) (*physmem.Memory, *kernel.Error) {
		return nil, expErr
	}

	_, err := runCommand(t, "boot")
	require.Equal(t, expErr, err)
}

func TestRunCommand(t *testing.T) {
	output, err := runCommand(t, "run", "testdata/small.yaml")
	require.NoError(t, err)

	assertContains(t, output, []string{
		"kalloc(100) = 0x00101010\n",
		"kalloc(5000) = 0x00102010\n",
		"kfree(0x00101010)\n",
		"allocate_frames(4, 768, 0) = 0x00300000\n",
		"release_frames(0x00300000, 4) = 4 released\n",
		"frame bitmap:\n" +
			"  [0,256] = reserved\n" +
			"  [257,259] = used\n" +
			"  [260,766] = free\n" +
			"  [767,767] = used\n" +
			"  [768,2047] = free\n",
		"heap entries:\n" +
			"  entry 0x00000000 { flags: null, size: 0, prev: 0x00000000, next: 0x00101000 }\n" +
			"  entry 0x00101000 { flags: free, size: 255, prev: 0x00000000, next: 0x00102000 }\n" +
			"  entry 0x00102000 { flags: used, size: 313, prev: 0x00101000, next: 0x001033a0 }\n" +
			"  entry 0x001033a0 { flags: free, size: 197, prev: 0x00102000, next: 0x00000000 }\n",
		"frames: 2,048 total, 1,787 free, 4 used, 257 reserved\n",
		"heap: 1 used entries (5,008 bytes), 2 free entries (7,232 bytes)\n",
	})
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		machine string
		wantErr string
	}{
		{
			name:    "unknown allocation name",
			machine: "testdata/bad_op.yaml",
			wantErr: `step 1: no allocation named "missing"`,
		},
		{
			name: "unknown op",
			machine: writeMachine(t, `
memory_map:
  - {base: 0x0, size: 0x9fc00, type: available}
  - {base: 0x100000, size: 0x700000, type: available}
script:
  - {op: defrag}
`),
			wantErr: `step 0: unknown op "defrag"`,
		},
		{
			name:    "empty memory map",
			machine: writeMachine(t, "gdt_base: 0x800\n"),
			wantErr: errEmptyMemoryMap.Error(),
		},
		{
			name:    "missing machine file",
			machine: filepath.Join(t.TempDir(), "missing.yaml"),
			wantErr: "failed to read machine file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, "run", tt.machine)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunCommandOutOfMemory(t *testing.T) {
	path := writeMachine(t, `
memory_map:
  - {base: 0x0, size: 0x9fc00, type: available}
  - {base: 0x100000, size: 0x700000, type: available}
script:
  - {op: kalloc, bytes: 4194304}
  - {op: frames, count: 4096}
`)

	output, err := runCommand(t, "run", path)
	require.NoError(t, err)
	assertContains(t, output, []string{
		"kalloc(4194304) failed: [kheap] out of memory\n",
		"allocate_frames(4096, 0, 0) failed: [pmm] out of memory\n",
	})
}

func TestMapCommand(t *testing.T) {
	output, err := runCommand(t, "map", "testdata/small.yaml")
	require.NoError(t, err)
	assertContains(t, output, []string{
		"0x0000000000 - 0x000009fc00",
		"654,336 bytes  available",
		"0x00000f0000 - 0x0000100000",
		"65,536 bytes  reserved",
		"available: 7,807 Kb, total frames: 2,048\n",
	})

	t.Run("unknown region types are reserved", func(t *testing.T) {
		path := writeMachine(t, `
memory_map:
  - {base: 0x0, size: 0x1000, type: 9}
`)
		output, err := runCommand(t, "map", path)
		require.NoError(t, err)
		assertContains(t, output, []string{"4,096 bytes  reserved"})
	})
}
