package main

import (
	"testing"

	"buhos/kernel/hal/e820"
	"buhos/kernel/mm"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRegionTypeUnmarshal(t *testing.T) {
	specs := []struct {
		input   string
		exp     e820.RegionType
		wantErr bool
	}{
		{"available", e820.RegionAvailable, false},
		{"Reserved", e820.RegionReserved, false},
		{"acpi-reclaim", e820.RegionACPIReclaim, false},
		{"acpi-nvs", e820.RegionACPINVS, false},
		{"1", e820.RegionAvailable, false},
		{"0x4", e820.RegionACPINVS, false},
		{"bogus", 0, true},
	}

	for specIndex, spec := range specs {
		var region RegionSpec
		err := yaml.Unmarshal([]byte("{base: 0, size: 1, type: "+spec.input+"}"), &region)
		if spec.wantErr {
			require.Error(t, err, "spec %d", specIndex)
			continue
		}
		require.NoError(t, err, "spec %d", specIndex)
		require.Equal(t, spec.exp, e820.RegionType(region.Type), "spec %d", specIndex)
	}
}

func TestMachinePhysSize(t *testing.T) {
	m := &Machine{MemoryMap: []RegionSpec{
		{Base: 0x0, Size: 0x9fc00, Type: regionType(e820.RegionAvailable)},
		{Base: 0x100000, Size: 0x100001, Type: regionType(e820.RegionAvailable)},
	}}
	require.Equal(t, mm.Size(0x201000), m.PhysSize())

	require.Equal(t, 128*mm.Mb, defaultMachine().PhysSize())
}

func TestLoadMachine(t *testing.T) {
	m, err := loadMachine("testdata/small.yaml")
	require.NoError(t, err)
	require.Equal(t, uint64(0x800), m.GDTBase)
	require.Len(t, m.MemoryMap, 4)
	require.Len(t, m.Script, 7)
	require.Equal(t, Step{Op: "frames", Name: "f", Count: 4, First: 768}, m.Script[3])

	_, err = loadMachine(writeMachine(t, "memory_map:\n  - {base: 0x1000, size: 0, type: available}\n"))
	require.Equal(t, errEmptyRegion, err)

	_, err = loadMachine(writeMachine(t, "memory_map: [\n"))
	require.ErrorContains(t, err, "failed to parse machine file")
}
