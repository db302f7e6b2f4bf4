package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"buhos/kernel/hal/e820"
	"buhos/kernel/mm"

	"gopkg.in/yaml.v3"
)

// Machine describes a synthetic machine: the BIOS memory map handed to the
// kernel, the GDT base and an optional allocation script.
type Machine struct {
	MemoryMap []RegionSpec `yaml:"memory_map"`
	GDTBase   uint64       `yaml:"gdt_base"`
	Script    []Step       `yaml:"script"`
}

// RegionSpec is a memory map entry as written in a machine file.
type RegionSpec struct {
	Base uint64     `yaml:"base"`
	Size uint64     `yaml:"size"`
	Type regionType `yaml:"type"`
}

// regionType accepts either a region type name or its BIOS number.
type regionType e820.RegionType

func (t *regionType) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}

	switch strings.ToLower(name) {
	case "available":
		*t = regionType(e820.RegionAvailable)
	case "reserved":
		*t = regionType(e820.RegionReserved)
	case "acpi-reclaim":
		*t = regionType(e820.RegionACPIReclaim)
	case "acpi-nvs":
		*t = regionType(e820.RegionACPINVS)
	default:
		v, err := strconv.ParseUint(name, 0, 32)
		if err != nil {
			return fmt.Errorf("line %d: unknown region type %q", value.Line, name)
		}
		*t = regionType(v)
	}
	return nil
}

var (
	errEmptyMemoryMap = errors.New("machine has an empty memory map")
	errEmptyRegion    = errors.New("memory map regions must have a non-zero size")
)

// defaultMachine mirrors the memory map reported by a 128M qemu guest.
func defaultMachine() *Machine {
	return &Machine{
		GDTBase: 0x800,
		MemoryMap: []RegionSpec{
			{Base: 0x0, Size: 0x9fc00, Type: regionType(e820.RegionAvailable)},
			{Base: 0x9fc00, Size: 0x400, Type: regionType(e820.RegionReserved)},
			{Base: 0xf0000, Size: 0x10000, Type: regionType(e820.RegionReserved)},
			{Base: 0x100000, Size: 0x7ee0000, Type: regionType(e820.RegionAvailable)},
			{Base: 0x7fe0000, Size: 0x20000, Type: regionType(e820.RegionReserved)},
		},
	}
}

// loadMachine parses the machine file at path. An empty path selects the
// default machine.
func loadMachine(path string) (*Machine, error) {
	if path == "" {
		return defaultMachine(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read machine file: %w", err)
	}

	var machine Machine
	if err := yaml.Unmarshal(data, &machine); err != nil {
		return nil, fmt.Errorf("failed to parse machine file: %w", err)
	}

	if err := machine.validate(); err != nil {
		return nil, err
	}
	return &machine, nil
}

func (m *Machine) validate() error {
	if len(m.MemoryMap) == 0 {
		return errEmptyMemoryMap
	}

	for _, region := range m.MemoryMap {
		if region.Size == 0 {
			return errEmptyRegion
		}
	}
	return nil
}

// Regions returns the memory map in the form consumed by the kernel.
func (m *Machine) Regions() []e820.Region {
	regions := make([]e820.Region, 0, len(m.MemoryMap))
	for _, spec := range m.MemoryMap {
		regions = append(regions, e820.Region{
			Base: spec.Base,
			Size: spec.Size,
			Type: e820.RegionType(spec.Type),
		})
	}
	return regions
}

// PhysSize returns the amount of simulated RAM needed to back every region,
// rounded up to a whole frame.
func (m *Machine) PhysSize() mm.Size {
	var maxAddr uint64
	for _, region := range m.Regions() {
		if end := region.End(); end > maxAddr {
			maxAddr = end
		}
	}
	return mm.Size(maxAddr+uint64(mm.FrameSize)-1) &^ (mm.FrameSize - 1)
}
