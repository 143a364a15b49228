// Package config loads the platform description used by the boot simulator.
package config

import (
	"bootos/kernel/hal/multiboot"
	"bootos/kernel/mem"
	"bootos/kernel/mem/pmm"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// maxMemoryMb bounds the simulated RAM; it is backed by a Go byte slice.
const maxMemoryMb = 512

var (
	ErrMemorySize   = errors.New("invalid memory size")
	ErrBootInfo     = errors.New("invalid boot info address")
	ErrKernelBounds = errors.New("invalid kernel bounds")
	ErrStack        = errors.New("invalid kernel stack")
	ErrRegion       = errors.New("invalid memory region")
)

// Config describes the simulated platform.
type Config struct {
	Memory MemoryConfig `yaml:"memory"`
	Kernel KernelConfig `yaml:"kernel"`
	Boot   BootConfig   `yaml:"boot"`
	Demo   DemoConfig   `yaml:"demo"`
}

// MemoryConfig describes physical memory and the bootloader memory map.
type MemoryConfig struct {
	SizeMb  uint32         `yaml:"size_mb"`
	Regions []RegionConfig `yaml:"regions"`
}

// RegionConfig is a single memory map entry. Type uses the multiboot
// encoding: 1 available, 2 reserved, 3 ACPI reclaimable, 4 NVS.
type RegionConfig struct {
	Base   uint64 `yaml:"base"`
	Length uint64 `yaml:"length"`
	Type   uint32 `yaml:"type"`
}

// KernelConfig holds the (higher-half) virtual layout of the kernel image.
type KernelConfig struct {
	Start     uint32 `yaml:"start"`
	End       uint32 `yaml:"end"`
	StackBase uint32 `yaml:"stack_base"`
}

// BootConfig holds the values the bootloader hands to the kernel.
type BootConfig struct {
	InfoAddr uint32 `yaml:"info_addr"`
	Magic    uint32 `yaml:"magic"`
	TickRate uint32 `yaml:"tick_rate"`
}

// DemoConfig bounds the scheduler demo.
type DemoConfig struct {
	Rounds int `yaml:"rounds"`
}

// Default returns the configuration of a 32 MiB PC with the kernel loaded at
// 1 MiB.
func Default() *Config {
	return &Config{
		Memory: MemoryConfig{SizeMb: 32},
		Kernel: KernelConfig{
			Start:     0xC0100000,
			End:       0xC010A400,
			StackBase: 0xC0110000,
		},
		Boot: BootConfig{
			InfoAddr: 0x9500,
			Magic:    multiboot.Magic,
			TickRate: 200,
		},
		Demo: DemoConfig{Rounds: 8},
	}
}

// Load returns the default configuration overlaid with the YAML file at path.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MemoryBytes returns the size of simulated RAM.
func (c *Config) MemoryBytes() uint64 {
	return uint64(c.Memory.SizeMb) * uint64(mem.Mb)
}

// MemoryMap returns the configured memory map or, if none is configured, the
// map a PC BIOS typically reports: conventional memory below the EBDA, the
// BIOS area and everything above 1 MiB.
func (c *Config) MemoryMap() []RegionConfig {
	if len(c.Memory.Regions) != 0 {
		return c.Memory.Regions
	}

	return []RegionConfig{
		{Base: 0, Length: 0x9FC00, Type: uint32(multiboot.MemAvailable)},
		{Base: 0x9FC00, Length: 0x400, Type: uint32(multiboot.MemReserved)},
		{Base: 0xF0000, Length: 0x10000, Type: uint32(multiboot.MemReserved)},
		{Base: 0x100000, Length: c.MemoryBytes() - 0x100000, Type: uint32(multiboot.MemAvailable)},
	}
}

// Stack returns the kernel stack region.
func (c *Config) Stack() mem.StackRegion {
	return mem.StackRegion{Base: uintptr(c.Kernel.StackBase), Size: mem.KernelStackSize}
}

// Validate checks that the layout can be booted: the boot info must sit in
// low memory clear of the scratch arena, and the kernel image and stack
// must fall inside the higher-half alias of the first 4 MiB.
func (c *Config) Validate() error {
	if c.Memory.SizeMb < uint32(mem.IdentityMapSize/mem.Mb) || c.Memory.SizeMb > maxMemoryMb {
		return fmt.Errorf("%w: %d MiB", ErrMemorySize, c.Memory.SizeMb)
	}

	scratchEnd := uint32(pmm.ScratchFrameCount.Frame().Address())
	if c.Boot.InfoAddr < scratchEnd || uint64(c.Boot.InfoAddr) >= uint64(mem.LowMemoryLimit) {
		return fmt.Errorf("%w: 0x%x", ErrBootInfo, c.Boot.InfoAddr)
	}

	aliasStart := uint64(mem.PageOffset)
	aliasEnd := aliasStart + uint64(mem.IdentityMapSize)

	if c.Kernel.End < c.Kernel.Start || uint64(c.Kernel.Start) < aliasStart || uint64(c.Kernel.End) > aliasEnd {
		return fmt.Errorf("%w: [0x%x, 0x%x)", ErrKernelBounds, c.Kernel.Start, c.Kernel.End)
	}

	stackEnd := uint64(c.Kernel.StackBase) + uint64(mem.KernelStackSize)
	if uint64(c.Kernel.StackBase) < aliasStart || stackEnd > aliasEnd {
		return fmt.Errorf("%w: base 0x%x", ErrStack, c.Kernel.StackBase)
	}

	for i, r := range c.Memory.Regions {
		if r.Length == 0 || r.Base+r.Length > c.MemoryBytes() {
			return fmt.Errorf("%w: entry %d [0x%x, 0x%x)", ErrRegion, i, r.Base, r.Base+r.Length)
		}
	}

	return nil
}
