package machine

import (
	"bootos/kernel/hal/multiboot"
	"encoding/binary"
	"fmt"
)

// mmapEntrySize is the size of a memory map entry without its size field.
const mmapEntrySize = 20

// Region is a bootloader memory map entry.
type Region struct {
	Base, Length uint64
	Type         multiboot.MemoryEntryType
}

// BootInfo is what the simulated bootloader places in memory before
// jumping to the kernel.
type BootInfo struct {
	// Addr is the physical address of the info structure. The memory
	// map is written right after it.
	Addr uintptr

	MemLowerKb, MemUpperKb uint32
	Regions                []Region
}

// LoadBootInfo writes a multiboot v1 info structure and its memory map into
// physical memory, the way a multiboot-compliant loader does.
func (m *Machine) LoadBootInfo(info BootInfo) error {
	var (
		le       = binary.LittleEndian
		mmapAddr = info.Addr + multiboot.InfoSize
		mmap     = make([]byte, 0, len(info.Regions)*(mmapEntrySize+4))
		raw      = make([]byte, multiboot.InfoSize)
		flags    = multiboot.FlagMemInfo
	)

	for _, r := range info.Regions {
		var entry [mmapEntrySize + 4]byte
		le.PutUint32(entry[0:], mmapEntrySize)
		le.PutUint64(entry[4:], r.Base)
		le.PutUint64(entry[12:], r.Length)
		le.PutUint32(entry[20:], uint32(r.Type))
		mmap = append(mmap, entry[:]...)
	}

	if len(info.Regions) != 0 {
		flags |= multiboot.FlagMemMap
	}

	le.PutUint32(raw[0:], uint32(flags))
	le.PutUint32(raw[4:], info.MemLowerKb)
	le.PutUint32(raw[8:], info.MemUpperKb)
	le.PutUint32(raw[44:], uint32(len(mmap)))
	le.PutUint32(raw[48:], uint32(mmapAddr))

	if err := m.WritePhys(info.Addr, raw); err != nil {
		return fmt.Errorf("failed to write boot info: %w", err)
	}
	if err := m.WritePhys(mmapAddr, mmap); err != nil {
		return fmt.Errorf("failed to write memory map: %w", err)
	}

	return nil
}
