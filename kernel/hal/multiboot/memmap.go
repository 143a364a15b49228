package multiboot

import (
	"bootos/kernel"
	"encoding/binary"
)

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown will be mapped to MemReserved.
	memUnknown
)

// MemRegionVisitor defies a visitor function that gets invoked by VisitMemRegions
// for each memory region provided by the boot loader. The visitor must return true
// to continue or false to abort the scan.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// VisitMemRegions invokes the supplied visitor for each memory region listed
// in the memory map of info. The map address stored in info is physical; it
// is converted to ptr's epoch before being read. An error is returned if the
// bootloader did not provide a memory map or an entry is truncated.
func VisitMemRegions(ptr InfoPtr, info *Info, read MemReader, visitor MemRegionVisitor) *kernel.Error {
	if !info.HasFlags(FlagMemMap) {
		return errNoMemoryInfo
	}

	var (
		entry  MemoryMapEntry
		mmap   = read(ptr.Translate(uintptr(info.MmapAddr)), info.MmapLength)
		le     = binary.LittleEndian
		curOff uint32
	)

	if uint32(len(mmap)) < info.MmapLength {
		return errShortMemMap
	}

	for curOff < info.MmapLength {
		if info.MmapLength-curOff < 4 {
			return errShortMemMap
		}

		// The size field does not include itself.
		entrySize := le.Uint32(mmap[curOff:])
		if entrySize < mmapEntryMinSize || info.MmapLength-curOff-4 < entrySize {
			return errShortMemMap
		}

		raw := mmap[curOff+4:]
		entry.PhysAddress = le.Uint64(raw[0:])
		entry.Length = le.Uint64(raw[8:])
		entry.Type = MemoryEntryType(le.Uint32(raw[16:]))

		// Mark unknown entry types as reserved
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return nil
		}

		curOff += entrySize + 4
	}

	return nil
}
