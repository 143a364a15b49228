package multiboot

import "bootos/kernel"

// Epoch identifies the addressing mode in which an InfoPtr may be
// dereferenced.
type Epoch uint8

const (
	// EpochPhysical pointers are valid while paging is disabled.
	EpochPhysical Epoch = iota

	// EpochVirtual pointers are valid once paging is enabled and the
	// higher-half alias is in place.
	EpochVirtual
)

var errAlreadyRelocated = &kernel.Error{Module: "multiboot", Message: "info pointer already relocated"}

// InfoPtr is the address of the multiboot info structure together with the
// epoch it belongs to. The bootloader supplies a physical address; after the
// switch to the higher half the pointer must be relocated exactly once.
type InfoPtr struct {
	addr   uintptr
	offset uintptr
	epoch  Epoch
}

// PhysicalInfoPtr wraps the physical address supplied by the bootloader.
func PhysicalInfoPtr(physAddr uintptr) InfoPtr {
	return InfoPtr{addr: physAddr, epoch: EpochPhysical}
}

// Address returns the pointer value for the pointer's epoch.
func (p InfoPtr) Address() uintptr {
	return p.addr
}

// Epoch returns the addressing mode the pointer is valid in.
func (p InfoPtr) Epoch() Epoch {
	return p.epoch
}

// Relocate returns the virtual-epoch copy of a physical pointer, namely the
// pointer advanced by offset. Relocating a pointer twice is an error and
// leaves the pointer unchanged.
func (p InfoPtr) Relocate(offset uintptr) (InfoPtr, *kernel.Error) {
	if p.epoch != EpochPhysical {
		return p, errAlreadyRelocated
	}

	return InfoPtr{addr: p.addr + offset, offset: offset, epoch: EpochVirtual}, nil
}

// Translate converts a physical address found inside the info structure
// (e.g. the memory map address) to the pointer's epoch.
func (p InfoPtr) Translate(physAddr uintptr) uintptr {
	return physAddr + p.offset
}

// String implements fmt.Stringer for Epoch.
func (e Epoch) String() string {
	switch e {
	case EpochPhysical:
		return "physical"
	case EpochVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}
