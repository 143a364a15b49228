package pmm

import "bootos/kernel/mem"

// ScratchFrame indexes the arena of physical frames that the boot code uses
// for its temporary page tables. Conventional memory below 640 KiB is free
// when the bootloader hands over control so the arena is placed right after
// the real-mode IVT page.
type ScratchFrame uint8

const (
	// ScratchPageDirectory holds the boot page directory.
	ScratchPageDirectory ScratchFrame = iota

	// ScratchLowTable holds the page table for the identity mapping.
	ScratchLowTable

	// ScratchHighTable holds the page table for the higher-half alias.
	ScratchHighTable

	// ScratchFrameCount is the number of frames in the arena.
	ScratchFrameCount
)

const (
	// scratchBaseFrame is the first frame of the arena (physical 0x1000).
	scratchBaseFrame = 1

	scratchEndAddr = (scratchBaseFrame + uintptr(ScratchFrameCount)) << mem.PageShift
)

// The arena must end below LowMemoryLimit; this constant expression fails to
// compile if it does not.
const _ uintptr = uintptr(mem.LowMemoryLimit) - scratchEndAddr

// Frame returns the physical frame backing this arena slot.
func (f ScratchFrame) Frame() Frame {
	return Frame(scratchBaseFrame + uintptr(f))
}

// Valid returns true if f indexes a slot inside the arena.
func (f ScratchFrame) Valid() bool {
	return f < ScratchFrameCount
}

// String implements fmt.Stringer for ScratchFrame.
func (f ScratchFrame) String() string {
	switch f {
	case ScratchPageDirectory:
		return "page directory"
	case ScratchLowTable:
		return "low table"
	case ScratchHighTable:
		return "high table"
	default:
		return "invalid"
	}
}
