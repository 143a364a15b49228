package pmm

import (
	"bootos/kernel/mem"
	"testing"
)

func TestScratchFrames(t *testing.T) {
	specs := []struct {
		slot    ScratchFrame
		expAddr uintptr
		expName string
	}{
		{ScratchPageDirectory, 0x1000, "page directory"},
		{ScratchLowTable, 0x2000, "low table"},
		{ScratchHighTable, 0x3000, "high table"},
	}

	seen := make(map[Frame]bool)
	for specIndex, spec := range specs {
		if !spec.slot.Valid() {
			t.Errorf("[spec %d] expected slot %d to be valid", specIndex, spec.slot)
		}

		frame := spec.slot.Frame()
		if got := frame.Address(); got != spec.expAddr {
			t.Errorf("[spec %d] expected slot address to be 0x%x; got 0x%x", specIndex, spec.expAddr, got)
		}

		if got := frame.Address(); got%uintptr(mem.PageSize) != 0 || got >= uintptr(mem.LowMemoryLimit) {
			t.Errorf("[spec %d] expected slot address 0x%x to be page-aligned and below 1 MiB", specIndex, got)
		}

		if seen[frame] {
			t.Errorf("[spec %d] frame %d is used by more than one slot", specIndex, frame)
		}
		seen[frame] = true

		if got := spec.slot.String(); got != spec.expName {
			t.Errorf("[spec %d] expected slot name %q; got %q", specIndex, spec.expName, got)
		}
	}

	if ScratchFrameCount.Valid() {
		t.Error("expected ScratchFrameCount to be an invalid slot")
	}

	if got := ScratchFrameCount.String(); got != "invalid" {
		t.Errorf("expected out-of-range slot name to be %q; got %q", "invalid", got)
	}
}
