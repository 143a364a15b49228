package multiboot

import "testing"

func TestInfoPtrRelocate(t *testing.T) {
	specs := []struct {
		phys, offset uintptr
	}{
		{0x9500, 0xC0000000},
		{0x10000, 0xC0000000},
		{0x2bad0, 0x80000000},
	}

	for specIndex, spec := range specs {
		ptr := PhysicalInfoPtr(spec.phys)
		if ptr.Epoch() != EpochPhysical {
			t.Errorf("[spec %d] expected a bootloader pointer to be physical; got %s", specIndex, ptr.Epoch())
		}

		virt, err := ptr.Relocate(spec.offset)
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		if exp := spec.phys + spec.offset; virt.Address() != exp {
			t.Errorf("[spec %d] expected relocated pointer to be exactly 0x%x; got 0x%x", specIndex, exp, virt.Address())
		}

		if virt.Epoch() != EpochVirtual {
			t.Errorf("[spec %d] expected relocated pointer to be virtual; got %s", specIndex, virt.Epoch())
		}

		if got := virt.Translate(0x1000); got != 0x1000+spec.offset {
			t.Errorf("[spec %d] expected Translate(0x1000) to return 0x%x; got 0x%x", specIndex, 0x1000+spec.offset, got)
		}

		if got := ptr.Translate(0x1000); got != 0x1000 {
			t.Errorf("[spec %d] expected physical Translate(0x1000) to return 0x1000; got 0x%x", specIndex, got)
		}

		again, err := virt.Relocate(spec.offset)
		if err != errAlreadyRelocated {
			t.Errorf("[spec %d] expected errAlreadyRelocated; got %v", specIndex, err)
		}

		if again != virt {
			t.Errorf("[spec %d] expected a rejected relocation to leave the pointer unchanged", specIndex)
		}
	}
}

func TestEpochString(t *testing.T) {
	if got := EpochPhysical.String(); got != "physical" {
		t.Errorf("expected %q; got %q", "physical", got)
	}

	if got := EpochVirtual.String(); got != "virtual" {
		t.Errorf("expected %q; got %q", "virtual", got)
	}

	if got := Epoch(9).String(); got != "unknown" {
		t.Errorf("expected %q; got %q", "unknown", got)
	}
}
