package vmm

import (
	"bootos/kernel/mem"
	"testing"
)

func TestTranslateBootTables(t *testing.T) {
	tableAt, _ := mockScratchArena()
	tables := ScratchBootTables(tableAt)
	BuildBootTables(&tables)

	specs := []struct {
		virtAddr    uintptr
		expPhysAddr uintptr
		expErr      bool
	}{
		{0, 0, false},
		{0x1234, 0x1234, false},
		{0x3fffff, 0x3fffff, false},
		{mem.PageOffset, 0, false},
		{mem.PageOffset + 0x100000, 0x100000, false},
		{mem.PageOffset + 0x3fffff, 0x3fffff, false},
		{0x400000, 0, true},
		{mem.PageOffset + 0x400000, 0, true},
		{mem.PageOffset - 1, 0, true},
	}

	for specIndex, spec := range specs {
		physAddr, err := Translate(tables.Dir, tableAt, spec.virtAddr)
		switch {
		case spec.expErr && err != ErrInvalidMapping:
			t.Errorf("[spec %d] expected to get ErrInvalidMapping; got %v", specIndex, err)
		case !spec.expErr && err != nil:
			t.Errorf("[spec %d] unexpected error %v", specIndex, err)
		case !spec.expErr && physAddr != spec.expPhysAddr:
			t.Errorf("[spec %d] expected phys addr to be 0x%x; got 0x%x", specIndex, spec.expPhysAddr, physAddr)
		}
	}
}

func TestTranslateAliasesAgree(t *testing.T) {
	tableAt, _ := mockScratchArena()
	tables := ScratchBootTables(tableAt)
	BuildBootTables(&tables)

	for off := uintptr(0); off < uintptr(mem.IdentityMapSize); off += 0x1001 {
		low, err := Translate(tables.Dir, tableAt, off)
		if err != nil {
			t.Fatalf("unexpected error translating 0x%x: %v", off, err)
		}

		high, err := Translate(tables.Dir, tableAt, off+mem.PageOffset)
		if err != nil {
			t.Fatalf("unexpected error translating 0x%x: %v", off+mem.PageOffset, err)
		}

		if low != high || low != off {
			t.Fatalf("expected 0x%x and 0x%x to translate to 0x%x; got 0x%x and 0x%x", off, off+mem.PageOffset, off, low, high)
		}
	}
}

func TestTranslateHugePage(t *testing.T) {
	var dir PageDirectory
	dir[1].SetFlags(FlagPresent | FlagHugePage)

	if _, err := Translate(&dir, nil, 0x400000); err != errNoHugePageSupport {
		t.Fatalf("expected to get errNoHugePageSupport; got %v", err)
	}
}
