package vmm

import (
	"bootos/kernel/mem"
	"bootos/kernel/mem/pmm"
)

// TableAtFn returns the PageTable that overlays a physical frame. Before
// paging is enabled (and while the low 4M stay identity-mapped) the frame's
// physical address can be dereferenced directly.
type TableAtFn func(frame pmm.Frame) *PageTable

// BootTables groups the paging structures that the boot code populates
// before paging is enabled: a page directory and two page tables which alias
// the same low physical memory at virtual address 0 and at mem.PageOffset.
type BootTables struct {
	Dir       *PageDirectory
	Low, High *PageTable

	DirFrame, LowFrame, HighFrame pmm.Frame
}

// ScratchBootTables returns a BootTables whose structures overlay the boot
// scratch arena.
func ScratchBootTables(tableAt TableAtFn) BootTables {
	var t BootTables

	t.DirFrame = pmm.ScratchPageDirectory.Frame()
	t.LowFrame = pmm.ScratchLowTable.Frame()
	t.HighFrame = pmm.ScratchHighTable.Frame()

	t.Dir = (*PageDirectory)(tableAt(t.DirFrame))
	t.Low = tableAt(t.LowFrame)
	t.High = tableAt(t.HighFrame)

	return t
}

// HighAliasIndex returns the directory index of the higher-half alias.
func HighAliasIndex() int {
	return DirectoryIndex(mem.PageOffset)
}

// BuildBootTables populates t so that virtual addresses [0, 4M) and
// [mem.PageOffset, mem.PageOffset+4M) both map to physical [0, 4M). Entry i
// of both page tables points to frame i with present+RW set. All directory
// entries other than the two aliases are cleared.
func BuildBootTables(t *BootTables) {
	var pte pageTableEntry

	for i := 0; i < EntriesPerTable; i++ {
		pte = 0
		pte.SetFrame(pmm.Frame(i))
		pte.SetFlags(FlagPresent | FlagRW)

		t.Low[i] = pte
		t.High[i] = pte
	}

	*t.Dir = PageDirectory{}

	pte = 0
	pte.SetFrame(t.LowFrame)
	pte.SetFlags(FlagPresent | FlagRW)
	t.Dir[0] = pte

	pte = 0
	pte.SetFrame(t.HighFrame)
	pte.SetFlags(FlagPresent | FlagRW)
	t.Dir[HighAliasIndex()] = pte
}
