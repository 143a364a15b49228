package vmm

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments.  If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for the given virtual address starting at
// dir. It calls the suppplied walkFn with the entry that corresponds to each
// page table level. Tables below the directory are located via tableAt using
// the frame stored in the parent entry, so walkFn must abort the walk when it
// sees a non-present entry.
func walk(dir *PageDirectory, tableAt TableAtFn, virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level      uint8
		entryIndex uintptr
		table      = (*PageTable)(dir)
		pte        *pageTableEntry
	)

	for level = 0; level < pageLevels; level++ {
		// Extract the bits from virtual address that correspond to the
		// index in this level's page table
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		pte = &table[entryIndex]

		if !walkFn(level, pte) {
			return
		}

		if level < pageLevels-1 {
			table = tableAt(pte.Frame())
		}
	}
}
