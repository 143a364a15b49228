package vmm

// PageTable is a page-aligned array of entries that map 4K pages. An
// instance always overlays a physical frame; it is never allocated on the Go
// heap by kernel code.
type PageTable [EntriesPerTable]pageTableEntry

// PageDirectory is the top-level paging structure. Its physical address is
// what gets loaded into CR3. It has the same layout as a PageTable so a
// *PageTable overlaying a frame can be converted to a *PageDirectory.
type PageDirectory [EntriesPerTable]pageTableEntry

// Entry returns the raw value of the entry at index.
func (t *PageTable) Entry(index int) uint32 {
	return uint32(t[index])
}

// Entry returns the raw value of the entry at index.
func (d *PageDirectory) Entry(index int) uint32 {
	return uint32(d[index])
}

// DirectoryIndex returns the page directory index that covers virtAddr.
func DirectoryIndex(virtAddr uintptr) int {
	return int((virtAddr >> pageLevelShifts[0]) & ((1 << pageLevelBits[0]) - 1))
}

// TableIndex returns the page table index that covers virtAddr.
func TableIndex(virtAddr uintptr) int {
	return int((virtAddr >> pageLevelShifts[1]) & ((1 << pageLevelBits[1]) - 1))
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return (virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1))
}
