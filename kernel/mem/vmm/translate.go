package vmm

import "bootos/kernel"

var errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}

// Translate returns the physical address that corresponds to the supplied
// virtual address when dir is the active page directory. It returns
// ErrInvalidMapping if any level of the walk hits a non-present entry.
//
// Translate performs the same walk as the MMU in software; it is used for
// diagnostics and by the boot simulator.
func Translate(dir *PageDirectory, tableAt TableAtFn, virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := pteForAddress(dir, tableAt, virtAddr)
	if err != nil {
		return 0, err
	}

	// Calculate the physical address by taking the physical frame address and
	// appending the offset from the virtual address
	physAddr := pte.Frame().Address() + PageOffset(virtAddr)
	return physAddr, nil
}

// pteForAddress returns the final page table entry that correspond to a
// particular virtual address.
func pteForAddress(dir *PageDirectory, tableAt TableAtFn, virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *pageTableEntry
	)

	walk(dir, tableAt, virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			entry = nil
			err = ErrInvalidMapping
			return false
		}

		if pteLevel < pageLevels-1 && pte.HasFlags(FlagHugePage) {
			entry = nil
			err = errNoHugePageSupport
			return false
		}

		entry = pte
		return true
	})

	return entry, err
}
