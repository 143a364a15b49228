package multiboot

import "unsafe"

// DirectReader is a MemReader that dereferences addresses in the currently
// active address space. It is the reader used by the kernel itself.
func DirectReader(addr uintptr, size uint32) []byte {
	if size == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}
