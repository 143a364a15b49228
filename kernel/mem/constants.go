package mem

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// PageOffset is the virtual address where the kernel's higher-half
	// alias of physical memory begins. Physical address p is visible at
	// p+PageOffset once paging is enabled.
	PageOffset = uintptr(0xC0000000)

	// IdentityMapSize is the amount of low physical memory covered by the
	// boot page tables, both at virtual address 0 and at PageOffset.
	IdentityMapSize = 4 * Mb

	// LowMemoryLimit is the end of conventional memory. The boot scratch
	// frames must live below it.
	LowMemoryLimit = 1 * Mb

	// KernelStackSize is the size of the statically reserved kernel stack.
	KernelStackSize = 16 * Kb

	// StackAlignment is the alignment of the initial kernel stack pointer.
	StackAlignment = 16
)
