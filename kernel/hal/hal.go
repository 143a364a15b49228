// Package hal isolates the privileged operations that move the kernel from
// physical addressing into its higher-half virtual address space. Everything
// that touches control registers or raw physical memory goes through a
// Machine so the boot sequence itself can run against a simulated machine.
package hal

import (
	"bootos/kernel/mem/pmm"
	"bootos/kernel/mem/vmm"
)

// Machine is the narrow hardware abstraction used by the boot code.
type Machine interface {
	// TableAt returns the page table overlaying a physical frame. It
	// may only be called while the frame is identity mapped.
	TableAt(frame pmm.Frame) *vmm.PageTable

	// LoadPageDirectory loads the physical address of a page directory
	// into the paging root register.
	LoadPageDirectory(pdtPhysAddr uintptr)

	// EnablePaging sets the paging-enable bit leaving every other
	// control bit untouched. There is no recovery if the active page
	// directory does not map the executing code.
	EnablePaging()

	// SwitchStack points the stack pointer at stackTop, resets the
	// frame-base register to zero and runs fn on the new stack. On real
	// hardware fn never returns.
	SwitchStack(stackTop uintptr, fn func())

	// EnableInterrupts unmasks interrupts.
	EnableInterrupts()

	// Halt stops the machine.
	Halt()
}
