package hal

import (
	"bootos/kernel/cpu"
	"bootos/kernel/mem/pmm"
	"bootos/kernel/mem/vmm"
	"unsafe"
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	switchPDTFn        = cpu.SwitchPDT
	activePDTFn        = cpu.ActivePDT
	enablePagingFn     = cpu.EnablePaging
	switchStackFn      = cpu.SwitchStack
	enableInterruptsFn = cpu.EnableInterrupts
	haltFn             = cpu.Halt

	// tablePtrFn converts a physical frame address into a pointer. Tests
	// override it to point at Go-allocated tables.
	tablePtrFn = func(physAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(physAddr)
	}
)

// nativeMachine drives the real CPU.
type nativeMachine struct{}

// Native returns the Machine implementation backed by the CPU the kernel is
// running on.
func Native() Machine {
	return nativeMachine{}
}

func (nativeMachine) TableAt(frame pmm.Frame) *vmm.PageTable {
	return (*vmm.PageTable)(tablePtrFn(frame.Address()))
}

// LoadPageDirectory leaves CR3 alone if pdtPhysAddr is already active;
// reloading it would only flush the TLB.
func (nativeMachine) LoadPageDirectory(pdtPhysAddr uintptr) {
	if activePDTFn() == pdtPhysAddr {
		return
	}
	switchPDTFn(pdtPhysAddr)
}

func (nativeMachine) EnablePaging() { enablePagingFn() }

func (nativeMachine) SwitchStack(stackTop uintptr, fn func()) { switchStackFn(stackTop, fn) }

func (nativeMachine) EnableInterrupts() { enableInterruptsFn() }

func (nativeMachine) Halt() { haltFn() }
