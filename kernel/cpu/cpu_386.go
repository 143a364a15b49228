// Package cpu exposes the privileged i386 instructions used while bringing up
// the kernel. The functions are implemented in assembly.
package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// Halt disables interrupts and stops instruction execution. It never returns.
func Halt()

// SwitchPDT loads the physical address of a page directory into CR3. When
// paging is already enabled this also flushes all non-global TLB entries.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page directory.
func ActivePDT() uintptr

// EnablePaging sets the PG bit in CR0 leaving all other bits untouched.
// CR3 must point to a valid page directory that maps the currently executing
// code; otherwise the CPU triple-faults.
func EnablePaging()

// SwitchStack loads ESP with stackTop, clears EBP so that stack unwinding
// stops at this frame and calls fn on the new stack. fn must not return; if
// it does, SwitchStack halts the CPU.
func SwitchStack(stackTop uintptr, fn func())
