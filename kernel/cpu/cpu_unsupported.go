//go:build !386
// +build !386

package cpu

// The kernel only runs on 386. These stubs let the rest of the tree (and its
// tests) build on other architectures; calling any of them is a bug.

const errUnsupportedArch = "cpu: privileged instructions are only available on 386"

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() { panic(errUnsupportedArch) }

// Halt stops instruction execution.
func Halt() { panic(errUnsupportedArch) }

// SwitchPDT loads the physical address of a page directory into CR3.
func SwitchPDT(_ uintptr) { panic(errUnsupportedArch) }

// ActivePDT returns the physical address of the currently active page directory.
func ActivePDT() uintptr { panic(errUnsupportedArch) }

// EnablePaging sets the PG bit in CR0.
func EnablePaging() { panic(errUnsupportedArch) }

// SwitchStack switches to a new stack and calls fn.
func SwitchStack(_ uintptr, _ func()) { panic(errUnsupportedArch) }
