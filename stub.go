//go:build 386

package main

import (
	"bootos/kernel/boot"
	"bootos/kernel/hal"
	"bootos/kernel/kmain"
)

var (
	multibootInfoPtr uintptr
	multibootMagic   uint32
	subsystems       boot.Subsystems
)

// main makes a dummy call to the actual kernel main entrypoint function. It
// is intentionally defined to prevent the Go compiler from optimizing away the
// real kernel code.
//
// Global variables are passed as arguments to Kmain to prevent the compiler
// from inlining the actual call and removing Kmain from the generated .o file.
func main() {
	kmain.Kmain(hal.Native(), subsystems, boot.Params{
		BootInfo: multibootInfoPtr,
		Magic:    multibootMagic,
		Stack:    kmain.KernelStack(),
	})
}
