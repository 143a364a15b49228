// Package kmain contains the kernel entry point that the rt0 code jumps to
// once the bootloader has handed over control.
package kmain

import (
	"bootos/kernel"
	"bootos/kernel/boot"
	"bootos/kernel/hal"
	"bootos/kernel/kfmt"
	"bootos/kernel/mem"
	"unsafe"
)

var (
	errNoSubsystems = &kernel.Error{Module: "kmain", Message: "no subsystems supplied"}

	// kernelStack is the boot task's stack. It becomes usable once the
	// higher-half mapping is active.
	kernelStack [mem.KernelStackSize]byte

	// bootCtx lives in static storage; no allocator exists when Kmain
	// runs. It is only ever accessed through the pointer Kmain hands to
	// the boot phases.
	bootCtx boot.Context
)

// KernelStack returns the statically reserved kernel stack.
func KernelStack() mem.StackRegion {
	return mem.StackRegion{
		Base: uintptr(unsafe.Pointer(&kernelStack[0])),
		Size: mem.KernelStackSize,
	}
}

// Kmain is the only Go symbol that is visible (exported) from the rt0 code.
// It gets invoked by the rt0 code with paging disabled, interrupts masked and
// the bootloader's magic value and multiboot info address in params. A zero
// params.Stack selects the statically reserved kernel stack.
//
// Kmain builds the boot page tables, enables paging, moves to the kernel
// stack and then runs the init sequence followed by the scheduler demo.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(m hal.Machine, sys boot.Subsystems, params boot.Params) {
	kfmt.SetHaltFn(m.Halt)

	if sys == nil {
		kfmt.Panic(errNoSubsystems)
		return
	}

	if params.Stack == (mem.StackRegion{}) {
		params.Stack = KernelStack()
	}

	bootCtx = boot.NewContext(m, sys, params)
	ctx := &bootCtx

	// Reject a bad step table or stack before touching any hardware state.
	if err := initSequence.Validate(); err != nil {
		kfmt.Panic(err)
		return
	}
	if err := ctx.CheckStack(); err != nil {
		kfmt.Panic(err)
		return
	}

	boot.BuildPageTables(ctx)
	boot.SwitchAddressSpace(ctx, kernelInit)
}

// kernelInit runs on the kernel stack in the higher half.
func kernelInit(ctx *boot.Context) {
	if err := initSequence.Run(ctx); err != nil {
		kfmt.Panic(err)
		return
	}

	ctx.Demo.RunBootTask()

	kfmt.ColorPrintf(kfmt.Black, kfmt.Cyan, "\nkern init finished!\n")

	for {
		ctx.Machine.Halt()
	}
}
