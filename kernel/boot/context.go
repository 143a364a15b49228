// Package boot implements the kernel's earliest boot phase: it builds the
// boot page tables, moves execution into the higher half and then runs the
// subsystem initializers in their declared order.
package boot

import (
	"bootos/kernel"
	"bootos/kernel/hal"
	"bootos/kernel/hal/multiboot"
	"bootos/kernel/mem"
	"bootos/kernel/mem/vmm"
)

// DefaultTickRate is the timer frequency (in Hz) used when Params does not
// specify one.
const DefaultTickRate = 200

var errStackTopOutOfRange = &kernel.Error{Module: "boot", Message: "kernel stack top lies outside the stack region"}

// Subsystems is the set of external collaborators brought up by the init
// sequence. Every init function is called exactly once, takes at most one
// argument and either completes or halts the machine.
type Subsystems interface {
	InitDebug()
	InitGDT()
	InitIDT()
	InitConsole()
	ClearConsole()
	InitTimer(hz uint32)

	// InitPMM brings up the physical memory manager and returns the
	// number of usable physical frames.
	InitPMM(bootInfo multiboot.InfoPtr) uint32

	InitVMM()
	InitHeap()

	// InitScheduler adopts the boot task whose stack starts at stackTop.
	InitScheduler(stackTop uintptr)

	// Spawn creates a kernel task running fn.
	Spawn(fn func())

	// Yield gives up the CPU to another runnable task.
	Yield()
}

// Params holds the values handed over by the rt0 code.
type Params struct {
	// BootInfo is the physical address of the multiboot info structure.
	BootInfo uintptr

	// Magic is the value the bootloader left in EAX.
	Magic uint32

	// KernelStart and KernelEnd are the bounds of the loaded kernel image.
	KernelStart, KernelEnd uintptr

	// Stack is the statically reserved kernel stack.
	Stack mem.StackRegion

	// TickRate is the timer frequency in Hz.
	TickRate uint32

	// DemoRounds bounds the validation demo; <= 0 runs it forever.
	DemoRounds int
}

// Context carries all state shared by the boot phases. It is created once by
// Kmain and passed explicitly to every step.
type Context struct {
	Machine    hal.Machine
	Subsystems Subsystems

	// BootInfo is physical until SwitchAddressSpace relocates it.
	BootInfo   multiboot.InfoPtr
	Magic      uint32
	MagicValid bool

	KernelStart, KernelEnd uintptr

	Stack    mem.StackRegion
	StackTop uintptr

	Tables vmm.BootTables

	TickRate   uint32
	Debug      bool
	FrameCount uint32

	Demo Demo

	// completed has bit n set once the step with ID n has run.
	completed uint32
}

// NewContext initializes a Context from the rt0 parameters.
func NewContext(m hal.Machine, sys Subsystems, params Params) Context {
	ctx := Context{
		Machine:     m,
		Subsystems:  sys,
		BootInfo:    multiboot.PhysicalInfoPtr(params.BootInfo),
		Magic:       params.Magic,
		MagicValid:  multiboot.ValidMagic(params.Magic),
		KernelStart: params.KernelStart,
		KernelEnd:   params.KernelEnd,
		Stack:       params.Stack,
		TickRate:    params.TickRate,
		Debug:       true,
	}

	if ctx.TickRate == 0 {
		ctx.TickRate = DefaultTickRate
	}

	ctx.Demo.Rounds = params.DemoRounds
	return ctx
}

// CheckStack verifies that the aligned top of the kernel stack lies inside
// the stack region.
func (ctx *Context) CheckStack() *kernel.Error {
	top := ctx.Stack.Top()
	if ctx.Stack.Size < mem.StackAlignment || !ctx.Stack.Contains(top) {
		return errStackTopOutOfRange
	}
	return nil
}

// Completed returns true if the step with the given ID has run.
func (ctx *Context) Completed(id StepID) bool {
	return ctx.completed&(1<<id) != 0
}

// KernelSizeKb returns the size of the kernel image in KiB, rounded up.
func (ctx *Context) KernelSizeKb() uintptr {
	return (ctx.KernelEnd - ctx.KernelStart + 1023) / 1024
}
