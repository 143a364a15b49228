package kmain

import (
	"bootos/kernel/boot"
	"bootos/kernel/kfmt"
	"bootos/kernel/sync"
)

const (
	stepDebug boot.StepID = iota
	stepGDT
	stepIDT
	stepConsole
	stepTimer
	stepPMM
	stepVMM
	stepHeap
	stepScheduler
	stepEnableIRQ
)

var initSequence = boot.Sequence{
	{ID: stepDebug, Name: "debug", Run: initDebug},
	{ID: stepGDT, Name: "gdt", Requires: []boot.StepID{stepDebug}, Run: initGDT},
	{ID: stepIDT, Name: "idt", Requires: []boot.StepID{stepGDT}, Run: initIDT},
	{ID: stepConsole, Name: "console", Requires: []boot.StepID{stepDebug}, Run: initConsole},
	{ID: stepTimer, Name: "timer", Requires: []boot.StepID{stepIDT}, Run: initTimer},
	{ID: stepPMM, Name: "pmm", Requires: []boot.StepID{stepDebug}, Run: initPMM},
	{ID: stepVMM, Name: "vmm", Requires: []boot.StepID{stepPMM}, Run: initVMM},
	{ID: stepHeap, Name: "heap", Requires: []boot.StepID{stepVMM}, Run: initHeap},
	{ID: stepScheduler, Name: "sched", Requires: []boot.StepID{stepHeap, stepTimer}, Run: initScheduler},
	{
		ID:   stepEnableIRQ,
		Name: "irq-enable",
		Requires: []boot.StepID{
			stepDebug, stepGDT, stepIDT, stepConsole, stepTimer,
			stepPMM, stepVMM, stepHeap, stepScheduler,
		},
		Run: enableInterrupts,
	},
}

func initDebug(ctx *boot.Context) {
	ctx.Subsystems.InitDebug()
	ctx.Debug = true
}

func initGDT(ctx *boot.Context) { ctx.Subsystems.InitGDT() }

// initIDT installs the interrupt descriptors; interrupts stay masked until
// the last step.
func initIDT(ctx *boot.Context) { ctx.Subsystems.InitIDT() }

func initConsole(ctx *boot.Context) {
	ctx.Subsystems.InitConsole()
	ctx.Subsystems.ClearConsole()

	kfmt.ColorPrintf(kfmt.Black, kfmt.Green, "Hello, OS kernel!\n")

	if !ctx.MagicValid {
		kfmt.ColorPrintf(kfmt.Black, kfmt.LightBrown, "warning: unexpected multiboot magic 0x%8X\n", ctx.Magic)
	}
}

func initTimer(ctx *boot.Context) {
	ctx.Subsystems.InitTimer(ctx.TickRate)

	kfmt.Printf("kernel in memory start: 0x%8X\n", ctx.KernelStart)
	kfmt.Printf("kernel in memory end:   0x%8X\n", ctx.KernelEnd)
	kfmt.Printf("kernel in memory used:  %d KB\n\n", ctx.KernelSizeKb())
}

func initPMM(ctx *boot.Context) {
	ctx.FrameCount = ctx.Subsystems.InitPMM(ctx.BootInfo)

	kfmt.ColorPrintf(kfmt.Black, kfmt.Red, "\nThe Count of Physical Memory Page is: %d\n", ctx.FrameCount)
}

func initVMM(ctx *boot.Context) { ctx.Subsystems.InitVMM() }

func initHeap(ctx *boot.Context) { ctx.Subsystems.InitHeap() }

// initScheduler adopts the boot task, routes busy-wait loops through the
// scheduler's yield and spawns the demo worker.
func initScheduler(ctx *boot.Context) {
	ctx.Subsystems.InitScheduler(ctx.StackTop)
	sync.SetYieldFn(ctx.Subsystems.Yield)
	ctx.Subsystems.Spawn(ctx.Demo.Worker)
}

func enableInterrupts(ctx *boot.Context) { ctx.Machine.EnableInterrupts() }
