package boot

import (
	"bootos/kernel/kfmt"
	"bootos/kernel/mem"
	"bootos/kernel/mem/vmm"
	"unsafe"
)

// BuildPageTables populates the boot page directory and tables in the
// scratch arena. It must run while paging is still disabled.
func BuildPageTables(ctx *Context) {
	ctx.Tables = vmm.ScratchBootTables(ctx.Machine.TableAt)
	vmm.BuildBootTables(&ctx.Tables)
}

// SwitchAddressSpace moves execution into the higher half. In order, it
// loads the boot page directory, enables paging, switches to the kernel
// stack (which is only mapped once paging is on) and relocates the boot
// info pointer. It then calls cont on the new stack.
//
// Nothing can be rolled back: a bad page directory faults the machine as
// soon as paging is enabled.
func SwitchAddressSpace(ctx *Context, cont func(*Context)) {
	m := ctx.Machine

	m.LoadPageDirectory(ctx.Tables.DirFrame.Address())
	m.EnablePaging()

	ctx.StackTop = ctx.Stack.Top()

	resume := func() {
		relocated, err := ctx.BootInfo.Relocate(mem.PageOffset)
		if err != nil {
			kfmt.Panic(err)
			return
		}
		ctx.BootInfo = relocated

		cont(ctx)
	}

	// Use the noescape hack to prevent the compiler from moving the
	// continuation to the heap; no allocator exists yet.
	m.SwitchStack(ctx.StackTop, *(*func())(noEscape(unsafe.Pointer(&resume))))
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
