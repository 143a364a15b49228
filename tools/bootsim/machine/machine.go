// Package machine simulates the parts of an i386 PC that the early boot code
// touches: physical memory, CR0/CR3, the two-level MMU and the stack
// registers. It implements hal.Machine so the real boot sequence can run
// against it.
package machine

import (
	"bootos/kernel/mem"
	"bootos/kernel/mem/pmm"
	"bootos/kernel/mem/vmm"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

const cr0PagingEnabled = uint32(0x80000000)

var (
	// ErrTripleFault is reported when the simulated CPU faults in a way
	// that real hardware cannot recover from.
	ErrTripleFault = errors.New("triple fault")

	// ErrHalted is reported when code runs on a halted machine.
	ErrHalted = errors.New("machine halted")

	// ErrBadAddress is returned for accesses outside simulated memory.
	ErrBadAddress = errors.New("address outside physical memory")

	// ErrNotMapped is returned when a virtual address has no mapping.
	ErrNotMapped = errors.New("virtual address not mapped")
)

// haltSignal unwinds the boot goroutine when the CPU halts.
type haltSignal struct{}

// Options configures a Machine.
type Options struct {
	// MemoryBytes is the size of simulated RAM.
	MemoryBytes uint64

	// KernelStart and KernelEnd are the virtual bounds of the kernel
	// image. They must stay reachable across the paging switch.
	KernelStart, KernelEnd uintptr
}

// Registers is a snapshot of the simulated CPU state.
type Registers struct {
	CR0, CR3   uint32
	SP, BP     uintptr
	Interrupts bool
	Halted     bool
}

// Machine is a simulated i386 PC.
type Machine struct {
	log  *zap.Logger
	opts Options

	mu         sync.Mutex
	ram        []byte
	regs       Registers
	fault      error
	haltCount  int
	stackSwaps int
}

// New returns a machine with zeroed memory, paging disabled and interrupts
// masked.
func New(opts Options, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}

	m := &Machine{
		log:  log,
		opts: opts,
		ram:  make([]byte, opts.MemoryBytes),
	}
	// Registers left by the bootloader.
	m.regs.BP = 0xdeadbeef
	return m
}

// TableAt implements hal.Machine. It overlays the page table on simulated
// physical memory.
func (m *Machine) TableAt(frame pmm.Frame) *vmm.PageTable {
	addr := frame.Address()
	if !m.validPhys(addr, uint64(mem.PageSize)) {
		m.tripleFault("page table frame 0x%x outside physical memory", addr)
	}

	return (*vmm.PageTable)(unsafe.Pointer(&m.ram[addr]))
}

// LoadPageDirectory implements hal.Machine.
func (m *Machine) LoadPageDirectory(pdtPhysAddr uintptr) {
	m.mu.Lock()
	m.regs.CR3 = uint32(pdtPhysAddr)
	m.mu.Unlock()

	m.log.Debug("CR3 loaded", zap.String("pdt", hex(pdtPhysAddr)))
}

// EnablePaging implements hal.Machine. The instruction following the write
// to CR0 is fetched through the MMU; it faults unless the identity mapping
// covers the physical copy of the kernel image and the higher-half alias
// covers the virtual one.
func (m *Machine) EnablePaging() {
	m.mu.Lock()
	m.regs.CR0 |= cr0PagingEnabled
	m.mu.Unlock()

	m.log.Debug("paging enabled", zap.Uint32("cr0", m.Registers().CR0))

	physStart := m.opts.KernelStart - mem.PageOffset
	for _, addr := range []uintptr{physStart, m.opts.KernelStart} {
		if _, err := m.Translate(addr); err != nil {
			m.tripleFault("instruction fetch at 0x%x: %v", addr, err)
		}
	}
}

// SwitchStack implements hal.Machine. The first push on the new stack
// writes just below stackTop; the stack must therefore be mapped.
func (m *Machine) SwitchStack(stackTop uintptr, fn func()) {
	if _, err := m.Translate(stackTop - 4); err != nil {
		m.tripleFault("stack push at 0x%x: %v", stackTop-4, err)
	}

	m.mu.Lock()
	m.regs.SP = stackTop
	m.regs.BP = 0
	m.stackSwaps++
	m.mu.Unlock()

	m.log.Debug("stack switched", zap.String("sp", hex(stackTop)))

	fn()

	// The continuation is not expected to return.
	m.Halt()
}

// EnableInterrupts implements hal.Machine.
func (m *Machine) EnableInterrupts() {
	m.mu.Lock()
	m.regs.Interrupts = true
	m.mu.Unlock()

	m.log.Debug("interrupts enabled")
}

// Halt implements hal.Machine. It stops the boot goroutine; control returns
// to the caller of Run.
func (m *Machine) Halt() {
	m.mu.Lock()
	m.regs.Interrupts = false
	m.regs.Halted = true
	m.haltCount++
	m.mu.Unlock()

	m.log.Debug("cpu halted")
	panic(haltSignal{})
}

// Run executes fn as the machine's boot code and returns once it halts. It
// returns ErrTripleFault if the simulated CPU faulted.
func (m *Machine) Run(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(haltSignal); !ok {
			panic(r)
		}

		m.mu.Lock()
		err = m.fault
		m.mu.Unlock()
	}()

	if m.Registers().Halted {
		return ErrHalted
	}

	fn()
	return nil
}

// Registers returns a snapshot of the CPU registers.
func (m *Machine) Registers() Registers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs
}

// PagingEnabled returns true once CR0.PG is set.
func (m *Machine) PagingEnabled() bool {
	return m.Registers().CR0&cr0PagingEnabled != 0
}

// StackSwitches returns the number of completed stack switches.
func (m *Machine) StackSwitches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stackSwaps
}

// Translate resolves a virtual address the way the MMU would with the
// current CR0 and CR3.
func (m *Machine) Translate(virtAddr uintptr) (uintptr, error) {
	if !m.PagingEnabled() {
		return virtAddr, nil
	}

	cr3 := uintptr(m.Registers().CR3)
	if !m.validPhys(cr3, uint64(mem.PageSize)) {
		return 0, fmt.Errorf("%w: CR3 0x%x", ErrBadAddress, cr3)
	}

	dir := (*vmm.PageDirectory)(unsafe.Pointer(&m.ram[cr3]))
	physAddr, kerr := vmm.Translate(dir, m.physTable, virtAddr)
	if kerr != nil {
		return 0, fmt.Errorf("%w: 0x%x: %s", ErrNotMapped, virtAddr, kerr.Message)
	}

	if !m.validPhys(physAddr, 1) {
		return 0, fmt.Errorf("%w: 0x%x -> 0x%x", ErrBadAddress, virtAddr, physAddr)
	}
	return physAddr, nil
}

// physTable is the MMU's view of a page table: a raw physical access that
// never faults the machine.
func (m *Machine) physTable(frame pmm.Frame) *vmm.PageTable {
	addr := frame.Address()
	if !m.validPhys(addr, uint64(mem.PageSize)) {
		return &vmm.PageTable{}
	}
	return (*vmm.PageTable)(unsafe.Pointer(&m.ram[addr]))
}

// ReadPhys copies size bytes of physical memory.
func (m *Machine) ReadPhys(addr uintptr, size uint32) ([]byte, error) {
	if !m.validPhys(addr, uint64(size)) {
		return nil, fmt.Errorf("%w: [0x%x, +%d)", ErrBadAddress, addr, size)
	}

	out := make([]byte, size)
	copy(out, m.ram[addr:])
	return out, nil
}

// WritePhys copies data into physical memory.
func (m *Machine) WritePhys(addr uintptr, data []byte) error {
	if !m.validPhys(addr, uint64(len(data))) {
		return fmt.Errorf("%w: [0x%x, +%d)", ErrBadAddress, addr, len(data))
	}

	copy(m.ram[addr:], data)
	return nil
}

// ReadVirt copies size bytes starting at a virtual address, translating
// each page separately.
func (m *Machine) ReadVirt(virtAddr uintptr, size uint32) ([]byte, error) {
	out := make([]byte, 0, size)

	for remaining := uintptr(size); remaining > 0; {
		physAddr, err := m.Translate(virtAddr)
		if err != nil {
			return nil, err
		}

		chunk := uintptr(mem.PageSize) - vmm.PageOffset(virtAddr)
		if chunk > remaining {
			chunk = remaining
		}

		data, err := m.ReadPhys(physAddr, uint32(chunk))
		if err != nil {
			return nil, err
		}

		out = append(out, data...)
		virtAddr += chunk
		remaining -= chunk
	}

	return out, nil
}

// Reader adapts ReadVirt to the multiboot.MemReader signature. Failed reads
// yield an empty slice, which the multiboot parser reports as truncation.
func (m *Machine) Reader(addr uintptr, size uint32) []byte {
	data, err := m.ReadVirt(addr, size)
	if err != nil {
		m.log.Warn("boot info read failed", zap.String("addr", hex(addr)), zap.Error(err))
		return nil
	}
	return data
}

func (m *Machine) validPhys(addr uintptr, size uint64) bool {
	return uint64(addr)+size <= uint64(len(m.ram))
}

func (m *Machine) tripleFault(format string, args ...interface{}) {
	err := fmt.Errorf("%w: "+format, append([]interface{}{ErrTripleFault}, args...)...)

	m.mu.Lock()
	if m.fault == nil {
		m.fault = err
	}
	m.mu.Unlock()

	m.log.Error("cpu fault", zap.Error(err))
	m.Halt()
}

func hex(v uintptr) string {
	return fmt.Sprintf("0x%08x", v)
}
