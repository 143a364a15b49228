// Package subsys provides the simulated kernel collaborators that the boot
// sequence initializes. Each init call is traced so the simulator can check
// the order in which the sequence brought them up.
package subsys

import (
	"bootos/kernel/hal/multiboot"
	"bootos/kernel/kfmt"
	"bootos/kernel/mem"
	"bootos/kernel/mem/pmm"
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Console is the output device brought up by InitConsole.
type Console interface {
	kfmt.ColorWriter

	// Clear wipes the screen.
	Clear()
}

// Options configures the simulated collaborators.
type Options struct {
	// Reader accesses memory at the addresses the kernel passes in.
	Reader multiboot.MemReader

	// Console receives the kernel output once InitConsole runs.
	Console Console

	// KernelStart and KernelEnd are the virtual bounds of the kernel
	// image; the physical memory manager never hands out its frames.
	KernelStart, KernelEnd uintptr

	// Stack is the higher-half kernel stack region.
	Stack mem.StackRegion
}

// Subsystems implements boot.Subsystems.
type Subsystems struct {
	log  *zap.Logger
	opts Options

	ctx   context.Context
	group *errgroup.Group

	mu       sync.Mutex
	calls    []string
	tickRate uint32
	stackTop uintptr
	tasks    int
	frames   uint32
	bootInfo multiboot.InfoPtr

	pmm bootMemAllocator
}

// New returns the collaborators for one boot. Spawned tasks and busy-wait
// loops stop once ctx is done.
func New(ctx context.Context, opts Options, log *zap.Logger) *Subsystems {
	if log == nil {
		log = zap.NewNop()
	}

	group, gctx := errgroup.WithContext(ctx)
	return &Subsystems{
		log:   log.Named("subsys"),
		opts:  opts,
		ctx:   gctx,
		group: group,
	}
}

func (s *Subsystems) trace(name string, fields ...zap.Field) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	s.log.Debug("init "+name, fields...)
}

// Calls returns the init calls in the order they were made.
func (s *Subsystems) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// TickRate returns the frequency passed to InitTimer.
func (s *Subsystems) TickRate() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickRate
}

// StackTop returns the boot task stack adopted by the scheduler.
func (s *Subsystems) StackTop() uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stackTop
}

// InitDebug implements boot.Subsystems.
func (s *Subsystems) InitDebug() { s.trace("debug") }

// InitGDT implements boot.Subsystems.
func (s *Subsystems) InitGDT() { s.trace("gdt") }

// InitIDT implements boot.Subsystems.
func (s *Subsystems) InitIDT() { s.trace("idt") }

// InitConsole implements boot.Subsystems. Output buffered before the console
// existed is replayed onto it.
func (s *Subsystems) InitConsole() {
	s.trace("console")
	if s.opts.Console != nil {
		kfmt.SetOutputSink(s.opts.Console)
	}
}

// ClearConsole implements boot.Subsystems.
func (s *Subsystems) ClearConsole() {
	s.trace("console-clear")
	if s.opts.Console != nil {
		s.opts.Console.Clear()
	}
}

// InitTimer implements boot.Subsystems.
func (s *Subsystems) InitTimer(hz uint32) {
	s.mu.Lock()
	s.tickRate = hz
	s.mu.Unlock()

	s.trace("timer", zap.Uint32("hz", hz))
}

// InitPMM implements boot.Subsystems. It returns 0 if the boot info cannot
// be parsed; the kernel reports the count but does not act on it.
func (s *Subsystems) InitPMM(bootInfo multiboot.InfoPtr) uint32 {
	s.mu.Lock()
	s.bootInfo = bootInfo
	s.mu.Unlock()

	s.trace("pmm", zap.Stringer("epoch", bootInfo.Epoch()), zap.Uintptr("info", bootInfo.Address()))

	if err := s.pmm.init(bootInfo, s.opts.Reader, s.opts.KernelStart, s.opts.KernelEnd, s.opts.Stack); err != nil {
		s.log.Error("cannot parse boot info", zap.Error(err))
		return 0
	}
	s.pmm.logMemoryMap(s.log)

	frames, err := s.pmm.FreeFrames()
	if err != nil {
		s.log.Error("cannot scan memory map", zap.Error(err))
	}

	s.mu.Lock()
	s.frames = frames
	s.mu.Unlock()
	return frames
}

// FrameCount returns the number of free frames reported by InitPMM.
func (s *Subsystems) FrameCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// BootInfo returns the boot info pointer passed to InitPMM.
func (s *Subsystems) BootInfo() multiboot.InfoPtr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootInfo
}

// AllocFrame hands out a frame from the physical memory manager.
func (s *Subsystems) AllocFrame() (pmm.Frame, error) {
	return s.pmm.AllocFrame()
}

// InitVMM implements boot.Subsystems.
func (s *Subsystems) InitVMM() { s.trace("vmm") }

// InitHeap implements boot.Subsystems.
func (s *Subsystems) InitHeap() { s.trace("heap") }

// InitScheduler implements boot.Subsystems.
func (s *Subsystems) InitScheduler(stackTop uintptr) {
	s.mu.Lock()
	s.stackTop = stackTop
	s.mu.Unlock()

	s.trace("sched", zap.Uintptr("stack_top", stackTop))
}

// Spawn implements boot.Subsystems. Each task runs on its own goroutine.
func (s *Subsystems) Spawn(fn func()) {
	s.mu.Lock()
	s.tasks++
	id := s.tasks
	s.mu.Unlock()

	s.trace("spawn", zap.Int("task", id))
	s.group.Go(func() error {
		fn()
		s.log.Debug("task exited", zap.Int("task", id))
		return nil
	})
}

// Yield implements boot.Subsystems. Once the boot is cancelled, the calling
// task is terminated.
func (s *Subsystems) Yield() {
	if s.ctx.Err() != nil {
		runtime.Goexit()
	}
	runtime.Gosched()
}

// Wait blocks until every spawned task has exited.
func (s *Subsystems) Wait() error {
	return s.group.Wait()
}
