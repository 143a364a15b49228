// Package sim boots the kernel on a simulated machine and checks the
// resulting address space.
package sim

import (
	"bootos/kernel/boot"
	"bootos/kernel/hal/multiboot"
	"bootos/kernel/kfmt"
	"bootos/kernel/kmain"
	"bootos/kernel/mem"
	"bootos/kernel/mem/vmm"
	"bootos/kernel/sync"
	"bootos/tools/bootsim/config"
	"bootos/tools/bootsim/console"
	"bootos/tools/bootsim/machine"
	"bootos/tools/bootsim/subsys"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	gosync "sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memLowerKb is the conventional memory size reported by the loader.
const memLowerKb = 639

var (
	// ErrAliasMismatch is reported when a higher-half address does not
	// resolve to the same bytes as its physical counterpart.
	ErrAliasMismatch = errors.New("higher-half alias mismatch")

	// the kernel's diagnostic output and yield hook are process-wide, so
	// boots are serialized.
	bootMu gosync.Mutex
)

// Check is the outcome of resolving one virtual address after the boot.
type Check struct {
	Name     string
	Virt     uintptr
	Phys     uintptr
	Expected uintptr
	Err      error
}

// OK returns true if the address resolved to the expected physical address.
func (c Check) OK() bool {
	return c.Err == nil && c.Phys == c.Expected
}

// Report describes a completed simulated boot.
type Report struct {
	RunID string

	Calls      []string
	TickRate   uint32
	FrameCount uint32
	StackTop   uintptr
	BootInfo   uintptr

	Registers machine.Registers
	Checks    []Check

	Transcript string
	Runs       []console.Run
}

// Boot runs Kmain against a machine built from cfg. Kernel output is
// rendered to out. Boot returns machine.ErrTripleFault if the simulated CPU
// faulted and ctx's error if the boot did not halt in time.
func Boot(ctx context.Context, cfg *config.Config, out io.Writer, log *zap.Logger) (*Report, error) {
	bootMu.Lock()
	defer bootMu.Unlock()

	if log == nil {
		log = zap.NewNop()
	}

	runID := uuid.New().String()
	log = log.With(zap.String("run_id", runID))

	m, err := newMachine(cfg, log)
	if err != nil {
		return nil, err
	}

	con := console.New(out)
	sys := subsys.New(ctx, subsys.Options{
		Reader:      m.Reader,
		Console:     con,
		KernelStart: uintptr(cfg.Kernel.Start),
		KernelEnd:   uintptr(cfg.Kernel.End),
		Stack:       cfg.Stack(),
	}, log)

	defer func() {
		kfmt.SetOutputSink(nil)
		kfmt.SetHaltFn(nil)
		sync.SetYieldFn(nil)
	}()

	log.Info("booting",
		zap.Uint32("memory_mb", cfg.Memory.SizeMb),
		zap.String("boot_info", fmt.Sprintf("0x%x", cfg.Boot.InfoAddr)),
		zap.Int("rounds", cfg.Demo.Rounds),
	)

	done := make(chan error, 1)
	go func() {
		var runErr error
		defer func() { done <- runErr }()

		runErr = m.Run(func() {
			kmain.Kmain(m, sys, params(cfg))
		})
	}()

	runErr := <-done
	if waitErr := sys.Wait(); runErr == nil {
		runErr = waitErr
	}

	report := &Report{
		RunID:      runID,
		Calls:      sys.Calls(),
		TickRate:   sys.TickRate(),
		FrameCount: sys.FrameCount(),
		StackTop:   sys.StackTop(),
		BootInfo:   sys.BootInfo().Address(),
		Registers:  m.Registers(),
		Transcript: con.Transcript(),
		Runs:       con.Runs(),
	}

	if runErr != nil {
		log.Error("boot failed", zap.Error(runErr))
		return report, runErr
	}
	if ctx.Err() != nil {
		return report, fmt.Errorf("boot did not halt: %w", ctx.Err())
	}

	report.Checks = checkAliases(m, cfg)
	for _, c := range report.Checks {
		if !c.OK() {
			return report, fmt.Errorf("%w: %s at 0x%x", ErrAliasMismatch, c.Name, c.Virt)
		}
	}

	log.Info("boot halted",
		zap.Strings("init_order", report.Calls),
		zap.Uint32("frames", report.FrameCount),
	)
	return report, nil
}

// BuildTables runs only the page table construction and returns the
// populated tables together with the machine holding them.
func BuildTables(cfg *config.Config) (*machine.Machine, vmm.BootTables, error) {
	m, err := newMachine(cfg, nil)
	if err != nil {
		return nil, vmm.BootTables{}, err
	}

	ctx := boot.NewContext(m, nil, params(cfg))
	if err := m.Run(func() { boot.BuildPageTables(&ctx) }); err != nil {
		return nil, vmm.BootTables{}, err
	}
	return m, ctx.Tables, nil
}

func newMachine(cfg *config.Config, log *zap.Logger) (*machine.Machine, error) {
	m := machine.New(machine.Options{
		MemoryBytes: cfg.MemoryBytes(),
		KernelStart: uintptr(cfg.Kernel.Start),
		KernelEnd:   uintptr(cfg.Kernel.End),
	}, log)

	var regions []machine.Region
	for _, r := range cfg.MemoryMap() {
		regions = append(regions, machine.Region{Base: r.Base, Length: r.Length, Type: multiboot.MemoryEntryType(r.Type)})
	}

	err := m.LoadBootInfo(machine.BootInfo{
		Addr:       uintptr(cfg.Boot.InfoAddr),
		MemLowerKb: memLowerKb,
		MemUpperKb: uint32((cfg.MemoryBytes() - uint64(mem.Mb)) / uint64(mem.Kb)),
		Regions:    regions,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func params(cfg *config.Config) boot.Params {
	return boot.Params{
		BootInfo:    uintptr(cfg.Boot.InfoAddr),
		Magic:       cfg.Boot.Magic,
		KernelStart: uintptr(cfg.Kernel.Start),
		KernelEnd:   uintptr(cfg.Kernel.End),
		Stack:       cfg.Stack(),
		TickRate:    cfg.Boot.TickRate,
		DemoRounds:  cfg.Demo.Rounds,
	}
}

// checkAliases verifies that the kernel image, the kernel stack and the
// boot info resolve through the higher-half alias to the same bytes as
// their physical copies, and that the identity mapping is still intact.
func checkAliases(m *machine.Machine, cfg *config.Config) []Check {
	stack := cfg.Stack()
	infoVirt := uintptr(cfg.Boot.InfoAddr) + mem.PageOffset

	targets := []struct {
		name string
		virt uintptr
		exp  uintptr
	}{
		{"kernel start", uintptr(cfg.Kernel.Start), uintptr(cfg.Kernel.Start) - mem.PageOffset},
		{"kernel end", uintptr(cfg.Kernel.End) - 1, uintptr(cfg.Kernel.End) - 1 - mem.PageOffset},
		{"stack top", stack.Top() - 4, stack.Top() - 4 - mem.PageOffset},
		{"boot info", infoVirt, uintptr(cfg.Boot.InfoAddr)},
		{"identity", uintptr(cfg.Boot.InfoAddr), uintptr(cfg.Boot.InfoAddr)},
	}

	checks := make([]Check, 0, len(targets))
	for _, t := range targets {
		c := Check{Name: t.name, Virt: t.virt, Expected: t.exp}
		c.Phys, c.Err = m.Translate(t.virt)

		if c.Err == nil {
			virtData, err := m.ReadVirt(t.virt, 4)
			physData, _ := m.ReadPhys(t.exp, 4)
			if err != nil {
				c.Err = err
			} else if !bytes.Equal(virtData, physData) {
				c.Err = ErrAliasMismatch
			}
		}
		checks = append(checks, c)
	}

	return checks
}
