package machine

import (
	"bootos/kernel/hal"
	"bootos/kernel/hal/multiboot"
	"bootos/kernel/mem"
	"bootos/kernel/mem/pmm"
	"bootos/kernel/mem/vmm"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKernelStart = uintptr(0xC0100000)
	testKernelEnd   = uintptr(0xC010A400)
)

var _ hal.Machine = (*Machine)(nil)

func newTestMachine() *Machine {
	return New(Options{
		MemoryBytes: uint64(8 * mem.Mb),
		KernelStart: testKernelStart,
		KernelEnd:   testKernelEnd,
	}, nil)
}

func buildTables(m *Machine) vmm.BootTables {
	tables := vmm.ScratchBootTables(m.TableAt)
	vmm.BuildBootTables(&tables)
	return tables
}

func TestTableAtOverlaysPhysicalMemory(t *testing.T) {
	m := newTestMachine()

	tables := buildTables(m)
	require.Same(t, m.TableAt(pmm.ScratchLowTable.Frame()), tables.Low)

	require.Equal(t, uint32(0x1003), tables.Low.Entry(1))

	raw, err := m.ReadPhys(tables.LowFrame.Address()+4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x10, 0x00, 0x00}, raw, "table writes should land in little-endian physical memory")
}

func TestPagingSwitch(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.WritePhys(0x100000, []byte("kern")))

	var ran bool
	err := m.Run(func() {
		tables := buildTables(m)
		m.LoadPageDirectory(tables.DirFrame.Address())
		m.EnablePaging()

		assert.True(t, m.PagingEnabled())

		m.SwitchStack(0xC0114000, func() {
			ran = true

			regs := m.Registers()
			assert.Equal(t, uintptr(0xC0114000), regs.SP)
			assert.Zero(t, regs.BP, "frame-base register should be cleared")

			data, err := m.ReadVirt(testKernelStart, 4)
			require.NoError(t, err)
			assert.Equal(t, []byte("kern"), data)

			m.Halt()
		})
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, m.StackSwitches())
	assert.True(t, m.Registers().Halted)

	t.Run("alias translation", func(t *testing.T) {
		for _, virt := range []uintptr{0, 0x1234, 0x3FFFFF, mem.PageOffset, mem.PageOffset + 0x9500, mem.PageOffset + 0x3FFFFF} {
			phys, err := m.Translate(virt)
			require.NoError(t, err, "virt 0x%x", virt)
			assert.Equal(t, virt&^mem.PageOffset, phys, "virt 0x%x", virt)
		}

		for _, virt := range []uintptr{0x400000, mem.PageOffset + 0x400000, 0x80000000} {
			_, err := m.Translate(virt)
			assert.ErrorIs(t, err, ErrNotMapped, "virt 0x%x", virt)
		}
	})

	t.Run("halted machine refuses to run", func(t *testing.T) {
		assert.ErrorIs(t, m.Run(func() {}), ErrHalted)
	})
}

func TestTripleFault(t *testing.T) {
	tests := []struct {
		name string
		boot func(m *Machine)
	}{
		{
			"empty page directory",
			func(m *Machine) {
				m.LoadPageDirectory(pmm.ScratchPageDirectory.Frame().Address())
				m.EnablePaging()
			},
		},
		{
			"higher half not mapped",
			func(m *Machine) {
				tables := buildTables(m)
				tables.Dir[vmm.HighAliasIndex()] = 0
				m.LoadPageDirectory(tables.DirFrame.Address())
				m.EnablePaging()
			},
		},
		{
			"stack not mapped",
			func(m *Machine) {
				tables := buildTables(m)
				m.LoadPageDirectory(tables.DirFrame.Address())
				m.EnablePaging()
				m.SwitchStack(0xD0000000, func() {})
			},
		},
		{
			"table outside memory",
			func(m *Machine) {
				m.TableAt(pmm.Frame(0x100000))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine()
			err := m.Run(func() {
				tt.boot(m)
				t.Error("expected the machine to fault")
			})
			assert.ErrorIs(t, err, ErrTripleFault)
			assert.True(t, m.Registers().Halted)
		})
	}
}

func TestSwitchStackReturnHalts(t *testing.T) {
	m := newTestMachine()
	err := m.Run(func() {
		m.SwitchStack(0x9000, func() {})
		t.Error("expected SwitchStack not to return")
	})
	require.NoError(t, err)
	assert.True(t, m.Registers().Halted)
}

func TestLoadBootInfo(t *testing.T) {
	m := newTestMachine()
	regions := []Region{
		{Base: 0, Length: 0x9FC00, Type: multiboot.MemAvailable},
		{Base: 0x9FC00, Length: 0x400, Type: multiboot.MemReserved},
		{Base: 0x100000, Length: 0x700000, Type: multiboot.MemAvailable},
	}
	require.NoError(t, m.LoadBootInfo(BootInfo{Addr: 0x9500, MemLowerKb: 639, MemUpperKb: 7168, Regions: regions}))

	ptr := multiboot.PhysicalInfoPtr(0x9500)
	info, kerr := multiboot.ReadInfo(ptr, m.Reader)
	require.Nil(t, kerr)

	assert.True(t, info.HasFlags(multiboot.FlagMemInfo|multiboot.FlagMemMap))
	assert.Equal(t, uint32(639), info.MemLower)
	assert.Equal(t, uint32(7168), info.MemUpper)
	assert.Equal(t, uint32(0x9500+multiboot.InfoSize), info.MmapAddr)

	var got []Region
	kerr = multiboot.VisitMemRegions(ptr, &info, m.Reader, func(e *multiboot.MemoryMapEntry) bool {
		got = append(got, Region{Base: e.PhysAddress, Length: e.Length, Type: e.Type})
		return true
	})
	require.Nil(t, kerr)
	assert.Equal(t, regions, got)

	t.Run("outside memory", func(t *testing.T) {
		assert.ErrorIs(t, m.LoadBootInfo(BootInfo{Addr: 0x7FFFF0}), ErrBadAddress)
	})
}

func TestReadVirtAcrossPages(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.WritePhys(0x5FFE, []byte{1, 2, 3, 4}))

	err := m.Run(func() {
		tables := buildTables(m)
		m.LoadPageDirectory(tables.DirFrame.Address())
		m.EnablePaging()

		data, err := m.ReadVirt(mem.PageOffset+0x5FFE, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, data)

		assert.Nil(t, m.Reader(0x500000, 4), "unmapped reads should yield no data")
		m.Halt()
	})
	require.NoError(t, err)
}
