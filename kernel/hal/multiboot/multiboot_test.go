package multiboot

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

const (
	testInfoAddr = 0x9000
	testMmapAddr = 0x9100
)

type testRegion struct {
	base, length uint64
	typ          uint32
}

// mockMemory returns a MemReader backed by a zeroed 64K buffer whose first
// byte lives at address base, together with the buffer.
func mockMemory(base uintptr) (MemReader, []byte) {
	buf := make([]byte, 64*1024)
	return func(addr uintptr, size uint32) []byte {
		if addr < base || addr-base >= uintptr(len(buf)) {
			return nil
		}

		end := addr - base + uintptr(size)
		if end > uintptr(len(buf)) {
			end = uintptr(len(buf))
		}
		return buf[addr-base : end]
	}, buf
}

func writeInfo(buf []byte, flags InfoFlag, memLower, memUpper uint32, regions []testRegion) {
	le := binary.LittleEndian
	info := buf[testInfoAddr:]
	le.PutUint32(info[0:], uint32(flags))
	le.PutUint32(info[4:], memLower)
	le.PutUint32(info[8:], memUpper)
	le.PutUint32(info[44:], uint32(len(regions)*24))
	le.PutUint32(info[48:], testMmapAddr)

	mmap := buf[testMmapAddr:]
	for i, r := range regions {
		entry := mmap[i*24:]
		le.PutUint32(entry[0:], 20)
		le.PutUint64(entry[4:], r.base)
		le.PutUint64(entry[12:], r.length)
		le.PutUint32(entry[20:], r.typ)
	}
}

func TestReadInfo(t *testing.T) {
	read, buf := mockMemory(0)
	writeInfo(buf, FlagMemInfo|FlagMemMap, 639, 129920, nil)

	info, err := ReadInfo(PhysicalInfoPtr(testInfoAddr), read)
	if err != nil {
		t.Fatal(err)
	}

	if !info.HasFlags(FlagMemInfo | FlagMemMap) {
		t.Errorf("expected mem info and mem map flags to be set; got 0x%x", info.Flags)
	}

	if info.HasFlags(FlagCmdLine) {
		t.Error("expected cmdline flag to be clear")
	}

	if info.MemLower != 639 || info.MemUpper != 129920 {
		t.Errorf("expected mem_lower/mem_upper to be 639/129920; got %d/%d", info.MemLower, info.MemUpper)
	}

	if info.MmapAddr != testMmapAddr {
		t.Errorf("expected mmap_addr to be 0x%x; got 0x%x", testMmapAddr, info.MmapAddr)
	}
}

func TestReadInfoTruncated(t *testing.T) {
	read := func(_ uintptr, _ uint32) []byte { return make([]byte, InfoSize-1) }

	if _, err := ReadInfo(PhysicalInfoPtr(testInfoAddr), read); err != errShortInfo {
		t.Fatalf("expected errShortInfo; got %v", err)
	}
}

func TestVisitMemRegions(t *testing.T) {
	regions := []testRegion{
		{0, 0x9fc00, 1},
		{0x9fc00, 0x400, 2},
		{0x100000, 0x7ee0000, 1},
		{0xfffc0000, 0x40000, 2},
		{0x7fe0000, 0x20000, 9},
	}

	read, buf := mockMemory(0)
	writeInfo(buf, FlagMemMap, 0, 0, regions)
	ptr := PhysicalInfoPtr(testInfoAddr)

	info, err := ReadInfo(ptr, read)
	if err != nil {
		t.Fatal(err)
	}

	var visited []MemoryMapEntry
	if err := VisitMemRegions(ptr, &info, read, func(e *MemoryMapEntry) bool {
		visited = append(visited, *e)
		return true
	}); err != nil {
		t.Fatal(err)
	}

	if len(visited) != len(regions) {
		t.Fatalf("expected to visit %d regions; visited %d", len(regions), len(visited))
	}

	for i, r := range regions {
		expType := MemoryEntryType(r.typ)
		if r.typ >= uint32(memUnknown) {
			expType = MemReserved
		}

		if got := visited[i]; got.PhysAddress != r.base || got.Length != r.length || got.Type != expType {
			t.Errorf("[region %d] expected {0x%x 0x%x %s}; got {0x%x 0x%x %s}", i, r.base, r.length, expType, got.PhysAddress, got.Length, got.Type)
		}
	}

	t.Run("visitor aborts scan", func(t *testing.T) {
		count := 0
		_ = VisitMemRegions(ptr, &info, read, func(_ *MemoryMapEntry) bool {
			count++
			return false
		})

		if count != 1 {
			t.Fatalf("expected the visitor to be called once; got %d", count)
		}
	})

	t.Run("missing memory map", func(t *testing.T) {
		noMap := info
		noMap.Flags = FlagMemInfo
		if err := VisitMemRegions(ptr, &noMap, read, func(_ *MemoryMapEntry) bool { return true }); err != errNoMemoryInfo {
			t.Fatalf("expected errNoMemoryInfo; got %v", err)
		}
	})

	t.Run("truncated entry", func(t *testing.T) {
		short := info
		short.MmapLength = 30
		if err := VisitMemRegions(ptr, &short, read, func(_ *MemoryMapEntry) bool { return true }); err != errShortMemMap {
			t.Fatalf("expected errShortMemMap; got %v", err)
		}
	})
}

func TestVisitMemRegionsThroughRelocatedPointer(t *testing.T) {
	const offset = uintptr(0xC0000000)

	physRead, buf := mockMemory(0)
	writeInfo(buf, FlagMemMap, 0, 0, []testRegion{{0x100000, 0x1000000, 1}})

	// After relocation only the higher-half view of memory is readable.
	virtRead := func(addr uintptr, size uint32) []byte {
		if addr < offset {
			t.Fatalf("unexpected read through physical address 0x%x", addr)
		}
		return physRead(addr-offset, size)
	}

	ptr, err := PhysicalInfoPtr(testInfoAddr).Relocate(offset)
	if err != nil {
		t.Fatal(err)
	}

	info, err := ReadInfo(ptr, virtRead)
	if err != nil {
		t.Fatal(err)
	}

	var total uint64
	if err := VisitMemRegions(ptr, &info, virtRead, func(e *MemoryMapEntry) bool {
		total += e.Length
		return true
	}); err != nil {
		t.Fatal(err)
	}

	if exp := uint64(0x1000000); total != exp {
		t.Fatalf("expected total length 0x%x; got 0x%x", exp, total)
	}
}

func TestValidMagic(t *testing.T) {
	if !ValidMagic(0x2BADB002) {
		t.Error("expected the multiboot magic to be accepted")
	}

	if ValidMagic(0x36d76289) {
		t.Error("expected the multiboot2 magic to be rejected")
	}
}

func TestMemoryEntryTypeString(t *testing.T) {
	specs := []struct {
		input MemoryEntryType
		exp   string
	}{
		{MemAvailable, "available"},
		{MemReserved, "reserved"},
		{MemAcpiReclaimable, "ACPI (reclaimable)"},
		{MemNvs, "NVS"},
		{MemoryEntryType(123), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.input.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

// directMemory stands in for physical memory in DirectReader tests. It is a
// global so that its address is not a Go heap pointer.
var directMemory [testMmapAddr + 0x100]byte

func TestDirectReader(t *testing.T) {
	if got := DirectReader(0, 0); got != nil {
		t.Fatalf("expected a zero-sized read to return nil; got %v", got)
	}

	writeInfo(directMemory[:], FlagMemInfo, 639, 31744, nil)

	base := uintptr(unsafe.Pointer(&directMemory)) + testInfoAddr
	info, err := ReadInfo(PhysicalInfoPtr(base), DirectReader)
	if err != nil {
		t.Fatal(err)
	}

	if info.MemLower != 639 || info.MemUpper != 31744 {
		t.Errorf("expected mem_lower/mem_upper to be 639/31744; got %d/%d", info.MemLower, info.MemUpper)
	}
}
