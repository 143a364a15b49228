// Package multiboot reads the multiboot (v1) information structure that the
// bootloader passes to the kernel entry point.
package multiboot

import (
	"bootos/kernel"
	"encoding/binary"
)

// Magic is the value a multiboot compliant bootloader leaves in EAX.
const Magic = uint32(0x2BADB002)

// InfoFlag describes which optional fields of Info are valid.
type InfoFlag uint32

// nolint
const (
	FlagMemInfo InfoFlag = 1 << iota
	FlagBootDevice
	FlagCmdLine
	FlagMods
	FlagAoutSyms
	FlagElfSections
	FlagMemMap
)

const (
	// InfoSize is the size of the fixed part of the info structure that
	// this package decodes (up to and including MmapAddr).
	InfoSize = 52

	// mmapEntryMinSize is the size of a memory map entry excluding its
	// leading size field.
	mmapEntryMinSize = 20
)

var (
	errShortInfo    = &kernel.Error{Module: "multiboot", Message: "info structure is truncated"}
	errShortMemMap  = &kernel.Error{Module: "multiboot", Message: "memory map entry is truncated"}
	errNoMemoryInfo = &kernel.Error{Module: "multiboot", Message: "bootloader did not supply a memory map"}
)

// Info describes the fixed part of the multiboot information structure. The
// field layout matches the structure in memory.
type Info struct {
	Flags      InfoFlag
	MemLower   uint32
	MemUpper   uint32
	BootDevice uint32
	CmdLine    uint32
	ModsCount  uint32
	ModsAddr   uint32
	Syms       [4]uint32
	MmapLength uint32
	MmapAddr   uint32
}

// HasFlags returns true if all of the input flags are set.
func (i *Info) HasFlags(flags InfoFlag) bool {
	return i.Flags&flags == flags
}

// ValidMagic returns true if magic is the value a multiboot compliant
// bootloader passes to the kernel.
func ValidMagic(magic uint32) bool {
	return magic == Magic
}

// MemReader returns a view of size bytes of memory starting at addr. The
// address is interpreted in whatever addressing mode is currently active.
type MemReader func(addr uintptr, size uint32) []byte

// ReadInfo decodes the info structure that ptr points to.
func ReadInfo(ptr InfoPtr, read MemReader) (Info, *kernel.Error) {
	return decodeInfo(read(ptr.Address(), InfoSize))
}

func decodeInfo(raw []byte) (Info, *kernel.Error) {
	var info Info

	if len(raw) < InfoSize {
		return info, errShortInfo
	}

	le := binary.LittleEndian
	info.Flags = InfoFlag(le.Uint32(raw[0:]))
	info.MemLower = le.Uint32(raw[4:])
	info.MemUpper = le.Uint32(raw[8:])
	info.BootDevice = le.Uint32(raw[12:])
	info.CmdLine = le.Uint32(raw[16:])
	info.ModsCount = le.Uint32(raw[20:])
	info.ModsAddr = le.Uint32(raw[24:])
	for i := range info.Syms {
		info.Syms[i] = le.Uint32(raw[28+4*i:])
	}
	info.MmapLength = le.Uint32(raw[44:])
	info.MmapAddr = le.Uint32(raw[48:])

	return info, nil
}
