package subsys

import (
	"bootos/kernel/hal/multiboot"
	"bootos/kernel/mem"
	"bootos/kernel/mem/pmm"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var errOutOfMemory = errors.New("boot memory allocator: out of memory")

// frameRange is an inclusive range of physical frames.
type frameRange struct {
	first, last pmm.Frame
}

func (r frameRange) contains(frame pmm.Frame) bool {
	return frame >= r.first && frame <= r.last
}

// physFrameRange returns the frames overlapping the physical byte range
// [start, end). ok is false for an empty range.
func physFrameRange(start, end uintptr) (r frameRange, ok bool) {
	if end <= start {
		return r, false
	}

	pageSizeMinus1 := uintptr(mem.PageSize - 1)
	r.first = pmm.Frame((start & ^pageSizeMinus1) >> mem.PageShift)
	r.last = pmm.Frame(((end+pageSizeMinus1) & ^pageSizeMinus1)>>mem.PageShift) - 1
	return r, true
}

// bootMemAllocator hands out the available frames listed in the bootloader
// memory map in increasing order. Frames that are in use when the kernel
// takes over are never handed out: the kernel image, the kernel stack, the
// multiboot info with its memory map and the boot scratch arena. Frames are
// never freed.
type bootMemAllocator struct {
	bootInfo multiboot.InfoPtr
	info     multiboot.Info
	read     multiboot.MemReader

	allocCount     uint64
	lastAllocFrame pmm.Frame

	kernelFrames uint64
	inUse        []frameRange
}

// init parses the boot info and records the physical frames that are in
// use. The kernel image and stack are given as higher-half addresses.
func (alloc *bootMemAllocator) init(bootInfo multiboot.InfoPtr, read multiboot.MemReader, kernelStart, kernelEnd uintptr, stack mem.StackRegion) error {
	info, kerr := multiboot.ReadInfo(bootInfo, read)
	if kerr != nil {
		return fmt.Errorf("%s: %s", kerr.Module, kerr.Message)
	}

	alloc.bootInfo = bootInfo
	alloc.info = info
	alloc.read = read
	alloc.inUse = alloc.inUse[:0]

	scratch := frameRange{pmm.ScratchPageDirectory.Frame(), pmm.ScratchFrameCount.Frame() - 1}
	alloc.inUse = append(alloc.inUse, scratch)

	alloc.kernelFrames = 0
	if r, ok := physFrameRange(kernelStart-mem.PageOffset, kernelEnd-mem.PageOffset); ok {
		alloc.inUse = append(alloc.inUse, r)
		alloc.kernelFrames = uint64(r.last - r.first + 1)
	}

	if stack.Size != 0 {
		stackStart := stack.Base - mem.PageOffset
		if r, ok := physFrameRange(stackStart, stackStart+uintptr(stack.Size)); ok {
			alloc.inUse = append(alloc.inUse, r)
		}
	}

	// The info pointer may already be relocated; Translate(0) yields the
	// offset that was applied to it.
	infoPhys := bootInfo.Address() - bootInfo.Translate(0)
	if r, ok := physFrameRange(infoPhys, infoPhys+multiboot.InfoSize); ok {
		alloc.inUse = append(alloc.inUse, r)
	}

	if info.HasFlags(multiboot.FlagMemMap) {
		mmapStart := uintptr(info.MmapAddr)
		if r, ok := physFrameRange(mmapStart, mmapStart+uintptr(info.MmapLength)); ok {
			alloc.inUse = append(alloc.inUse, r)
		}
	}

	return nil
}

// visit invokes fn for each page-aligned available region as an inclusive
// frame range.
func (alloc *bootMemAllocator) visit(fn func(start, end pmm.Frame) bool) error {
	kerr := multiboot.VisitMemRegions(alloc.bootInfo, &alloc.info, alloc.read, func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable || region.Length < uint64(mem.PageSize) {
			return true
		}

		pageSizeMinus1 := uint64(mem.PageSize - 1)
		regionStartFrame := pmm.Frame(((region.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mem.PageShift)
		regionEndFrame := pmm.Frame(((region.PhysAddress+region.Length) & ^pageSizeMinus1)>>mem.PageShift) - 1
		if regionEndFrame < regionStartFrame {
			return true
		}

		return fn(regionStartFrame, regionEndFrame)
	})

	if kerr != nil {
		return fmt.Errorf("%s: %s", kerr.Module, kerr.Message)
	}
	return nil
}

// reserved returns true for frames that may not be handed out.
func (alloc *bootMemAllocator) reserved(frame pmm.Frame) bool {
	for _, r := range alloc.inUse {
		if r.contains(frame) {
			return true
		}
	}
	return false
}

// FreeFrames returns the number of frames the allocator can hand out.
func (alloc *bootMemAllocator) FreeFrames() (uint32, error) {
	var count uint32

	err := alloc.visit(func(start, end pmm.Frame) bool {
		for frame := start; frame <= end; frame++ {
			if !alloc.reserved(frame) {
				count++
			}
		}
		return true
	})

	return count, err
}

// AllocFrame returns the next free frame.
func (alloc *bootMemAllocator) AllocFrame() (pmm.Frame, error) {
	var found = pmm.InvalidFrame

	err := alloc.visit(func(start, end pmm.Frame) bool {
		next := start
		if alloc.allocCount != 0 && alloc.lastAllocFrame >= start {
			next = alloc.lastAllocFrame + 1
		}

		for ; next <= end; next++ {
			if !alloc.reserved(next) {
				found = next
				return false
			}
		}
		return true
	})

	if err != nil {
		return pmm.InvalidFrame, err
	}
	if !found.Valid() {
		return pmm.InvalidFrame, errOutOfMemory
	}

	alloc.allocCount++
	alloc.lastAllocFrame = found
	return found, nil
}

// logMemoryMap writes the memory map to the log.
func (alloc *bootMemAllocator) logMemoryMap(log *zap.Logger) {
	var totalFree mem.Size

	kerr := multiboot.VisitMemRegions(alloc.bootInfo, &alloc.info, alloc.read, func(region *multiboot.MemoryMapEntry) bool {
		log.Debug("memory region",
			zap.String("start", fmt.Sprintf("0x%010x", region.PhysAddress)),
			zap.String("end", fmt.Sprintf("0x%010x", region.PhysAddress+region.Length)),
			zap.Uint64("size", region.Length),
			zap.Stringer("type", region.Type),
		)

		if region.Type == multiboot.MemAvailable {
			totalFree += mem.Size(region.Length)
		}
		return true
	})

	if kerr != nil {
		log.Error("cannot scan memory map", zap.String("module", kerr.Module), zap.String("error", kerr.Message))
		return
	}

	log.Info("boot memory map",
		zap.Uint64("available_kb", uint64(totalFree/mem.Kb)),
		zap.Uint64("kernel_frames", alloc.kernelFrames),
		zap.Int("reserved_ranges", len(alloc.inUse)),
	)
}
