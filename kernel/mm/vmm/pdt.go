package vmm

import (
	"unsafe"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/mm"
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrMisaligned is returned when a page directory or page table does
	// not start on a page boundary.
	ErrMisaligned = &kernel.Error{Module: "vmm", Message: "page table is not page aligned"}

	// tableAtFn returns the page table stored at a physical address. Page
	// tables live in identity mapped memory so the physical address is
	// also the table's virtual address. It is mocked by tests.
	tableAtFn = func(physAddr uintptr) *PageTable {
		return (*PageTable)(unsafe.Pointer(physAddr))
	}
)

// PageTable maps 1024 consecutive 4 KiB pages.
type PageTable struct {
	entries [entriesPerTable]pageTableEntry
}

// PageDirectory is the root of the 32-bit paging structure. Each entry
// covers 4 MiB of the linear address space.
type PageDirectory struct {
	entries [entriesPerTable]pageTableEntry
}

// Address returns the address of the page table.
func (pt *PageTable) Address() uintptr {
	return uintptr(unsafe.Pointer(&pt.entries[0]))
}

// IdentityMap points entry i at physical address base + i*4 KiB with flags
// set, so the table maps [base, base+4 MiB) onto itself when linked at
// directory index base>>22.
func (pt *PageTable) IdentityMap(base uintptr, flags PageTableEntryFlag) {
	first := mm.FrameFromAddress(base)
	for i := range pt.entries {
		pt.entries[i] = makeEntry(first+mm.Frame(i), flags)
	}
}

// Entry returns the raw value of entry index.
func (pt *PageTable) Entry(index int) uint32 {
	return uint32(pt.entries[index])
}

// Address returns the address of the page directory.
func (pd *PageDirectory) Address() uintptr {
	return uintptr(unsafe.Pointer(&pd.entries[0]))
}

// Link points directory entry index at table.
func (pd *PageDirectory) Link(index int, table *PageTable, flags PageTableEntryFlag) *kernel.Error {
	if !mm.IsPageAligned(table.Address()) {
		return ErrMisaligned
	}

	pd.entries[index] = makeEntry(mm.FrameFromAddress(table.Address()), flags)
	return nil
}

// Entry returns the raw value of directory entry index.
func (pd *PageDirectory) Entry(index int) uint32 {
	return uint32(pd.entries[index])
}

// walk performs a page table walk for virtAddr, invoking walkFn with the
// entry found at each level. The walk stops when walkFn returns false or
// the final level is reached.
func (pd *PageDirectory) walk(virtAddr uintptr, walkFn func(level uint8, pte *pageTableEntry) bool) {
	var (
		level uint8
		pte   = &pd.entries[(virtAddr>>pageLevelShifts[0])&(entriesPerTable-1)]
	)

	for {
		if !walkFn(level, pte) || level == pageLevels-1 || pte.HasFlags(FlagHugePage) {
			return
		}

		level++
		table := tableAtFn(pte.Address())
		pte = &table.entries[(virtAddr>>pageLevelShifts[level])&(entriesPerTable-1)]
	}
}

// Translate returns the physical address that virtAddr maps to or
// ErrInvalidMapping if any entry on the way is not present.
func (pd *PageDirectory) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	var (
		physAddr uintptr
		err      = ErrInvalidMapping
	)

	pd.walk(virtAddr, func(level uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		switch {
		case level == 0 && pte.HasFlags(FlagHugePage):
			physAddr, err = pte.Address()&^(hugePageSize-1)|virtAddr&(hugePageSize-1), nil
		case level == pageLevels-1:
			physAddr, err = pte.Address()|virtAddr&(mm.PageSize-1), nil
		}
		return true
	})

	return physAddr, err
}

// Flags returns the flags that apply to virtAddr at each paging level. The
// processor grants user or write access only if both levels allow it.
func (pd *PageDirectory) Flags(virtAddr uintptr) (PageTableEntryFlag, *kernel.Error) {
	var (
		effective = ^PageTableEntryFlag(0)
		err       = ErrInvalidMapping
	)

	pd.walk(virtAddr, func(level uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		effective &= PageTableEntryFlag(uint32(*pte) &^ ptePhysPageMask)
		if level == pageLevels-1 || pte.HasFlags(FlagHugePage) {
			err = nil
		}
		return true
	})

	if err != nil {
		return 0, err
	}
	return effective & (FlagPresent | FlagRW | FlagUserAccessible), nil
}
