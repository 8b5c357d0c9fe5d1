package vmm

const (
	// pageLevels indicates the number of page levels used by 32-bit
	// non-PAE paging: a page directory and page tables.
	pageLevels = 2

	// entriesPerTable is the number of entries in a page directory or a
	// page table.
	entriesPerTable = 1024

	// ptePhysPageMask extracts the physical frame address from a page
	// table entry. Bits 12-31 hold the address.
	ptePhysPageMask = uint32(0xfffff000)

	// hugePageSize is the size of the region mapped by a page directory
	// entry with FlagHugePage set.
	hugePageSize = uintptr(4 << 20)

	// IdentityMapSize is the size of the identity mapped region set up by
	// Init: one page table's worth of 4 KiB pages.
	IdentityMapSize = uintptr(entriesPerTable) << 12
)

// pageLevelShifts defines the shift required to access each page table
// component of a virtual address.
var pageLevelShifts = [pageLevels]uint8{
	22,
	12,
}

const (
	// FlagPresent is set when the page is available in memory and not swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode code can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set in a page directory entry that maps a 4 MiB
	// page directly instead of pointing to a page table.
	FlagHugePage

	// FlagGlobal prevents the TLB from flushing the cached memory address
	// for this page when swapping page tables by updating the CR3 register.
	FlagGlobal
)
