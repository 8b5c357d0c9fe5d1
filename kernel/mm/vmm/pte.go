package vmm

import "github.com/criskell/ark/kernel/mm"

// PageTableEntryFlag describes a flag that can be applied to a page table
// or page directory entry.
type PageTableEntryFlag uint32

// pageTableEntry describes a 32-bit page directory or page table entry.
// These entries encode a 4 KiB aligned physical address and a set of flags.
type pageTableEntry uint32

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) == uint32(flags)
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uint32(*pte) | uint32(flags))
}

// Address returns the physical address stored in the entry.
func (pte pageTableEntry) Address() uintptr {
	return uintptr(uint32(pte) & ptePhysPageMask)
}

// Frame returns the physical page frame that this page table entry points to.
func (pte pageTableEntry) Frame() mm.Frame {
	return mm.FrameFromAddress(pte.Address())
}

// SetFrame updates the page table entry to point to the given physical frame.
func (pte *pageTableEntry) SetFrame(frame mm.Frame) {
	*pte = pageTableEntry((uint32(*pte) &^ ptePhysPageMask) | uint32(frame.Address()))
}

// makeEntry returns an entry pointing at frame with flags set.
func makeEntry(frame mm.Frame, flags PageTableEntryFlag) pageTableEntry {
	var pte pageTableEntry
	pte.SetFrame(frame)
	pte.SetFlags(flags)
	return pte
}
