// Package mm contains the memory units shared by the paging and protection
// code: physical frames, virtual pages and statically reserved stacks.
package mm

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// StackSize is the size of each statically reserved stack.
	StackSize = 16 * 1024

	// stackAlign is the alignment of a stack top.
	stackAlign = uintptr(16)
)

// Frame describes a physical memory page index.
type Frame uintptr

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << PageShift
}

// FrameFromAddress returns the Frame that contains physAddr.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(physAddr >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p) << PageShift
}

// PageFromAddress returns the Page that contains virtAddr.
func PageFromAddress(virtAddr uintptr) Page {
	return Page(virtAddr >> PageShift)
}

// IsPageAligned returns true if addr is a multiple of PageSize.
func IsPageAligned(addr uintptr) bool {
	return addr&(PageSize-1) == 0
}
