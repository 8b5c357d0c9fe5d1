package gdt

// Selector is a segment selector: a descriptor index, a table indicator and
// a requested privilege level packed into 16 bits.
type Selector uint16

// TableIndicator selects the descriptor table a selector refers to.
type TableIndicator uint8

const (
	// GlobalTable selects the GDT.
	GlobalTable TableIndicator = iota

	// LocalTable selects the LDT.
	LocalTable
)

// Descriptor indices in the kernel's GDT.
const (
	NullIndex = iota
	KernelCodeIndex
	KernelDataIndex
	UserCodeIndex
	UserDataIndex
	TaskStateIndex

	entryCount
)

// Selectors for the kernel's GDT entries. User selectors carry RPL 3.
const (
	KernelCode = Selector(KernelCodeIndex << 3)
	KernelData = Selector(KernelDataIndex << 3)
	UserCode   = Selector(UserCodeIndex<<3 | 3)
	UserData   = Selector(UserDataIndex<<3 | 3)
	TSS        = Selector(TaskStateIndex << 3)
)

// MakeSelector builds a selector equal to index*8 + ti*4 + rpl. The inputs
// are masked to 13, 1 and 2 bits respectively.
func MakeSelector(rpl uint8, ti TableIndicator, index uint16) Selector {
	return Selector((index&0x1fff)<<3 | uint16(ti&1)<<2 | uint16(rpl&3))
}

// RPL returns the requested privilege level.
func (s Selector) RPL() uint8 {
	return uint8(s & 3)
}

// Table returns the table indicator.
func (s Selector) Table() TableIndicator {
	return TableIndicator(s>>2) & 1
}

// Index returns the descriptor index.
func (s Selector) Index() uint16 {
	return uint16(s >> 3)
}
