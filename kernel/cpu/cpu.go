// Package cpu exposes the privileged x86 instructions used by the kernel as
// named primitives. On 386 each primitive is a thin assembly stub; on other
// architectures a hosted stand-in emulates the register state so that code
// depending on this package can be built and tested on a development host.
package cpu

var (
	cpuidFn = ID
)

const (
	// FlagInterrupt is the EFLAGS interrupt enable bit (IF).
	FlagInterrupt = uint32(1 << 9)

	// FlagIOPLShift is the position of the two-bit I/O privilege level
	// field inside EFLAGS.
	FlagIOPLShift = 12

	// FlagIOPLMask selects the I/O privilege level field inside EFLAGS.
	FlagIOPLMask = uint32(3 << FlagIOPLShift)

	// FlagReserved is the EFLAGS bit 1 which always reads as 1.
	FlagReserved = uint32(1 << 1)

	// CR0Paging is the CR0 paging enable bit (PG).
	CR0Paging = uint32(1 << 31)

	// CR0ProtectedMode is the CR0 protection enable bit (PE).
	CR0ProtectedMode = uint32(1 << 0)
)

// Vendor writes the 12-character CPU vendor string reported by CPUID leaf 0
// into buf and returns the highest supported standard leaf.
func Vendor(buf *[12]byte) uint32 {
	maxLeaf, ebx, ecx, edx := cpuidFn(0)
	for i, reg := range [3]uint32{ebx, edx, ecx} {
		buf[i*4+0] = byte(reg)
		buf[i*4+1] = byte(reg >> 8)
		buf[i*4+2] = byte(reg >> 16)
		buf[i*4+3] = byte(reg >> 24)
	}

	return maxLeaf
}
