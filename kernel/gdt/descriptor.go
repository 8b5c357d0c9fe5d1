// Package gdt builds and installs the global descriptor table and the task
// state segment for 32-bit protected mode. The table layout is fixed:
//
//	0 null
//	1 kernel code (ring 0)
//	2 kernel data (ring 0)
//	3 user code   (ring 3)
//	4 user data   (ring 3)
//	5 task state segment
package gdt

// SegmentDescriptor is an 8-byte x86 segment descriptor. The base and limit
// are scattered across the descriptor:
//
//	bits  0-15 limit[0:16]
//	bits 16-39 base[0:24]
//	bits 40-47 access byte
//	bits 48-51 limit[16:20]
//	bits 52-55 flags
//	bits 56-63 base[24:32]
type SegmentDescriptor uint64

// Access byte bits.
const (
	AccessAccessed   uint8 = 1 << 0
	AccessRW         uint8 = 1 << 1
	AccessConforming uint8 = 1 << 2
	AccessExecutable uint8 = 1 << 3

	// AccessCodeOrData (the S bit) is set for code and data segments and
	// clear for system descriptors such as the TSS.
	AccessCodeOrData uint8 = 1 << 4

	// AccessDPLShift is the position of the 2-bit descriptor privilege
	// level.
	AccessDPLShift = 5

	AccessPresent uint8 = 1 << 7

	// AccessTypeTSSAvailable is the system type of an available 32-bit
	// TSS. Loading the task register flips it to the busy type.
	AccessTypeTSSAvailable uint8 = 0x9

	// AccessTypeTSSBusy is the system type of a busy 32-bit TSS.
	AccessTypeTSSBusy uint8 = 0xb
)

// Access bytes of the descriptors installed by the kernel.
const (
	AccessKernelCode = AccessPresent | AccessCodeOrData | AccessExecutable | AccessRW
	AccessKernelData = AccessPresent | AccessCodeOrData | AccessRW
	AccessUserCode   = AccessKernelCode | 3<<AccessDPLShift
	AccessUserData   = AccessKernelData | 3<<AccessDPLShift
	AccessTSS        = AccessPresent | AccessTypeTSSAvailable
)

// Flag nibble bits.
const (
	FlagAvailable   uint8 = 1 << 0
	FlagLong        uint8 = 1 << 1
	FlagSize32      uint8 = 1 << 2
	FlagGranularity uint8 = 1 << 3

	// FlagsFlat32 selects 4 KiB granularity and 32-bit operand size.
	FlagsFlat32 = FlagGranularity | FlagSize32
)

// FlatLimit is the 20-bit limit that, combined with FlagGranularity, spans
// the whole 4 GiB address space.
const FlatLimit = uint32(0xfffff)

// EncodeSegment packs a segment descriptor. Only the low 20 bits of limit
// and the low 4 bits of flags are used.
func EncodeSegment(limit, base uint32, access, flags uint8) SegmentDescriptor {
	limit &= FlatLimit
	flags &= 0xf

	return SegmentDescriptor(uint64(limit&0xffff) |
		uint64(base&0xffffff)<<16 |
		uint64(access)<<40 |
		uint64(limit>>16)<<48 |
		uint64(flags)<<52 |
		uint64(base>>24)<<56)
}

// Limit returns the 20-bit segment limit.
func (d SegmentDescriptor) Limit() uint32 {
	return uint32(d&0xffff) | uint32((d>>48)&0xf)<<16
}

// Base returns the 32-bit linear base address.
func (d SegmentDescriptor) Base() uint32 {
	return uint32((d>>16)&0xffffff) | uint32((d>>56)&0xff)<<24
}

// Access returns the access byte.
func (d SegmentDescriptor) Access() uint8 {
	return uint8(d >> 40)
}

// Flags returns the flag nibble.
func (d SegmentDescriptor) Flags() uint8 {
	return uint8(d>>52) & 0xf
}

// Present returns true if the present bit is set.
func (d SegmentDescriptor) Present() bool {
	return d.Access()&AccessPresent != 0
}

// PrivilegeLevel returns the descriptor privilege level.
func (d SegmentDescriptor) PrivilegeLevel() uint8 {
	return (d.Access() >> AccessDPLShift) & 3
}

// IsSystem returns true for system descriptors (TSS, LDT, gates).
func (d SegmentDescriptor) IsSystem() bool {
	return d.Access()&AccessCodeOrData == 0
}

// IsCode returns true for executable code segments.
func (d SegmentDescriptor) IsCode() bool {
	return !d.IsSystem() && d.Access()&AccessExecutable != 0
}

// PageGranular returns true if the limit is expressed in 4 KiB units.
func (d SegmentDescriptor) PageGranular() bool {
	return d.Flags()&FlagGranularity != 0
}

// EffectiveLimit returns the segment limit in bytes, taking granularity into
// account.
func (d SegmentDescriptor) EffectiveLimit() uint32 {
	if d.PageGranular() {
		return d.Limit()<<12 | 0xfff
	}
	return d.Limit()
}
