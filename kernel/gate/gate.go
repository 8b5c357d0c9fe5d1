// Package gate manages the interrupt descriptor table: it encodes gate
// descriptors, installs the exception entry points and dispatches
// exceptions to their Go handlers.
package gate

import "github.com/criskell/ark/kernel/gdt"

// Descriptor is an 8-byte 32-bit gate descriptor:
//
//	bits  0-15 handler offset[0:16]
//	bits 16-31 code segment selector
//	bits 32-39 reserved, zero
//	bits 40-47 type and attributes
//	bits 48-63 handler offset[16:32]
type Descriptor uint64

// Type and attribute bits.
const (
	// AttrTypeInterrupt32 is a 32-bit interrupt gate. The processor clears
	// IF when entering the handler.
	AttrTypeInterrupt32 uint8 = 0xe

	// AttrTypeTrap32 is a 32-bit trap gate which leaves IF untouched.
	AttrTypeTrap32 uint8 = 0xf

	// AttrDPLShift is the position of the descriptor privilege level that
	// software INT instructions are checked against.
	AttrDPLShift = 5

	AttrPresent uint8 = 1 << 7

	// AttrKernelInterrupt is a present ring-0 32-bit interrupt gate.
	AttrKernelInterrupt = AttrPresent | AttrTypeInterrupt32
)

// EncodeGate packs a gate descriptor.
func EncodeGate(offset uint32, sel gdt.Selector, attr uint8) Descriptor {
	return Descriptor(uint64(offset&0xffff) |
		uint64(sel)<<16 |
		uint64(attr)<<40 |
		uint64(offset>>16)<<48)
}

// BuildEntry returns a present ring-0 interrupt gate that transfers control
// to handler through the kernel code segment.
func BuildEntry(handler uintptr) Descriptor {
	return EncodeGate(uint32(handler), gdt.KernelCode, AttrKernelInterrupt)
}

// Offset returns the handler address.
func (d Descriptor) Offset() uint32 {
	return uint32(d&0xffff) | uint32(d>>48)<<16
}

// Selector returns the code segment selector used to run the handler.
func (d Descriptor) Selector() gdt.Selector {
	return gdt.Selector(d >> 16)
}

// Attributes returns the type and attribute byte.
func (d Descriptor) Attributes() uint8 {
	return uint8(d >> 40)
}

// Present returns true if the gate is present.
func (d Descriptor) Present() bool {
	return d.Attributes()&AttrPresent != 0
}

// PrivilegeLevel returns the gate's descriptor privilege level.
func (d Descriptor) PrivilegeLevel() uint8 {
	return (d.Attributes() >> AttrDPLShift) & 3
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction or when the quotient does not fit the destination.
	DivideByZero = InterruptNumber(0)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = InterruptNumber(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DoubleFault occurs when an exception is raised while the CPU is
	// trying to deliver a prior exception.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when loading a selector whose descriptor is
	// not marked present.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when the stack segment limit checks fail.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault occurs: segment
	// privilege, type or limit violations and privileged instructions
	// executed outside ring 0.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory or page table entry
	// is not present or when a privilege and/or RW protection check fails.
	PageFaultException = InterruptNumber(14)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligned memory access is performed at ring 3.
	AlignmentCheck = InterruptNumber(17)
)

// pushesErrorCode returns true for the exceptions where the processor pushes
// an error code before the return frame.
func pushesErrorCode(num InterruptNumber) bool {
	switch num {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault, GPFException, PageFaultException, AlignmentCheck:
		return true
	}
	return false
}
