// Package usermode performs the one-way transition from ring 0 to ring 3.
//
// The transition builds an IRET frame that selects the user code and data
// segments of the GDT and executes IRET from ring 0. The processor pops the
// frame, switches to the user stack and continues at the entry point with
// CPL 3. Any later fault transfers control back to ring 0 through the TSS
// stack.
package usermode

import (
	"unsafe"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/gdt"
	"github.com/criskell/ark/kernel/mm"
)

// UserRing is the privilege level user code runs at.
const UserRing = 3

var (
	// ErrBadFrame is returned when an IRET frame would not land in ring 3.
	ErrBadFrame = &kernel.Error{Module: "usermode", Message: "iret frame does not select ring 3"}

	// ErrMisalignedStack is returned when the user stack top is not 4-byte aligned.
	ErrMisalignedStack = &kernel.Error{Module: "usermode", Message: "user stack top is not 4-byte aligned"}

	// ErrNoEntry is returned when the user entry point is zero.
	ErrNoEntry = &kernel.Error{Module: "usermode", Message: "user entry point is nil"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	readFlagsFn        = cpu.ReadFlags
	writeFlagsFn       = cpu.WriteFlags
	readCSFn           = cpu.ReadCS
	returnToUserModeFn = cpu.ReturnToUserMode

	// frame holds the IRET frame while the processor pops it. The stack
	// pointer is moved onto it so it must outlive the kernel stack frame
	// of Enter.
	frame Frame

	userStack mm.Stack
)

// Frame is the IRET frame popped by the processor when returning to a less
// privileged ring. Field order and width are fixed by the hardware.
type Frame struct {
	EIP    uint32
	CS     uint32
	EFlags uint32
	ESP    uint32
	SS     uint32
}

// A compile-time check that Frame matches the five dwords IRET pops.
var _ [20 - unsafe.Sizeof(Frame{})]struct{}

// SetIOPrivilegeLevel rewrites the IOPL field of EFLAGS. Code running at a
// CPL numerically less than or equal to the IOPL may use IN, OUT, CLI and
// STI.
func SetIOPrivilegeLevel(level uint8) {
	flags := readFlagsFn()
	flags = flags&^cpu.FlagIOPLMask | uint32(level&3)<<cpu.FlagIOPLShift
	writeFlagsFn(flags)
}

// IOPrivilegeLevel returns the current IOPL.
func IOPrivilegeLevel() uint8 {
	return uint8((readFlagsFn() & cpu.FlagIOPLMask) >> cpu.FlagIOPLShift)
}

// BuildFrame returns an IRET frame that resumes at entry in ring 3 with the
// stack pointer set to stackTop.
func BuildFrame(entry, stackTop uintptr, eflags uint32) Frame {
	return Frame{
		EIP:    uint32(entry),
		CS:     uint32(gdt.UserCode),
		EFlags: eflags | cpu.FlagReserved,
		ESP:    uint32(stackTop),
		SS:     uint32(gdt.UserData),
	}
}

// Validate checks that f lands in ring 3 with a usable stack.
func Validate(f Frame) *kernel.Error {
	switch {
	case f.EIP == 0:
		return ErrNoEntry
	case gdt.Selector(f.CS).RPL() != UserRing, gdt.Selector(f.SS).RPL() != UserRing:
		return ErrBadFrame
	case f.ESP&3 != 0:
		return ErrMisalignedStack
	}
	return nil
}

// Enter raises the IOPL to 3 and transfers control to entry in ring 3 using
// stackTop as the user stack. On success Enter does not return.
//
// IOPL 3 lets user code drive the serial port and the exit port directly.
// It also allows user code to mask interrupts.
func Enter(entry, stackTop uintptr) *kernel.Error {
	f := BuildFrame(entry, stackTop, 0)
	if err := Validate(f); err != nil {
		return err
	}

	SetIOPrivilegeLevel(UserRing)
	f.EFlags = readFlagsFn() | cpu.FlagReserved

	frame = f
	returnToUserModeFn(uintptr(unsafe.Pointer(&frame)))
	return nil
}

// CurrentRing returns the current privilege level taken from CS.
func CurrentRing() uint8 {
	return uint8(readCSFn() & 3)
}

// UserStackTop returns the top of the statically reserved user stack.
func UserStackTop() uintptr {
	return userStack.Top()
}
