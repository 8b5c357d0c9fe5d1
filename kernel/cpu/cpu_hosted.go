//go:build !386

package cpu

import "github.com/criskell/ark/kernel"

var (
	// ErrHosted is raised by primitives that transfer control (halt, far
	// return, iret, fault injection) and therefore cannot be emulated by
	// the hosted build.
	ErrHosted = &kernel.Error{Module: "cpu", Message: "privileged control transfer is unavailable on the hosted build"}

	hosted = hostedState{
		flags: FlagReserved,
		cr0:   CR0ProtectedMode,
		cs:    0x08,
	}
)

// hostedState emulates the subset of the register file that the kernel
// reads back after writing it.
type hostedState struct {
	flags, cr0 uint32
	cr3        uintptr
	gdtr, idtr uintptr
	tr, cs     uint16
}

// ResetHosted restores the emulated register file to its power-on values.
func ResetHosted() {
	hosted = hostedState{flags: FlagReserved, cr0: CR0ProtectedMode, cs: 0x08}
}

// HostedDescriptorTables returns the addresses most recently passed to
// LoadGDT and LoadIDT and the selector passed to LoadTaskRegister.
func HostedDescriptorTables() (gdtr, idtr uintptr, tr uint16) {
	return hosted.gdtr, hosted.idtr, hosted.tr
}

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() { hosted.flags |= FlagInterrupt }

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() { hosted.flags &^= FlagInterrupt }

// Halt stops instruction execution.
func Halt() { panic(ErrHosted) }

// ReadFlags returns the contents of the EFLAGS register.
func ReadFlags() uint32 { return hosted.flags }

// WriteFlags replaces the contents of the EFLAGS register.
func WriteFlags(flags uint32) { hosted.flags = flags | FlagReserved }

// LoadGDT loads the GDTR from the pseudo-descriptor at gdtrAddr.
func LoadGDT(gdtrAddr uintptr) { hosted.gdtr = gdtrAddr }

// ReloadSegments reloads the segment registers.
func ReloadSegments(code, data uint16) { hosted.cs = code }

// LoadIDT loads the IDTR from the pseudo-descriptor at idtrAddr.
func LoadIDT(idtrAddr uintptr) { hosted.idtr = idtrAddr }

// LoadTaskRegister loads the task register.
func LoadTaskRegister(sel uint16) { hosted.tr = sel }

// ReadCS returns the current code segment selector.
func ReadCS() uint16 { return hosted.cs }

// SwitchPDT sets the root page directory.
func SwitchPDT(pdtPhysAddr uintptr) { hosted.cr3 = pdtPhysAddr }

// ActivePDT returns the address of the active page directory.
func ActivePDT() uintptr { return hosted.cr3 }

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint32 { return hosted.cr0 }

// EnablePaging sets the PG bit in CR0.
func EnablePaging() { hosted.cr0 |= CR0Paging }

// ID reports a GenuineIntel CPU with a maximum standard leaf of 1.
func ID(leaf uint32) (uint32, uint32, uint32, uint32) {
	if leaf != 0 {
		return 0, 0, 0, 0
	}
	return 1, 0x756e6547, 0x6c65746e, 0x49656e69
}

// In8 reads from a floating bus.
func In8(port uint16) uint8 { return 0xff }

// Out8 discards the written value.
func Out8(port uint16, val uint8) {}

// Out32 discards the written value.
func Out32(port uint16, val uint32) {}

// ReturnToUserMode cannot be emulated.
func ReturnToUserMode(frameAddr uintptr) { panic(ErrHosted) }

// TriggerDivideError cannot be emulated.
func TriggerDivideError() { panic(ErrHosted) }
