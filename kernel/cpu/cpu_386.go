//go:build 386

package cpu

// EnableInterrupts enables interrupt handling (STI).
func EnableInterrupts()

// DisableInterrupts disables interrupt handling (CLI).
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt arrives.
func Halt()

// ReadFlags returns the contents of the EFLAGS register.
func ReadFlags() uint32

// WriteFlags replaces the contents of the EFLAGS register.
func WriteFlags(flags uint32)

// LoadGDT loads the GDTR with the 6-byte pseudo-descriptor stored at
// gdtrAddr.
func LoadGDT(gdtrAddr uintptr)

// ReloadSegments loads DS, ES, FS, GS and SS with the data selector and then
// reloads CS with the code selector using a far return.
func ReloadSegments(code, data uint16)

// LoadIDT loads the IDTR with the 6-byte pseudo-descriptor stored at
// idtrAddr.
func LoadIDT(idtrAddr uintptr)

// LoadTaskRegister loads the task register with the supplied TSS selector.
func LoadTaskRegister(sel uint16)

// ReadCS returns the code segment selector that is currently loaded.
func ReadCS() uint16

// SwitchPDT sets the root page directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page
// directory.
func ActivePDT() uintptr

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint32

// EnablePaging sets the PG bit in CR0.
func EnablePaging()

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// In8 reads a uint8 value from the requested port.
func In8(port uint16) uint8

// Out8 writes a uint8 value to the requested port.
func Out8(port uint16, val uint8)

// Out32 writes a uint32 value to the requested port.
func Out32(port uint16, val uint32)

// ReturnToUserMode loads DS, ES, FS and GS with the SS value of the IRET
// frame stored at frameAddr, points the stack at the frame and executes
// IRET. It never returns.
func ReturnToUserMode(frameAddr uintptr)

// TriggerDivideError executes a 2-byte DIV instruction with a zero divisor.
// If the divide error handler resumes execution past the faulting
// instruction, TriggerDivideError returns normally.
func TriggerDivideError()
