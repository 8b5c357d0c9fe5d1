package gate

import (
	"io"

	"github.com/criskell/ark/kernel/kfmt"
)

// Registers contains a snapshot of all register values when an exception
// occurs. The field order mirrors the stack built by the entry trampolines:
// PUSHAL, then the vector and error code, then the frame pushed by the
// processor.
type Registers struct {
	EDI uint32
	ESI uint32
	EBP uint32
	ESP uint32
	EBX uint32
	EDX uint32
	ECX uint32
	EAX uint32

	// Vector is the exception number.
	Vector uint32

	// ErrorCode holds the error code pushed by the processor or zero
	// for exceptions that do not push one.
	ErrorCode uint32

	// The return frame used by IRET.
	EIP    uint32
	CS     uint32
	EFlags uint32

	// UserESP and UserSS are only pushed when the exception interrupted
	// code running at a lower privilege level.
	UserESP uint32
	UserSS  uint32
}

// PrivilegeLevel returns the privilege level of the interrupted code.
func (r *Registers) PrivilegeLevel() uint8 {
	return uint8(r.CS & 3)
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "EAX = %8x EBX = %8x\n", r.EAX, r.EBX)
	kfmt.Fprintf(w, "ECX = %8x EDX = %8x\n", r.ECX, r.EDX)
	kfmt.Fprintf(w, "ESI = %8x EDI = %8x\n", r.ESI, r.EDI)
	kfmt.Fprintf(w, "EBP = %8x ESP = %8x\n", r.EBP, r.ESP)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "EIP = %8x CS  = %4x\n", r.EIP, r.CS)
	kfmt.Fprintf(w, "EFL = %8x ERR = %8x\n", r.EFlags, r.ErrorCode)
	if r.PrivilegeLevel() != 0 {
		kfmt.Fprintf(w, "ESP3 = %8x SS3 = %4x\n", r.UserESP, r.UserSS)
	}
}
