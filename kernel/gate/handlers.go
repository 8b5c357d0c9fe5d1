package gate

import (
	"unsafe"

	"golang.org/x/arch/x86/x86asm"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/kfmt"
	"github.com/criskell/ark/kernel/mm/vmm"
)

// maxInstructionLen is the architectural limit on x86 instruction length.
const maxInstructionLen = 15

var (
	errUndecodableFault  = &kernel.Error{Module: "idt", Message: "divide error at an undecodable instruction"}
	errUnexpectedDivide  = &kernel.Error{Module: "idt", Message: "divide error raised by an instruction that does not divide"}
	errDoubleFault       = &kernel.Error{Module: "idt", Message: "double fault"}
	errGeneralProtection = &kernel.Error{Module: "idt", Message: "general protection fault"}

	// readCodeFn is mocked by tests.
	readCodeFn = readCode
)

// codeLen returns how many instruction bytes can be read at eip without
// leaving the identity mapped region.
func codeLen(eip uint32) int {
	if uintptr(eip) >= vmm.IdentityMapSize {
		return 0
	}
	if left := vmm.IdentityMapSize - uintptr(eip); left < maxInstructionLen {
		return int(left)
	}
	return maxInstructionLen
}

// readCode returns the bytes starting at the linear address eip.
func readCode(eip uint32) []byte {
	n := codeLen(eip)
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(eip))), n)
}

// faultingInstruction decodes the 32-bit instruction located at eip. The
// decoder reports a zero opcode for truncated input.
func faultingInstruction(eip uint32) (x86asm.Inst, *kernel.Error) {
	inst, err := x86asm.Decode(readCodeFn(eip), 32)
	if err != nil || inst.Len == 0 || inst.Op == 0 {
		return inst, errUndecodableFault
	}

	return inst, nil
}

// divideErrorHandler reports the fault and resumes execution at the
// instruction that follows the faulting one. The resume address is derived
// from the decoded instruction length; if the instruction cannot be decoded
// or is not a divide the handler reports it and halts.
func divideErrorHandler(regs *Registers) {
	kfmt.Printf("[idt] divide error at 0x%8x (ring %d)\n", regs.EIP, regs.PrivilegeLevel())

	inst, err := faultingInstruction(regs.EIP)
	if err == nil {
		switch inst.Op {
		case x86asm.DIV, x86asm.IDIV, x86asm.AAM:
		default:
			err = errUnexpectedDivide
		}
	}

	if err != nil {
		regs.DumpTo(&dumpWriter)
		panicFn(err)
		return
	}

	regs.EIP += uint32(inst.Len)
	kfmt.Printf("[idt] skipping %d byte instruction, resuming at 0x%8x\n", inst.Len, regs.EIP)
}

// doubleFaultHandler is invoked when an exception is raised while the
// processor is delivering another one. The interrupted state is not
// restartable.
func doubleFaultHandler(regs *Registers) {
	kfmt.Printf("[idt] double fault at 0x%8x\n", regs.EIP)
	regs.DumpTo(&dumpWriter)
	panicFn(errDoubleFault)
}

// generalProtectionFaultHandler is invoked for various reasons:
//   - segment errors (privilege, type or limit violations)
//   - executing privileged instructions outside ring-0
//   - port I/O above the I/O privilege level
func generalProtectionFaultHandler(regs *Registers) {
	code := SelectorErrorCode(regs.ErrorCode)

	kfmt.Printf("[idt] general protection fault at 0x%8x (ring %d)\n", regs.EIP, regs.PrivilegeLevel())
	kfmt.Printf("[idt] error code 0x%x: external=%t table=%s index=%d\n",
		regs.ErrorCode, code.External(), code.Table(), code.Index())
	regs.DumpTo(&dumpWriter)
	panicFn(errGeneralProtection)
}

// SelectorErrorCode is the error code format pushed by segment related
// exceptions. A zero code means the fault was not caused by a selector.
type SelectorErrorCode uint32

// External returns true if the fault was caused by an event external to
// the program.
func (c SelectorErrorCode) External() bool {
	return c&1 != 0
}

// Table returns the name of the descriptor table the selector index refers
// to.
func (c SelectorErrorCode) Table() string {
	switch {
	case c&2 != 0:
		return "IDT"
	case c&4 != 0:
		return "LDT"
	}
	return "GDT"
}

// Index returns the descriptor index of the selector that caused the fault.
func (c SelectorErrorCode) Index() uint16 {
	return uint16(c>>3) & 0x1fff
}
