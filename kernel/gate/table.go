package gate

import (
	"encoding/binary"
	"unsafe"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/hw"
	"github.com/criskell/ark/kernel/irq"
	"github.com/criskell/ark/kernel/kfmt"
)

// entryCount is the number of vectors in the IDT.
const entryCount = 256

// Handler processes an exception. When a handler returns, the (possibly
// modified) register snapshot is restored and execution resumes at
// regs.EIP.
type Handler func(regs *Registers)

var (
	// ErrAlreadyInstalled is returned when Install is called more than once.
	ErrAlreadyInstalled = &kernel.Error{Module: "idt", Message: "interrupt descriptor table already installed"}

	errUnhandledException = &kernel.Error{Module: "idt", Message: "unhandled exception"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadIDTFn          = cpu.LoadIDT
	enableInterruptsFn = irq.Enable
	entryPointFn       = entryPoint
	panicFn            = kfmt.Panic

	// handlers holds the Go handler for each vector.
	handlers [entryCount]Handler

	// exceptionCounts records how many times each vector was dispatched.
	exceptionCounts [entryCount]uint32

	// dumpWriter prefixes register dumps emitted by exception handlers.
	dumpWriter = kfmt.PrefixWriter{Sink: kfmt.Output, Prefix: []byte("[idt] ")}
)

// Table is the interrupt descriptor table. A Table must not move once
// installed so it is kept in a package-level variable by its owner.
type Table struct {
	entries [entryCount]Descriptor

	// pointer is the 6-byte pseudo-descriptor consumed by LIDT.
	pointer [6]byte

	installed bool
}

// Entry returns the gate stored for num.
func (t *Table) Entry(num InterruptNumber) Descriptor {
	return t.entries[num]
}

// Pointer returns the pseudo-descriptor describing the table.
func (t *Table) Pointer() [6]byte {
	binary.LittleEndian.PutUint16(t.pointer[0:], uint16(unsafe.Sizeof(t.entries)-1))
	binary.LittleEndian.PutUint32(t.pointer[2:], uint32(uintptr(unsafe.Pointer(&t.entries[0]))))
	return t.pointer
}

// Installed returns true once Install has succeeded.
func (t *Table) Installed() bool {
	return t.installed
}

// Install populates the divide error, double fault and general protection
// fault gates, loads the IDTR, masks both legacy PICs and only then enables
// interrupts. Every other vector is left non-present.
func (t *Table) Install(ports hw.PortIO) *kernel.Error {
	if t.installed {
		return ErrAlreadyInstalled
	}

	for _, exception := range []struct {
		num     InterruptNumber
		handler Handler
	}{
		{DivideByZero, divideErrorHandler},
		{DoubleFault, doubleFaultHandler},
		{GPFException, generalProtectionFaultHandler},
	} {
		t.entries[exception.num] = BuildEntry(entryPointFn(exception.num))
		HandleException(exception.num, exception.handler)
	}

	t.Pointer()
	loadIDTFn(uintptr(unsafe.Pointer(&t.pointer)))
	MaskPIC(ports)
	enableInterruptsFn()
	t.installed = true

	return nil
}

// HandleException registers the Go handler invoked when exception num is
// dispatched. It replaces any previously registered handler.
func HandleException(num InterruptNumber, handler Handler) {
	handlers[num] = handler
}

// ExceptionCount returns how many times exception num has been dispatched.
func ExceptionCount(num InterruptNumber) uint32 {
	return exceptionCounts[num]
}

// dispatchException is invoked by the entry trampolines with a pointer to
// the register snapshot they built on the stack.
//
//go:nosplit
func dispatchException(regs *Registers) {
	num := InterruptNumber(regs.Vector)
	exceptionCounts[num]++

	if handler := handlers[num]; handler != nil {
		handler(regs)
		return
	}

	kfmt.Printf("[idt] unhandled exception %d at 0x%8x\n", regs.Vector, regs.EIP)
	regs.DumpTo(&dumpWriter)
	panicFn(errUnhandledException)
}
