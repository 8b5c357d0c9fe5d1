package kfmt

import (
	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/cpu"
)

var (
	// The following hooks are mocked by tests.
	cpuHaltFn           = cpu.Halt
	disableInterruptsFn = cpu.DisableInterrupts

	// errFatal carries the message of panics raised with a plain string or
	// a foreign error value.
	errFatal = &kernel.Error{Module: "kernel", Message: "unknown cause"}
)

// asKernelError maps the value passed to Panic to a kernel error without
// allocating. It returns nil for values it cannot describe.
func asKernelError(e interface{}) *kernel.Error {
	switch t := e.(type) {
	case *kernel.Error:
		return t
	case string:
		errFatal.Message = t
	case error:
		errFatal.Message = t.Error()
	default:
		return nil
	}
	return errFatal
}

// Panic masks interrupts, reports e on the output sink and halts the CPU.
// It is the terminal path for faults the kernel cannot resume from. Calls to
// Panic never return on the target.
func Panic(e interface{}) {
	disableInterruptsFn()

	if err := asKernelError(e); err != nil {
		Printf("\n[%s] fatal: %s\n", err.Module, err.Message)
	} else {
		Printf("\n")
	}
	Printf("system halted\n")

	for {
		cpuHaltFn()
		if !keepHaltingFn() {
			return
		}
	}
}
