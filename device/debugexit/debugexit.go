// Package debugexit reports a final status through the ISA debug exit device
// provided by emulators. Writing a code to the exit port terminates the
// virtual machine with status (code << 1) | 1.
package debugexit

import (
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/hw"
)

// Port is the I/O port the debug exit device listens on.
const Port = uint16(0xf4)

// Code is a value written to the exit port.
type Code uint32

// Exit codes understood by the host tooling.
const (
	Success Code = 0x10
	Failed  Code = 0x11
)

// haltFn is mocked by tests.
var haltFn = cpu.Halt

// Status returns the process exit status an emulator reports for code.
func (c Code) Status() int {
	return int(c)<<1 | 1
}

// String returns a short name for the code.
func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exit writes code to the exit port. Without an exit device the write is
// ignored and Exit halts the CPU instead.
func Exit(ports hw.PortIO, code Code) {
	ports.Out32(Port, uint32(code))
	haltFn()
}
