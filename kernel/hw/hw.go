// Package hw provides the kernel's window onto hardware registers: port I/O
// through the PortIO capability and bounds-checked views of memory-mapped
// regions. Drivers receive these values instead of touching raw addresses
// or executing port instructions themselves.
package hw

import (
	"unsafe"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/cpu"
)

var (
	// ErrWindowBounds is returned when a register window is requested for
	// an empty or wrapping address range.
	ErrWindowBounds = &kernel.Error{Module: "hw", Message: "register window is empty or wraps the address space"}
)

// PortIO is implemented by values that can access the x86 I/O port space.
type PortIO interface {
	// In8 reads a byte from port.
	In8(port uint16) uint8

	// Out8 writes a byte to port.
	Out8(port uint16, val uint8)

	// Out32 writes a double word to port.
	Out32(port uint16, val uint32)
}

// cpuPorts issues real IN/OUT instructions.
type cpuPorts struct{}

func (cpuPorts) In8(port uint16) uint8         { return cpu.In8(port) }
func (cpuPorts) Out8(port uint16, val uint8)   { cpu.Out8(port, val) }
func (cpuPorts) Out32(port uint16, val uint32) { cpu.Out32(port, val) }

// Ports is the PortIO implementation backed by the processor.
var Ports PortIO = cpuPorts{}

// Window describes a memory-mapped register region. A Window built by
// WindowOf is backed by ordinary memory and holds a reference to it.
type Window struct {
	Base uintptr
	Size uintptr

	cells []uint16
}

// NewWindow returns a Window covering [base, base+size).
func NewWindow(base, size uintptr) (Window, *kernel.Error) {
	if size == 0 || base+size < base {
		return Window{}, ErrWindowBounds
	}

	return Window{Base: base, Size: size}, nil
}

// Cells16 returns the window contents as a slice of 16-bit cells. Any cell
// index outside the window is rejected by the slice bounds check.
func (w Window) Cells16() []uint16 {
	if w.cells != nil {
		return w.cells
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(w.Base)), int(w.Size/2))
}

// WindowOf returns a Window spanning the backing array of cells. It lets
// tests and hosted builds substitute ordinary memory for a device region.
func WindowOf(cells []uint16) Window {
	if len(cells) == 0 {
		return Window{}
	}

	return Window{
		Base:  uintptr(unsafe.Pointer(&cells[0])),
		Size:  uintptr(len(cells)) * 2,
		cells: cells,
	}
}
