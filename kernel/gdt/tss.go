package gdt

import (
	"unsafe"

	"github.com/criskell/ark/kernel/mm"
)

// TaskStateSize is the size of a 32-bit TSS in bytes.
const TaskStateSize = 104

// TaskState is the 32-bit task state segment. The kernel does not use
// hardware task switching; the TSS only supplies the stack the processor
// switches to when an interrupt arrives while running at ring 3. Segment
// selector fields occupy the low 16 bits of their double word.
type TaskState struct {
	Link uint32
	ESP0 uint32
	SS0  uint32
	ESP1 uint32
	SS1  uint32
	ESP2 uint32
	SS2  uint32
	CR3  uint32

	EIP    uint32
	EFlags uint32
	EAX    uint32
	ECX    uint32
	EDX    uint32
	EBX    uint32
	ESP    uint32
	EBP    uint32
	ESI    uint32
	EDI    uint32

	ES  uint32
	CS  uint32
	SS  uint32
	DS  uint32
	FS  uint32
	GS  uint32
	LDT uint32

	Trap uint16

	// IOMapBase is the offset of the I/O permission bitmap. A value at or
	// beyond the segment limit means there is no bitmap.
	IOMapBase uint16
}

var _ = [1]struct{}{}[unsafe.Sizeof(TaskState{})-TaskStateSize]

// kernelStack is the ring 0 stack the processor switches to when an
// interrupt or exception is taken while running at ring 3. It is owned by the
// TSS and shared with nothing else.
var kernelStack mm.Stack

// KernelStack returns the reserved ring 0 stack region.
func KernelStack() *mm.Stack {
	return &kernelStack
}

// KernelStackTop returns the value InstallTSS stores in ESP0.
func KernelStackTop() uintptr {
	return kernelStack.Top()
}

// SetKernelStack sets the ring-0 stack segment and pointer loaded on a
// privilege change to ring 0.
func (tss *TaskState) SetKernelStack(ss Selector, esp uintptr) {
	tss.SS0 = uint32(ss)
	tss.ESP0 = uint32(esp)
}
