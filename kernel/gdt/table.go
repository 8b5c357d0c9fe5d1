package gdt

import (
	"encoding/binary"
	"io"
	"math"
	"unsafe"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/kfmt"
)

var (
	// ErrAlreadyInstalled is returned when Install is called more than once.
	ErrAlreadyInstalled = &kernel.Error{Module: "gdt", Message: "descriptor table already installed"}

	// ErrNotInstalled is returned when the TSS is loaded before the table.
	ErrNotInstalled = &kernel.Error{Module: "gdt", Message: "descriptor table not installed"}

	// ErrTSSAlreadyLoaded is returned when InstallTSS is called more than once.
	ErrTSSAlreadyLoaded = &kernel.Error{Module: "gdt", Message: "task register already loaded"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadGDTFn          = cpu.LoadGDT
	reloadSegmentsFn   = cpu.ReloadSegments
	loadTaskRegisterFn = cpu.LoadTaskRegister
)

// The GDTR limit is 16 bits wide.
var _ = [math.MaxUint16]struct{}{}[math.MaxUint16-unsafe.Sizeof([entryCount]SegmentDescriptor{})]

// Table is the global descriptor table. A Table must not move once
// installed so it is kept in a package-level variable by its owner.
type Table struct {
	entries [entryCount]SegmentDescriptor

	// pointer is the 6-byte pseudo-descriptor consumed by LGDT: a 16-bit
	// limit followed by the 32-bit linear base.
	pointer [6]byte

	installed bool
	tssLoaded bool
}

// Init fills the table with the null descriptor and the flat kernel and
// user code/data segments. The TSS slot stays empty until InstallTSS.
func (t *Table) Init() {
	t.entries[NullIndex] = 0
	t.entries[KernelCodeIndex] = EncodeSegment(FlatLimit, 0, AccessKernelCode, FlagsFlat32)
	t.entries[KernelDataIndex] = EncodeSegment(FlatLimit, 0, AccessKernelData, FlagsFlat32)
	t.entries[UserCodeIndex] = EncodeSegment(FlatLimit, 0, AccessUserCode, FlagsFlat32)
	t.entries[UserDataIndex] = EncodeSegment(FlatLimit, 0, AccessUserData, FlagsFlat32)
}

// Entry returns the descriptor stored at index.
func (t *Table) Entry(index int) SegmentDescriptor {
	return t.entries[index]
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

// Install builds the table, loads it into the GDTR and reloads every segment
// register: DS, ES, FS, GS and SS receive the kernel data selector and CS is
// reloaded with the kernel code selector through a far return.
func (t *Table) Install() *kernel.Error {
	if t.installed {
		return ErrAlreadyInstalled
	}

	t.Init()
	t.Pointer()
	loadGDTFn(uintptr(unsafe.Pointer(&t.pointer)))
	reloadSegmentsFn(uint16(KernelCode), uint16(KernelData))
	t.installed = true

	return nil
}

// InstallTSS points the TSS ring-0 stack at the reserved kernel stack,
// disables the I/O permission bitmap, writes the TSS descriptor into its slot
// and loads the task register. The table must already be installed.
func (t *Table) InstallTSS(tss *TaskState) *kernel.Error {
	switch {
	case !t.installed:
		return ErrNotInstalled
	case t.tssLoaded:
		return ErrTSSAlreadyLoaded
	}

	tss.SetKernelStack(KernelData, KernelStackTop())
	tss.IOMapBase = TaskStateSize

	t.entries[TaskStateIndex] = EncodeSegment(TaskStateSize-1, uint32(uintptr(unsafe.Pointer(tss))), AccessTSS, 0)
	loadTaskRegisterFn(uint16(TSS))
	t.tssLoaded = true

	return nil
}

// DumpTo outputs the table contents to w.
func (t *Table) DumpTo(w io.Writer) {
	for index, d := range t.entries {
		kfmt.Fprintf(w, "%d: 0x%16x base=0x%8x limit=0x%5x access=0x%2x flags=0x%x\n",
			index, uint64(d), d.Base(), d.Limit(), d.Access(), d.Flags())
	}
}
