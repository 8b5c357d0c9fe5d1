//go:build 386

package gate

// The entry trampolines are implemented in entry_386.s. They are never
// called from Go; their addresses are stored in the IDT.
func divideErrorEntry()
func doubleFaultEntry()
func gpfEntry()

// Address helpers returning the linear address of each trampoline.
func divideErrorEntryAddr() uintptr
func doubleFaultEntryAddr() uintptr
func gpfEntryAddr() uintptr

// entryPoint returns the trampoline address for num or 0 if the kernel does
// not provide one.
func entryPoint(num InterruptNumber) uintptr {
	switch num {
	case DivideByZero:
		return divideErrorEntryAddr()
	case DoubleFault:
		return doubleFaultEntryAddr()
	case GPFException:
		return gpfEntryAddr()
	}
	return 0
}
