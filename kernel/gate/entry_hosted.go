//go:build !386

package gate

// hostedEntryBase is the base of the synthetic trampoline addresses handed
// out by the hosted build.
const hostedEntryBase = uintptr(0x00100000)

// entryPoint returns a synthetic trampoline address for num or 0 if the
// kernel does not provide one.
func entryPoint(num InterruptNumber) uintptr {
	switch num {
	case DivideByZero, DoubleFault, GPFException:
		return hostedEntryBase + uintptr(num)*16
	}
	return 0
}
