// Package irq provides the helpers that mask and unmask maskable interrupts
// on the local processor.
package irq

import "github.com/criskell/ark/kernel/cpu"

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	readFlagsFn         = cpu.ReadFlags
	enableInterruptsFn  = cpu.EnableInterrupts
	disableInterruptsFn = cpu.DisableInterrupts
)

// Enable allows the processor to service maskable interrupts.
func Enable() {
	enableInterruptsFn()
}

// Disable masks maskable interrupts.
func Disable() {
	disableInterruptsFn()
}

// Enabled reports whether the interrupt flag is currently set.
func Enabled() bool {
	return readFlagsFn()&cpu.FlagInterrupt != 0
}

// WithoutInterrupts runs fn with interrupts masked. The interrupt flag is
// sampled before masking and interrupts are re-enabled afterwards only if
// they were enabled on entry, so calls may nest and may be made from code
// that already runs with interrupts disabled.
func WithoutInterrupts(fn func()) {
	wasEnabled := Enabled()
	if wasEnabled {
		disableInterruptsFn()
	}

	fn()

	if wasEnabled {
		enableInterruptsFn()
	}
}
