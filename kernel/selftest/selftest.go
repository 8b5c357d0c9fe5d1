// Package selftest runs checks against the live processor state after the
// boot sequence and reports the outcome through the debug exit device.
package selftest

import (
	"unsafe"

	"github.com/criskell/ark/device/debugexit"
	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/boot"
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/gate"
	"github.com/criskell/ark/kernel/gdt"
	"github.com/criskell/ark/kernel/hw"
	"github.com/criskell/ark/kernel/irq"
	"github.com/criskell/ark/kernel/kfmt"
	"github.com/criskell/ark/kernel/mm/vmm"
	"github.com/criskell/ark/kernel/usermode"
)

// Check is a single named test.
type Check struct {
	Name string
	Fn   func(ctx *boot.Context) bool
}

var (
	errCheckFailed = &kernel.Error{Module: "selftest", Message: "self checks failed"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	triggerDivideErrorFn = cpu.TriggerDivideError
	exceptionCountFn     = gate.ExceptionCount
	currentRingFn        = usermode.CurrentRing
	translateFn          = (*vmm.PageDirectory).Translate
	exitFn               = debugexit.Exit

	// identitySamples are the addresses checked against the identity map.
	identitySamples = [...]uintptr{0x0, 0x1000, 0xb8000, 0x100000, 0x2ff004, vmm.IdentityMapSize - 1}

	checks = [...]Check{
		{"gdt flat segments", checkFlatSegments},
		{"gdt task state descriptor", checkTaskStateDescriptor},
		{"tss ring 0 stack reserved", checkTaskStateStack},
		{"kernel runs at cpl 0", checkKernelRing},
		{"identity map", checkIdentityMap},
		{"unmapped above 4 MiB", checkUnmapped},
		{"divide error resumes", checkDivideErrorResumes},
		{"without interrupts restores state", checkWithoutInterrupts},
	}
)

// Run executes every check, printing one status line per check, and
// returns the exit code describing the overall result.
func Run(ctx *boot.Context) debugexit.Code {
	var passed int

	for i := range checks {
		kfmt.Printf("%s...\t", checks[i].Name)
		if checks[i].Fn(ctx) {
			passed++
			kfmt.Printf("[ok]\n")
			continue
		}
		kfmt.Printf("[failed]\n")
	}

	kfmt.Printf("[selftest] %d/%d checks passed\n", passed, len(checks))
	if passed != len(checks) {
		return debugexit.Failed
	}
	return debugexit.Success
}

// Err returns nil for a successful code or an error describing the failure.
func Err(code debugexit.Code) *kernel.Error {
	if code == debugexit.Success {
		return nil
	}
	return errCheckFailed
}

// RunAndExit executes the checks and reports the result through the exit
// port.
func RunAndExit(ctx *boot.Context, ports hw.PortIO) {
	exitFn(ports, Run(ctx))
}

func checkFlatSegments(ctx *boot.Context) bool {
	for _, spec := range [...]struct {
		index  int
		access uint8
		ring   uint8
	}{
		{gdt.KernelCodeIndex, gdt.AccessKernelCode, 0},
		{gdt.KernelDataIndex, gdt.AccessKernelData, 0},
		{gdt.UserCodeIndex, gdt.AccessUserCode, 3},
		{gdt.UserDataIndex, gdt.AccessUserData, 3},
	} {
		d := ctx.GDT().Entry(spec.index)
		if d.Base() != 0 || d.Limit() != gdt.FlatLimit || d.Access() != spec.access ||
			d.PrivilegeLevel() != spec.ring || !d.PageGranular() {
			return false
		}
	}

	return ctx.GDT().Entry(gdt.NullIndex) == 0
}

func checkTaskStateDescriptor(ctx *boot.Context) bool {
	d := ctx.GDT().Entry(gdt.TaskStateIndex)
	tss := ctx.TSS()

	// LTR marks the descriptor busy.
	access := d.Access()
	if access != gdt.AccessTSS && access != gdt.AccessPresent|gdt.AccessTypeTSSBusy {
		return false
	}

	return d.Base() == uint32(uintptr(unsafe.Pointer(tss))) &&
		d.EffectiveLimit() == gdt.TaskStateSize-1 &&
		tss.IOMapBase == gdt.TaskStateSize &&
		tss.SS0 == uint32(gdt.KernelData)
}

func checkTaskStateStack(ctx *boot.Context) bool {
	esp0 := ctx.TSS().ESP0
	return esp0 == uint32(gdt.KernelStackTop()) &&
		gdt.KernelStack().Contains(uintptr(esp0)-4) &&
		esp0 != uint32(ctx.BootStackTop())
}

func checkKernelRing(_ *boot.Context) bool {
	return currentRingFn() == 0
}

func checkIdentityMap(ctx *boot.Context) bool {
	for _, virt := range identitySamples {
		phys, err := translateFn(ctx.PageDirectory(), virt)
		if err != nil || phys != virt {
			return false
		}
	}
	return true
}

func checkUnmapped(ctx *boot.Context) bool {
	_, err := translateFn(ctx.PageDirectory(), vmm.IdentityMapSize)
	return err == vmm.ErrInvalidMapping
}

func checkDivideErrorResumes(_ *boot.Context) bool {
	before := exceptionCountFn(gate.DivideByZero)
	triggerDivideErrorFn()
	return exceptionCountFn(gate.DivideByZero) == before+1
}

func checkWithoutInterrupts(_ *boot.Context) bool {
	wasEnabled := irq.Enabled()
	defer func() {
		if wasEnabled {
			irq.Enable()
		} else {
			irq.Disable()
		}
	}()

	for _, initial := range [...]bool{true, false} {
		if initial {
			irq.Enable()
		} else {
			irq.Disable()
		}

		var inside bool
		irq.WithoutInterrupts(func() { inside = irq.Enabled() })

		if inside || irq.Enabled() != initial {
			return false
		}
	}
	return true
}
