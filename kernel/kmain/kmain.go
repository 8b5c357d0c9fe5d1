package kmain

import (
	"github.com/criskell/ark/device/video/console"
	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/boot"
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/gate"
	"github.com/criskell/ark/kernel/hal"
	"github.com/criskell/ark/kernel/hw"
	"github.com/criskell/ark/kernel/kfmt"
	"github.com/criskell/ark/kernel/selftest"
	"github.com/criskell/ark/kernel/usermode"
	"github.com/criskell/ark/multiboot"
)

// Boot modes.
const (
	// ModeDemo enters ring 3 and lets the demo program fault on a
	// privileged instruction.
	ModeDemo = "demo"

	// ModeSelfTest runs the self checks and reports through the exit port.
	ModeSelfTest = "selftest"
)

var (
	// bootMode is the default boot mode. It can be changed at link time
	// with -ldflags "-X github.com/criskell/ark/kernel/kmain.bootMode=selftest"
	// and overridden by a mode=... argument on the kernel command line.
	bootMode = ModeDemo

	errKmainReturned   = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errUnknownBootMode = &kernel.Error{Module: "kmain", Message: "unknown boot mode"}

	// ctx owns the processor tables for the lifetime of the kernel.
	ctx boot.Context

	vendor [12]byte

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	halInitFn            = hal.Init
	selftestFn           = selftest.RunAndExit
	triggerDivideErrorFn = cpu.TriggerDivideError
	enterUserModeFn      = (*boot.Context).EnterUserMode
	panicFn              = kfmt.Panic
)

// Mode returns the active boot mode.
func Mode() string {
	if mode, ok := multiboot.CmdLineValue("mode"); ok {
		return mode
	}
	return bootMode
}

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up a
// minimal g0 struct that allows Go code to run on the stack allocated by the
// assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader and the top of the boot stack. Interrupts taken while running in
// ring 3 switch to the stack reserved by package gdt instead.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, bootStackTop uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	fb, err := hw.NewWindow(console.EgaBase, console.EgaColumns*console.EgaRows*2)
	if err == nil {
		err = halInitFn(fb, hw.Ports)
	}
	if err != nil {
		panicFn(err)
	}

	maxLeaf := cpu.Vendor(&vendor)
	kfmt.Printf("[kmain] cpu vendor %s, max cpuid leaf %d\n", vendor[:], maxLeaf)

	mode := Mode()
	kfmt.Printf("[kmain] booting in %s mode\n", mode)

	if err = ctx.Init(bootStackTop, hw.Ports); err != nil {
		panicFn(err)
	} else if err = ctx.Run(); err != nil {
		panicFn(err)
	}

	switch mode {
	case ModeSelfTest:
		selftestFn(&ctx, hw.Ports)
	case ModeDemo:
		err = runDemo()
	default:
		err = errUnknownBootMode
	}

	if err == nil {
		err = errKmainReturned
	}

	// Use panicFn instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(err)
}

// runDemo shows that a divide error resumes execution and then drops to
// ring 3. It only returns if the transition is rejected.
func runDemo() *kernel.Error {
	kfmt.Printf("[kmain] running at ring %d\n", usermode.CurrentRing())

	before := gate.ExceptionCount(gate.DivideByZero)
	triggerDivideErrorFn()
	kfmt.Printf("[kmain] divide errors handled: %d\n", gate.ExceptionCount(gate.DivideByZero)-before)

	return enterUserModeFn(&ctx, usermode.DemoEntry(), usermode.UserStackTop())
}
