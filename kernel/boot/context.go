// Package boot owns the processor tables the kernel sets up once at boot and
// enforces the order in which they are handed to the CPU.
//
// The tables live inside a Context rather than in package globals. The
// Context must itself never be freed or moved since the processor keeps
// dereferencing the GDT, the IDT, the TSS and the paging structures.
package boot

import (
	"unsafe"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/gate"
	"github.com/criskell/ark/kernel/gdt"
	"github.com/criskell/ark/kernel/hw"
	"github.com/criskell/ark/kernel/kfmt"
	"github.com/criskell/ark/kernel/mm"
	"github.com/criskell/ark/kernel/mm/vmm"
	"github.com/criskell/ark/kernel/usermode"
)

// Stage identifies the last completed step of the boot sequence.
type Stage uint8

// The boot stages in the order they must complete.
const (
	StageReset Stage = iota
	StageGDT
	StageTSS
	StageIDT
	StagePaging
	StageUser
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageReset:
		return "reset"
	case StageGDT:
		return "gdt"
	case StageTSS:
		return "tss"
	case StageIDT:
		return "idt"
	case StagePaging:
		return "paging"
	case StageUser:
		return "user"
	default:
		return "unknown"
	}
}

var (
	// ErrOutOfOrder is returned when a boot stage is attempted before the
	// one preceding it has completed or after it has already run.
	ErrOutOfOrder = &kernel.Error{Module: "boot", Message: "boot stage attempted out of order"}

	// ErrNoKernelStack is returned by Init for a zero stack top.
	ErrNoKernelStack = &kernel.Error{Module: "boot", Message: "kernel stack top is nil"}

	// ErrUserStackOverlap is returned by EnterUserMode for a user stack
	// inside the TSS ring 0 stack.
	ErrUserStackOverlap = &kernel.Error{Module: "boot", Message: "user stack overlaps the ring 0 stack"}

	gdtLog = kfmt.PrefixWriter{Sink: kfmt.Output, Prefix: []byte("[gdt] ")}
)

// pagingArenaSize leaves room to carve a page aligned directory and table
// out of an arbitrarily aligned buffer.
const pagingArenaSize = 3 * mm.PageSize

// Context holds the boot-time processor state.
type Context struct {
	stage Stage

	bootStackTop uintptr
	ports        hw.PortIO

	gdt gdt.Table
	tss gdt.TaskState
	idt gate.Table

	pagingArena [pagingArenaSize]byte
}

// Init prepares ctx for a boot sequence. stackTop is the top of the stack the
// boot code runs on; interrupts taken in ring 3 use the TSS stack reserved by
// package gdt instead. ports is used to mask the legacy PICs.
func (ctx *Context) Init(stackTop uintptr, ports hw.PortIO) *kernel.Error {
	if stackTop == 0 {
		return ErrNoKernelStack
	}

	ctx.stage = StageReset
	ctx.bootStackTop = stackTop
	ctx.ports = ports
	return nil
}

// Stage returns the last completed stage.
func (ctx *Context) Stage() Stage {
	return ctx.stage
}

// BootStackTop returns the stack top passed to Init.
func (ctx *Context) BootStackTop() uintptr {
	return ctx.bootStackTop
}

// GDT returns the descriptor table.
func (ctx *Context) GDT() *gdt.Table {
	return &ctx.gdt
}

// TSS returns the task state segment.
func (ctx *Context) TSS() *gdt.TaskState {
	return &ctx.tss
}

// IDT returns the interrupt descriptor table.
func (ctx *Context) IDT() *gate.Table {
	return &ctx.idt
}

// PageDirectory returns the page directory used for the identity map.
func (ctx *Context) PageDirectory() *vmm.PageDirectory {
	return (*vmm.PageDirectory)(unsafe.Pointer(ctx.alignedPage(0)))
}

func (ctx *Context) pageTable() *vmm.PageTable {
	return (*vmm.PageTable)(unsafe.Pointer(ctx.alignedPage(1)))
}

// alignedPage returns the address of the index-th page aligned page inside
// the paging arena.
func (ctx *Context) alignedPage(index uintptr) uintptr {
	base := uintptr(unsafe.Pointer(&ctx.pagingArena[0]))
	aligned := (base + mm.PageSize - 1) &^ (mm.PageSize - 1)
	return uintptr(unsafe.Pointer(&ctx.pagingArena[aligned-base+index*mm.PageSize]))
}

func (ctx *Context) advance(from, to Stage, step func() *kernel.Error) *kernel.Error {
	if ctx.stage != from {
		return ErrOutOfOrder
	}

	if err := step(); err != nil {
		return err
	}

	ctx.stage = to
	kfmt.Printf("[boot] stage %s complete\n", to.String())
	return nil
}

// InstallGDT loads the descriptor table and reloads the segment registers.
func (ctx *Context) InstallGDT() *kernel.Error {
	return ctx.advance(StageReset, StageGDT, func() *kernel.Error {
		if err := ctx.gdt.Install(); err != nil {
			return err
		}
		ctx.gdt.DumpTo(&gdtLog)
		return nil
	})
}

// InstallTSS points the TSS at its reserved ring 0 stack and loads the task
// register.
func (ctx *Context) InstallTSS() *kernel.Error {
	return ctx.advance(StageGDT, StageTSS, func() *kernel.Error {
		return ctx.gdt.InstallTSS(&ctx.tss)
	})
}

// InstallIDT loads the interrupt table, masks the PICs and enables
// interrupts.
func (ctx *Context) InstallIDT() *kernel.Error {
	return ctx.advance(StageTSS, StageIDT, func() *kernel.Error {
		return ctx.idt.Install(ctx.ports)
	})
}

// EnablePaging identity maps the first 4 MiB and turns on paging.
func (ctx *Context) EnablePaging() *kernel.Error {
	return ctx.advance(StageIDT, StagePaging, func() *kernel.Error {
		return vmm.Init(ctx.PageDirectory(), ctx.pageTable())
	})
}

// Run performs every kernel side stage in order.
func (ctx *Context) Run() *kernel.Error {
	if err := ctx.InstallGDT(); err != nil {
		return err
	}
	if err := ctx.InstallTSS(); err != nil {
		return err
	}
	if err := ctx.InstallIDT(); err != nil {
		return err
	}
	return ctx.EnablePaging()
}

// EnterUserMode transfers control to entry in ring 3. It only returns if the
// transition is rejected.
func (ctx *Context) EnterUserMode(entry, stackTop uintptr) *kernel.Error {
	if ctx.stage != StagePaging {
		return ErrOutOfOrder
	}

	if err := usermode.Validate(usermode.BuildFrame(entry, stackTop, 0)); err != nil {
		return err
	}

	if gdt.KernelStack().Contains(stackTop) {
		return ErrUserStackOverlap
	}

	ctx.stage = StageUser
	kfmt.Printf("[boot] entering ring 3 at 0x%8x\n", entry)
	return usermode.Enter(entry, stackTop)
}
