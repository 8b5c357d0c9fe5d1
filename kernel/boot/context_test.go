//go:build !386

package boot

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/gate"
	"github.com/criskell/ark/kernel/gdt"
	"github.com/criskell/ark/kernel/hw/hwtest"
	"github.com/criskell/ark/kernel/kfmt"
	"github.com/criskell/ark/kernel/mm"
	"github.com/criskell/ark/kernel/usermode"
)

var testKernelStack mm.Stack

func newTestContext(t *testing.T) (*Context, *hwtest.Bus, *bytes.Buffer) {
	t.Helper()

	cpu.ResetHosted()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	t.Cleanup(func() { kfmt.SetOutputSink(nil) })

	bus := hwtest.NewBus()
	ctx := new(Context)
	if err := ctx.Init(testKernelStack.Top(), bus); err != nil {
		t.Fatal(err)
	}
	return ctx, bus, &buf
}

func TestInit(t *testing.T) {
	var ctx Context
	if err := ctx.Init(0, hwtest.NewBus()); err != ErrNoKernelStack {
		t.Fatalf("expected ErrNoKernelStack; got %v", err)
	}
}

func TestRunInstallsInOrder(t *testing.T) {
	ctx, bus, buf := newTestContext(t)

	steps := []struct {
		name  string
		fn    func() *kernel.Error
		stage Stage
	}{
		{"gdt", ctx.InstallGDT, StageGDT},
		{"tss", ctx.InstallTSS, StageTSS},
		{"idt", ctx.InstallIDT, StageIDT},
		{"paging", ctx.EnablePaging, StagePaging},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			t.Fatalf("[%s] unexpected error: %v", step.name, err)
		}

		if ctx.Stage() != step.stage {
			t.Fatalf("[%s] expected stage %s; got %s", step.name, step.stage, ctx.Stage())
		}

		if ring := usermode.CurrentRing(); ring != 0 {
			t.Fatalf("[%s] expected CPL 0 during kernel initialization; got %d", step.name, ring)
		}
	}

	gdtr, idtr, tr := cpu.HostedDescriptorTables()
	if exp := uintptr(unsafe.Pointer(ctx.GDT())) + uintptr(unsafe.Sizeof([6]gdt.SegmentDescriptor{})); gdtr != exp {
		t.Errorf("expected GDTR to be loaded from the table pseudo-descriptor at 0x%x; got 0x%x", exp, gdtr)
	}
	if idtr == 0 {
		t.Error("expected IDTR to be loaded")
	}
	if tr != uint16(gdt.TSS) {
		t.Errorf("expected task register to hold selector 0x%x; got 0x%x", gdt.TSS, tr)
	}

	if exp := uint32(gdt.KernelStackTop()); ctx.TSS().ESP0 != exp {
		t.Errorf("expected TSS ESP0 to be the reserved ring 0 stack top 0x%x; got 0x%x", exp, ctx.TSS().ESP0)
	}

	if ctx.TSS().ESP0 == uint32(ctx.BootStackTop()) {
		t.Error("expected the TSS ring 0 stack to be distinct from the boot stack")
	}

	if !ctx.IDT().Entry(gate.GPFException).Present() {
		t.Error("expected the general protection fault gate to be present")
	}

	if cpu.ReadFlags()&cpu.FlagInterrupt == 0 {
		t.Error("expected interrupts to be enabled after the IDT is installed")
	}

	if cpu.ReadCR0()&cpu.CR0Paging == 0 {
		t.Error("expected paging to be enabled")
	}

	if exp := ctx.PageDirectory().Address(); cpu.ActivePDT() != exp {
		t.Errorf("expected CR3 to point at the page directory 0x%x; got 0x%x", exp, cpu.ActivePDT())
	}

	if vals := bus.WritesTo(0x21); len(vals) != 1 || vals[0] != 0xff {
		t.Errorf("expected the master PIC to be masked; got %v", vals)
	}

	for _, exp := range []string{"[gdt] 1: 0x00cf9a000000ffff", "[gdt] 5: ", "stage gdt complete", "stage tss complete", "stage idt complete", "stage paging complete"} {
		if !bytes.Contains(buf.Bytes(), []byte(exp)) {
			t.Errorf("expected log output to contain %q", exp)
		}
	}
}

func TestPagingStorage(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	dir := ctx.PageDirectory().Address()
	table := ctx.pageTable().Address()

	if !mm.IsPageAligned(dir) || !mm.IsPageAligned(table) {
		t.Fatalf("expected page aligned paging structures; got dir=0x%x table=0x%x", dir, table)
	}

	if table != dir+mm.PageSize {
		t.Fatalf("expected the page table to follow the directory; got dir=0x%x table=0x%x", dir, table)
	}

	arenaStart := uintptr(unsafe.Pointer(&ctx.pagingArena[0]))
	if dir < arenaStart || table+mm.PageSize > arenaStart+pagingArenaSize {
		t.Fatal("expected the paging structures to fit inside the arena")
	}

	if err := ctx.Run(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 1024; i += 511 {
		exp := uint32(i)<<12 | 0x7
		if got := ctx.pageTable().Entry(i); got != exp {
			t.Errorf("expected page table entry %d to be 0x%x; got 0x%x", i, exp, got)
		}
	}

	if got := ctx.PageDirectory().Entry(0) & 0xfff; got != 0x7 {
		t.Errorf("expected the first directory entry to be present, writable and user accessible; got flags 0x%x", got)
	}
}

func TestOutOfOrder(t *testing.T) {
	specs := []struct {
		name   string
		before func(*Context) *kernel.Error
		fn     func(*Context) *kernel.Error
	}{
		{"tss before gdt", nil, (*Context).InstallTSS},
		{"idt before tss", (*Context).InstallGDT, (*Context).InstallIDT},
		{"paging before idt", (*Context).InstallGDT, (*Context).EnablePaging},
		{"gdt twice", (*Context).InstallGDT, (*Context).InstallGDT},
		{"rerun", (*Context).Run, (*Context).Run},
		{"user mode before paging", (*Context).InstallGDT, func(ctx *Context) *kernel.Error {
			return ctx.EnterUserMode(usermode.DemoEntry(), usermode.UserStackTop())
		}},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			ctx, _, _ := newTestContext(t)
			if spec.before != nil {
				if err := spec.before(ctx); err != nil {
					t.Fatal(err)
				}
			}

			stage := ctx.Stage()
			if err := spec.fn(ctx); err != ErrOutOfOrder {
				t.Fatalf("expected ErrOutOfOrder; got %v", err)
			}
			if ctx.Stage() != stage {
				t.Fatalf("expected stage to remain %s; got %s", stage, ctx.Stage())
			}
		})
	}
}

func TestEnterUserMode(t *testing.T) {
	t.Run("rejected frame", func(t *testing.T) {
		ctx, _, _ := newTestContext(t)
		if err := ctx.Run(); err != nil {
			t.Fatal(err)
		}

		if err := ctx.EnterUserMode(0, usermode.UserStackTop()); err != usermode.ErrNoEntry {
			t.Fatalf("expected ErrNoEntry; got %v", err)
		}
		if ctx.Stage() != StagePaging {
			t.Fatalf("expected a rejected transition to keep the paging stage; got %s", ctx.Stage())
		}
	})

	t.Run("user stack inside the ring 0 stack", func(t *testing.T) {
		ctx, _, _ := newTestContext(t)
		if err := ctx.Run(); err != nil {
			t.Fatal(err)
		}

		if err := ctx.EnterUserMode(usermode.DemoEntry(), gdt.KernelStackTop()-64); err != ErrUserStackOverlap {
			t.Fatalf("expected ErrUserStackOverlap; got %v", err)
		}
		if ctx.Stage() != StagePaging {
			t.Fatalf("expected a rejected transition to keep the paging stage; got %s", ctx.Stage())
		}
	})

	t.Run("iret", func(t *testing.T) {
		ctx, _, _ := newTestContext(t)
		if err := ctx.Run(); err != nil {
			t.Fatal(err)
		}

		defer func() {
			if err := recover(); err != cpu.ErrHosted {
				t.Fatalf("expected the hosted iret to panic with ErrHosted; got %v", err)
			}

			if ctx.Stage() != StageUser {
				t.Fatalf("expected stage %s; got %s", StageUser, ctx.Stage())
			}

			if iopl := usermode.IOPrivilegeLevel(); iopl != 3 {
				t.Fatalf("expected IOPL 3 before the transition; got %d", iopl)
			}
		}()

		ctx.EnterUserMode(usermode.DemoEntry(), usermode.UserStackTop())
		t.Fatal("expected EnterUserMode not to return")
	})
}

func TestStageString(t *testing.T) {
	specs := []struct {
		stage Stage
		exp   string
	}{
		{StageReset, "reset"},
		{StageGDT, "gdt"},
		{StageTSS, "tss"},
		{StageIDT, "idt"},
		{StagePaging, "paging"},
		{StageUser, "user"},
		{Stage(42), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.stage.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}
