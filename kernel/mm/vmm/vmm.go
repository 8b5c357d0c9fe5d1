// Package vmm sets up 32-bit two-level paging. The kernel only needs a
// single identity mapped region covering the first 4 MiB of physical memory
// which holds the kernel image, its stacks and the VGA text buffer.
package vmm

import (
	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/kfmt"
	"github.com/criskell/ark/kernel/mm"
)

var (
	// ErrPagingEnabled is returned by Activate when paging is already on.
	ErrPagingEnabled = &kernel.Error{Module: "vmm", Message: "paging already enabled"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	switchPDTFn    = cpu.SwitchPDT
	enablePagingFn = cpu.EnablePaging
	readCR0Fn      = cpu.ReadCR0
)

// IdentityFlags are the flags applied to the identity mapped region. The
// region is user accessible so that ring 3 code running from the kernel
// image can fetch instructions and use its stack.
const IdentityFlags = FlagPresent | FlagRW | FlagUserAccessible

// Activate loads the directory into CR3 and then sets CR0.PG.
func (pd *PageDirectory) Activate() *kernel.Error {
	if !mm.IsPageAligned(pd.Address()) {
		return ErrMisaligned
	}

	if readCR0Fn()&cpu.CR0Paging != 0 {
		return ErrPagingEnabled
	}

	switchPDTFn(pd.Address())
	enablePagingFn()
	return nil
}

// Init identity maps [0, 4 MiB) through table, links it as the first entry
// of dir and enables paging. Both structures must be page aligned and must
// live in the region being mapped.
func Init(dir *PageDirectory, table *PageTable) *kernel.Error {
	table.IdentityMap(0, IdentityFlags)
	if err := dir.Link(0, table, IdentityFlags); err != nil {
		return err
	}

	kfmt.Printf("[vmm] identity mapping [0x%8x, 0x%8x) dir=0x%8x\n", uintptr(0), IdentityMapSize, dir.Address())
	return dir.Activate()
}
