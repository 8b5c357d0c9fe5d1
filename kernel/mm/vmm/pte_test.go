package vmm

import (
	"testing"

	"github.com/criskell/ark/kernel/mm"
)

func TestPageTableEntryFlags(t *testing.T) {
	var (
		pte   pageTableEntry
		flag1 = PageTableEntryFlag(1 << 4)
		flag2 = PageTableEntryFlag(1 << 8)
	)

	if pte.HasFlags(flag1) {
		t.Fatalf("expected HasFlags to return false")
	}

	pte.SetFlags(flag1)

	if !pte.HasFlags(flag1) {
		t.Fatalf("expected HasFlags to return true")
	}

	if pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return false")
	}

	pte.SetFlags(flag2)

	if !pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return true")
	}
}

func TestPageTableEntryFrameEncoding(t *testing.T) {
	var (
		pte       pageTableEntry
		physFrame = mm.Frame(123)
	)

	pte.SetFlags(FlagPresent | FlagRW)
	pte.SetFrame(physFrame)
	if got := pte.Frame(); got != physFrame {
		t.Fatalf("expected pte.Frame() to return %v; got %v", physFrame, got)
	}

	if !pte.HasFlags(FlagPresent | FlagRW) {
		t.Fatal("expected SetFrame to preserve the entry flags")
	}

	pte.SetFrame(mm.Frame(0xfffff))
	if exp, got := uintptr(0xfffff000), pte.Address(); got != exp {
		t.Fatalf("expected address 0x%x; got 0x%x", exp, got)
	}
}

func TestFlagValues(t *testing.T) {
	specs := []struct {
		flag PageTableEntryFlag
		exp  uint32
	}{
		{FlagPresent, 0x001},
		{FlagRW, 0x002},
		{FlagUserAccessible, 0x004},
		{FlagWriteThroughCaching, 0x008},
		{FlagDoNotCache, 0x010},
		{FlagAccessed, 0x020},
		{FlagDirty, 0x040},
		{FlagHugePage, 0x080},
		{FlagGlobal, 0x100},
	}

	for specIndex, spec := range specs {
		if got := uint32(spec.flag); got != spec.exp {
			t.Errorf("[spec %d] expected flag value 0x%x; got 0x%x", specIndex, spec.exp, got)
		}
	}
}
