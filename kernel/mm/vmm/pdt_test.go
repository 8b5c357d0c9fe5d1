package vmm

import (
	"testing"
	"unsafe"

	"github.com/criskell/ark/kernel/mm"
)

// alignedTable returns a page aligned page table backed by a heap buffer.
func alignedTable(t *testing.T) *PageTable {
	t.Helper()
	buf := make([]byte, 2*mm.PageSize)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	offset := (mm.PageSize - addr&(mm.PageSize-1)) & (mm.PageSize - 1)
	return (*PageTable)(unsafe.Pointer(&buf[offset]))
}

func alignedDirectory(t *testing.T) *PageDirectory {
	t.Helper()
	return (*PageDirectory)(unsafe.Pointer(alignedTable(t)))
}

func TestIdentityMap(t *testing.T) {
	var pt PageTable
	pt.IdentityMap(0, IdentityFlags)

	for i := 0; i < entriesPerTable; i++ {
		exp := uint32(i)*0x1000 | uint32(IdentityFlags)
		if got := pt.Entry(i); got != exp {
			t.Fatalf("expected entry %d to be 0x%x; got 0x%x", i, exp, got)
		}
	}

	pt.IdentityMap(0x400000, FlagPresent)
	if exp, got := uint32(0x400001), pt.Entry(0); got != exp {
		t.Fatalf("expected entry 0 to be 0x%x; got 0x%x", exp, got)
	}
	if exp, got := uint32(0x7ff001), pt.Entry(1023); got != exp {
		t.Fatalf("expected entry 1023 to be 0x%x; got 0x%x", exp, got)
	}
}

func TestLink(t *testing.T) {
	t.Run("aligned", func(t *testing.T) {
		var (
			pd PageDirectory
			pt = alignedTable(t)
		)

		if err := pd.Link(0, pt, IdentityFlags); err != nil {
			t.Fatal(err)
		}

		exp := uint32(pt.Address())&ptePhysPageMask | uint32(IdentityFlags)
		if got := pd.Entry(0); got != exp {
			t.Fatalf("expected directory entry 0 to be 0x%x; got 0x%x", exp, got)
		}

		for i := 1; i < entriesPerTable; i++ {
			if got := pd.Entry(i); got != 0 {
				t.Fatalf("expected directory entry %d to be empty; got 0x%x", i, got)
			}
		}
	})

	t.Run("misaligned", func(t *testing.T) {
		var pd PageDirectory
		pt := (*PageTable)(unsafe.Pointer(uintptr(unsafe.Pointer(alignedTable(t))) + 4))

		if err := pd.Link(0, pt, IdentityFlags); err != ErrMisaligned {
			t.Fatalf("expected ErrMisaligned; got %v", err)
		}
	})
}

func TestTranslate(t *testing.T) {
	defer func(orig func(uintptr) *PageTable) { tableAtFn = orig }(tableAtFn)

	var (
		pd PageDirectory
		pt = alignedTable(t)
	)
	pt.IdentityMap(0, IdentityFlags)
	if err := pd.Link(0, pt, IdentityFlags); err != nil {
		t.Fatal(err)
	}
	tableAtFn = func(uintptr) *PageTable { return pt }

	for _, virt := range []uintptr{0, 0x1, 0xb8000, 0xb8f9f, 0x100000, 0x123456, IdentityMapSize - 1} {
		phys, err := pd.Translate(virt)
		if err != nil {
			t.Errorf("unexpected error translating 0x%x: %v", virt, err)
			continue
		}
		if phys != virt {
			t.Errorf("expected 0x%x to be identity mapped; got 0x%x", virt, phys)
		}
	}

	for _, virt := range []uintptr{IdentityMapSize, 0x800000, 0xc0000000, 0xfffff000} {
		if _, err := pd.Translate(virt); err != ErrInvalidMapping {
			t.Errorf("expected ErrInvalidMapping for 0x%x; got %v", virt, err)
		}
	}

	pt.entries[5] = makeEntry(mm.Frame(5), IdentityFlags&^FlagPresent)
	if _, err := pd.Translate(0x5123); err != ErrInvalidMapping {
		t.Errorf("expected ErrInvalidMapping for a non-present page; got %v", err)
	}
}

func TestTranslateHugePage(t *testing.T) {
	defer func(orig func(uintptr) *PageTable) { tableAtFn = orig }(tableAtFn)
	tableAtFn = func(uintptr) *PageTable {
		t.Fatal("unexpected descent into a page table for a huge page")
		return nil
	}

	var pd PageDirectory
	pd.entries[3] = pageTableEntry(0x00c00000 | uint32(FlagPresent|FlagHugePage))

	phys, err := pd.Translate(0x00d23456)
	if err != nil {
		t.Fatal(err)
	}
	if exp := uintptr(0x00d23456); phys != exp {
		t.Fatalf("expected 0x%x; got 0x%x", exp, phys)
	}
}

func TestFlags(t *testing.T) {
	defer func(orig func(uintptr) *PageTable) { tableAtFn = orig }(tableAtFn)

	var (
		pd PageDirectory
		pt = alignedTable(t)
	)
	pt.IdentityMap(0, IdentityFlags)
	pt.entries[1] = makeEntry(mm.Frame(1), IdentityFlags&^FlagUserAccessible)
	if err := pd.Link(0, pt, FlagPresent|FlagUserAccessible); err != nil {
		t.Fatal(err)
	}
	tableAtFn = func(uintptr) *PageTable { return pt }

	specs := []struct {
		virt   uintptr
		exp    PageTableEntryFlag
		expErr bool
	}{
		{0x0000, FlagPresent | FlagUserAccessible, false},
		{0x1000, FlagPresent, false},
		{0x2fff, FlagPresent | FlagUserAccessible, false},
		{IdentityMapSize, 0, true},
	}

	for specIndex, spec := range specs {
		got, err := pd.Flags(spec.virt)
		if spec.expErr {
			if err != ErrInvalidMapping {
				t.Errorf("[spec %d] expected ErrInvalidMapping; got %v", specIndex, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if got != spec.exp {
			t.Errorf("[spec %d] expected flags 0x%x; got 0x%x", specIndex, spec.exp, got)
		}
	}
}
