package gdt

import "testing"

func TestMakeSelector(t *testing.T) {
	for index := uint16(0); index < 0x2000; index += 7 {
		for _, ti := range []TableIndicator{GlobalTable, LocalTable} {
			for rpl := uint8(0); rpl < 4; rpl++ {
				var (
					sel = MakeSelector(rpl, ti, index)
					exp = Selector(uint32(index)*8 + uint32(ti)*4 + uint32(rpl))
				)

				if sel != exp {
					t.Fatalf("MakeSelector(%d, %d, %d): expected 0x%x; got 0x%x", rpl, ti, index, exp, sel)
				}

				if sel.RPL() != rpl || sel.Table() != ti || sel.Index() != index {
					t.Fatalf("selector 0x%x decodes to rpl=%d ti=%d index=%d", sel, sel.RPL(), sel.Table(), sel.Index())
				}
			}
		}
	}
}

func TestKernelSelectors(t *testing.T) {
	specs := []struct {
		sel Selector
		exp Selector
	}{
		{KernelCode, 0x08},
		{KernelData, 0x10},
		{UserCode, 0x1b},
		{UserData, 0x23},
		{TSS, 0x28},
		{MakeSelector(3, GlobalTable, UserCodeIndex), UserCode},
		{MakeSelector(0, GlobalTable, TaskStateIndex), TSS},
	}

	for specIndex, spec := range specs {
		if spec.sel != spec.exp {
			t.Errorf("[spec %d] expected selector 0x%x; got 0x%x", specIndex, spec.exp, spec.sel)
		}
	}

	if UserCode.RPL() != 3 || UserData.RPL() != 3 {
		t.Error("expected user selectors to request privilege level 3")
	}
}
