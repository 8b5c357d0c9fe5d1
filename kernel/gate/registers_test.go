package gate

import (
	"bytes"
	"testing"
	"unsafe"
)

func TestRegistersLayout(t *testing.T) {
	var regs Registers

	specs := []struct {
		field  string
		offset uintptr
		exp    uintptr
	}{
		{"EDI", unsafe.Offsetof(regs.EDI), 0},
		{"EAX", unsafe.Offsetof(regs.EAX), 28},
		{"Vector", unsafe.Offsetof(regs.Vector), 32},
		{"ErrorCode", unsafe.Offsetof(regs.ErrorCode), 36},
		{"EIP", unsafe.Offsetof(regs.EIP), 40},
		{"CS", unsafe.Offsetof(regs.CS), 44},
		{"EFlags", unsafe.Offsetof(regs.EFlags), 48},
		{"UserESP", unsafe.Offsetof(regs.UserESP), 52},
		{"UserSS", unsafe.Offsetof(regs.UserSS), 56},
	}

	for _, spec := range specs {
		if spec.offset != spec.exp {
			t.Errorf("expected %s at offset %d; got %d", spec.field, spec.exp, spec.offset)
		}
	}
}

func TestRegistersDumpTo(t *testing.T) {
	regs := Registers{
		EAX:       1,
		EBX:       2,
		ECX:       3,
		EDX:       4,
		ESI:       5,
		EDI:       6,
		EBP:       7,
		ESP:       8,
		EIP:       9,
		CS:        0x08,
		EFlags:    0x202,
		ErrorCode: 0x28,
	}

	exp := "EAX = 00000001 EBX = 00000002\nECX = 00000003 EDX = 00000004\nESI = 00000005 EDI = 00000006\nEBP = 00000007 ESP = 00000008\n\nEIP = 00000009 CS  = 0008\nEFL = 00000202 ERR = 00000028\n"

	var buf bytes.Buffer
	regs.DumpTo(&buf)

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}

	buf.Reset()
	regs.CS, regs.UserESP, regs.UserSS = 0x1b, 0x1234, 0x23
	regs.DumpTo(&buf)
	if !bytes.HasSuffix(buf.Bytes(), []byte("ESP3 = 00001234 SS3 = 0023\n")) {
		t.Fatalf("expected ring 3 dump to include the user stack; got:\n%s", buf.String())
	}
}
