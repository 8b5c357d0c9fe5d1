package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/criskell/ark/multiboot"
)

const (
	testLoadAddr = 0x100000
	testPayload  = 0x60
)

// buildImage returns a minimal ELF32 image with a single PT_LOAD segment.
func buildImage(t *testing.T, machine elf.Machine, paddr uint32, payload []byte, memsz uint32) []byte {
	t.Helper()

	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     paddr,
		Phoff:     52,
		Ehsize:    52,
		Phentsize: 32,
		Phnum:     1,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	prog := elf.Prog32{
		Type:   uint32(elf.PT_LOAD),
		Off:    testPayload,
		Vaddr:  paddr,
		Paddr:  paddr,
		Filesz: uint32(len(payload)),
		Memsz:  memsz,
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Align:  0x1000,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		t.Fatal(err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, &prog); err != nil {
		t.Fatal(err)
	}
	buf.Write(make([]byte, testPayload-buf.Len()))
	buf.Write(payload)

	return buf.Bytes()
}

func TestLoadKernel(t *testing.T) {
	payload := []byte{0xfa, 0xf4, 0xeb, 0xfd}
	img := buildImage(t, elf.EM_386, testLoadAddr, payload, 16)

	mem := make([]byte, 2<<20)
	for i := testLoadAddr; i < testLoadAddr+16; i++ {
		mem[i] = 0xaa
	}

	entry, err := loadKernel(bytes.NewReader(img), mem)
	if err != nil {
		t.Fatal(err)
	}

	if entry != testLoadAddr {
		t.Errorf("expected entry to be 0x%x; got 0x%x", testLoadAddr, entry)
	}

	if got := mem[testLoadAddr : testLoadAddr+len(payload)]; !bytes.Equal(got, payload) {
		t.Errorf("expected segment contents %x; got %x", payload, got)
	}

	for i := testLoadAddr + len(payload); i < testLoadAddr+16; i++ {
		if mem[i] != 0 {
			t.Fatalf("expected bss byte at 0x%x to be cleared; got 0x%x", i, mem[i])
		}
	}
}

func TestLoadKernelErrors(t *testing.T) {
	payload := []byte{0x90}

	specs := []struct {
		img    []byte
		memLen int
		expErr string
	}{
		{buildImage(t, elf.EM_X86_64, testLoadAddr, payload, 1), 2 << 20, "unsupported ELF machine"},
		{buildImage(t, elf.EM_386, testLoadAddr, payload, 1), 1 << 20, "does not fit"},
		{buildImage(t, elf.EM_386, testLoadAddr, payload, 0), 2 << 20, "no loadable segments"},
		{[]byte("not an elf image"), 2 << 20, "bad magic"},
	}

	for specIndex, spec := range specs {
		_, err := loadKernel(bytes.NewReader(spec.img), make([]byte, spec.memLen))
		if err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestLookupSymbolWithoutSymbolTable(t *testing.T) {
	img := buildImage(t, elf.EM_386, testLoadAddr, []byte{0x90}, 1)
	if _, err := lookupSymbol(bytes.NewReader(img), "_rt0_entry"); err == nil {
		t.Fatal("expected an error for an image without symbols")
	}
}

func TestWriteBootInfo(t *testing.T) {
	mem := make([]byte, 4<<20)

	addr, err := writeBootInfo(mem, "mode=selftest")
	if err != nil {
		t.Fatal(err)
	}

	if addr != bootInfoAddr {
		t.Fatalf("expected info at 0x%x; got 0x%x", bootInfoAddr, addr)
	}

	var info multiboot.Info
	if _, err = binary.Decode(mem[addr:], binary.LittleEndian, &info); err != nil {
		t.Fatal(err)
	}

	expFlags := multiboot.InfoMemory | multiboot.InfoBootLoaderName | multiboot.InfoCmdLine
	if info.Flags != expFlags {
		t.Errorf("expected flags 0x%x; got 0x%x", expFlags, info.Flags)
	}

	if info.MemLower != 640 || info.MemUpper != 3072 {
		t.Errorf("expected memory 640/3072 KiB; got %d/%d", info.MemLower, info.MemUpper)
	}

	cString := func(at uint32) string {
		s := mem[at:]
		return string(s[:bytes.IndexByte(s, 0)])
	}

	if got := cString(info.CmdLine); got != "mode=selftest" {
		t.Errorf("expected command line %q; got %q", "mode=selftest", got)
	}

	if got := cString(info.BootLoaderName); got != loaderName {
		t.Errorf("expected loader name %q; got %q", loaderName, got)
	}
}

func TestWriteBootInfoErrors(t *testing.T) {
	if _, err := writeBootInfo(make([]byte, 1<<19), ""); err == nil {
		t.Error("expected an error for guest memory below 1 MiB")
	}

	if _, err := writeBootInfo(make([]byte, 2<<20), strings.Repeat("x", bootStringMax)); err == nil {
		t.Error("expected an error for an oversized command line")
	}

	mem := make([]byte, 2<<20)
	if _, err := writeBootInfo(mem, ""); err != nil {
		t.Fatal(err)
	}

	var info multiboot.Info
	if _, err := binary.Decode(mem[bootInfoAddr:], binary.LittleEndian, &info); err != nil {
		t.Fatal(err)
	}
	if info.Flags&multiboot.InfoCmdLine != 0 {
		t.Error("expected the command line flag to be clear without a command line")
	}
}
