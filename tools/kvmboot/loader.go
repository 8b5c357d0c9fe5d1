package main

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/criskell/ark/multiboot"
)

// Fixed guest physical addresses used for the multiboot hand-off. They sit
// in conventional memory below the EGA window.
const (
	bootInfoAddr   = uint32(0x9000)
	cmdLineAddr    = uint32(0x9100)
	loaderNameAddr = uint32(0x9200)
	bootStringMax  = 0x100

	loaderName = "kvmboot"

	lowMemoryKiB = 640
	highMemBase  = 1 << 20
)

// loadKernel copies the PT_LOAD segments of a 32-bit x86 ELF image into mem
// at their physical addresses and zeroes the remainder of each segment. It
// returns the entry point.
func loadKernel(r io.ReaderAt, mem []byte) (uint32, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	switch {
	case f.Class != elf.ELFCLASS32:
		return 0, fmt.Errorf("unsupported ELF class %s", f.Class)
	case f.Machine != elf.EM_386:
		return 0, fmt.Errorf("unsupported ELF machine %s", f.Machine)
	}

	var loaded int
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}

		end := prog.Paddr + prog.Memsz
		if prog.Filesz > prog.Memsz || end < prog.Paddr || end > uint64(len(mem)) {
			return 0, fmt.Errorf("segment [0x%x, 0x%x) does not fit in %d bytes of guest memory", prog.Paddr, end, len(mem))
		}

		seg := mem[prog.Paddr:end]
		if _, err = io.ReadFull(prog.Open(), seg[:prog.Filesz]); err != nil {
			return 0, fmt.Errorf("segment at 0x%x: %w", prog.Paddr, err)
		}
		clear(seg[prog.Filesz:])
		loaded++
	}

	if loaded == 0 {
		return 0, fmt.Errorf("image has no loadable segments")
	}

	if f.Entry == 0 || f.Entry >= uint64(len(mem)) {
		return 0, fmt.Errorf("entry point 0x%x outside guest memory", f.Entry)
	}

	return uint32(f.Entry), nil
}

// lookupSymbol returns the address of the named symbol in the ELF image.
func lookupSymbol(r io.ReaderAt, name string) (uint32, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	symbols, err := f.Symbols()
	if err != nil {
		return 0, err
	}

	for _, symbol := range symbols {
		if symbol.Name == name {
			return uint32(symbol.Value), nil
		}
	}

	return 0, fmt.Errorf("could not locate address of %q", name)
}

// writeBootInfo stores a multiboot information structure describing the
// guest memory size, the command line and the loader name. It returns the
// structure's physical address.
func writeBootInfo(mem []byte, cmdLine string) (uint32, error) {
	if len(mem) < highMemBase {
		return 0, fmt.Errorf("guest memory must be at least %d bytes", highMemBase)
	}

	info := multiboot.Info{
		Flags:          multiboot.InfoMemory | multiboot.InfoBootLoaderName,
		MemLower:       lowMemoryKiB,
		MemUpper:       uint32((len(mem) - highMemBase) >> 10),
		BootLoaderName: loaderNameAddr,
	}

	if err := putCString(mem, loaderNameAddr, loaderName); err != nil {
		return 0, err
	}

	if cmdLine != "" {
		if err := putCString(mem, cmdLineAddr, cmdLine); err != nil {
			return 0, err
		}
		info.Flags |= multiboot.InfoCmdLine
		info.CmdLine = cmdLineAddr
	}

	if _, err := binary.Encode(mem[bootInfoAddr:cmdLineAddr], binary.LittleEndian, &info); err != nil {
		return 0, err
	}

	return bootInfoAddr, nil
}

func putCString(mem []byte, addr uint32, s string) error {
	if len(s) >= bootStringMax {
		return fmt.Errorf("string %q exceeds %d bytes", s, bootStringMax-1)
	}

	n := copy(mem[addr:addr+bootStringMax], s)
	mem[addr+uint32(n)] = 0
	return nil
}
