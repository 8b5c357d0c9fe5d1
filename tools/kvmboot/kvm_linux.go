//go:build linux && amd64

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/criskell/ark/kernel/cpu"
	"github.com/criskell/ark/kernel/gdt"
	"github.com/criskell/ark/multiboot"
	"golang.org/x/sys/unix"
)

const kvmDevice = "/dev/kvm"

// KVM ioctl request numbers.
const (
	kvmGetAPIVersion       = 0xAE00
	kvmCreateVM            = 0xAE01
	kvmGetVCPUMmapSize     = 0xAE04
	kvmCreateVCPU          = 0xAE41
	kvmSetUserMemoryRegion = 0x4020AE46
	kvmSetTSSAddr          = 0xAE47
	kvmRun                 = 0xAE80
	kvmGetRegs             = 0x8090AE81
	kvmSetRegs             = 0x4090AE82
	kvmGetSregs            = 0x8138AE83
	kvmSetSregs            = 0x4138AE84

	kvmAPIVersion = 12
)

// Exit reasons reported in kvm_run.
const (
	kvmExitIO            = 2
	kvmExitHLT           = 5
	kvmExitShutdown      = 8
	kvmExitFailEntry     = 9
	kvmExitInternalError = 17
)

// Offsets into the shared kvm_run page.
const (
	runExitReason = 8
	runIODir      = 32
	runIOSize     = 33
	runIOPort     = 34
	runIOCount    = 36
	runIOOffset   = 40
)

const (
	cr0PE = 1 << 0

	// The TSS region KVM needs on VMX hosts. It must not overlap guest RAM.
	tssRegionAddr = 0xfffbd000

	flatLimit = 0xffffffff

	// Code: execute/read, accessed. Data: read/write, accessed.
	codeType = 0xb
	dataType = 0x3
)

var errUnsupportedAPI = errors.New("unsupported KVM API version")

type kvmRegs struct {
	RAX, RBX, RCX, RDX, RSI, RDI, RSP, RBP uint64
	R8, R9, R10, R11, R12, R13, R14, R15   uint64
	RIP, RFLAGS                            uint64
}

type kvmSegment struct {
	Base     uint64
	Limit    uint32
	Selector uint16
	Type     uint8
	Present  uint8
	DPL      uint8
	DB       uint8
	S        uint8
	L        uint8
	G        uint8
	AVL      uint8
	Unusable uint8
	Padding  uint8
}

type kvmDTable struct {
	Base    uint64
	Limit   uint16
	Padding [3]uint16
}

type kvmSregs struct {
	CS, DS, ES, FS, GS, SS  kvmSegment
	TR, LDT                 kvmSegment
	GDT, IDT                kvmDTable
	CR0, CR2, CR3, CR4, CR8 uint64
	EFER                    uint64
	APICBase                uint64
	InterruptBitmap         [4]uint64
}

type kvmUserspaceMemoryRegion struct {
	Slot          uint32
	Flags         uint32
	GuestPhysAddr uint64
	MemorySize    uint64
	UserspaceAddr uint64
}

// Compile-time layout checks against the kernel ABI.
var (
	_ [144]byte = [unsafe.Sizeof(kvmRegs{})]byte{}
	_ [312]byte = [unsafe.Sizeof(kvmSregs{})]byte{}
	_ [32]byte  = [unsafe.Sizeof(kvmUserspaceMemoryRegion{})]byte{}
)

func ioctl(fd int, req uintptr, arg uintptr) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// machine is a single vCPU virtual machine with one flat RAM slot starting
// at guest physical address zero.
type machine struct {
	kvm, vm, vcpu int

	mem []byte
	run []byte
}

func newMachine(memSize int) (*machine, error) {
	m := &machine{kvm: -1, vm: -1, vcpu: -1}

	var err error
	if m.kvm, err = unix.Open(kvmDevice, unix.O_RDWR|unix.O_CLOEXEC, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", kvmDevice, err)
	}

	if err = m.setup(memSize); err != nil {
		m.Close()
		return nil, err
	}

	return m, nil
}

func (m *machine) setup(memSize int) error {
	version, err := ioctl(m.kvm, kvmGetAPIVersion, 0)
	if err != nil {
		return err
	}
	if version != kvmAPIVersion {
		return fmt.Errorf("%w: %d", errUnsupportedAPI, version)
	}

	if m.vm, err = ioctl(m.kvm, kvmCreateVM, 0); err != nil {
		return fmt.Errorf("create vm: %w", err)
	}

	if _, err = ioctl(m.vm, kvmSetTSSAddr, tssRegionAddr); err != nil {
		return fmt.Errorf("set tss address: %w", err)
	}

	m.mem, err = unix.Mmap(-1, 0, memSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("map guest memory: %w", err)
	}

	region := kvmUserspaceMemoryRegion{
		MemorySize:    uint64(memSize),
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&m.mem[0]))),
	}
	if err = ioctlPtr(m.vm, kvmSetUserMemoryRegion, unsafe.Pointer(&region)); err != nil {
		return fmt.Errorf("set memory region: %w", err)
	}

	if m.vcpu, err = ioctl(m.vm, kvmCreateVCPU, 0); err != nil {
		return fmt.Errorf("create vcpu: %w", err)
	}

	runSize, err := ioctl(m.kvm, kvmGetVCPUMmapSize, 0)
	if err != nil {
		return err
	}

	if m.run, err = unix.Mmap(m.vcpu, 0, runSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED); err != nil {
		return fmt.Errorf("map vcpu run page: %w", err)
	}

	return nil
}

// Memory returns the guest RAM.
func (m *machine) Memory() []byte {
	return m.mem
}

// Close releases the VM and its mappings.
func (m *machine) Close() error {
	if m.run != nil {
		_ = unix.Munmap(m.run)
		m.run = nil
	}
	if m.mem != nil {
		_ = unix.Munmap(m.mem)
		m.mem = nil
	}
	for _, fd := range []*int{&m.vcpu, &m.vm, &m.kvm} {
		if *fd >= 0 {
			_ = unix.Close(*fd)
			*fd = -1
		}
	}
	return nil
}

func flatSegment(selector uint16, typ uint8) kvmSegment {
	return kvmSegment{
		Limit:    flatLimit,
		Selector: selector,
		Type:     typ,
		Present:  1,
		DB:       1,
		S:        1,
		G:        1,
	}
}

// Reset places the vCPU in the state a multiboot loader hands over: 32-bit
// protected mode with flat 4 GiB segments, paging off, interrupts masked,
// EAX holding the loader magic and EBX the information structure address.
func (m *machine) Reset(entry, bootInfo uint32) error {
	var sregs kvmSregs
	if err := ioctlPtr(m.vcpu, kvmGetSregs, unsafe.Pointer(&sregs)); err != nil {
		return fmt.Errorf("get sregs: %w", err)
	}

	sregs.CS = flatSegment(uint16(gdt.KernelCode), codeType)
	sregs.DS = flatSegment(uint16(gdt.KernelData), dataType)
	sregs.ES, sregs.FS, sregs.GS, sregs.SS = sregs.DS, sregs.DS, sregs.DS, sregs.DS
	sregs.CR0 |= cr0PE

	if err := ioctlPtr(m.vcpu, kvmSetSregs, unsafe.Pointer(&sregs)); err != nil {
		return fmt.Errorf("set sregs: %w", err)
	}

	regs := kvmRegs{
		RAX:    uint64(multiboot.BootloaderMagic),
		RBX:    uint64(bootInfo),
		RSP:    uint64(len(m.mem)),
		RIP:    uint64(entry),
		RFLAGS: uint64(cpu.FlagReserved),
	}
	if err := ioctlPtr(m.vcpu, kvmSetRegs, unsafe.Pointer(&regs)); err != nil {
		return fmt.Errorf("set regs: %w", err)
	}

	return nil
}

// Run executes the guest until it halts, writes to the exit port or fails.
// Every exit is logged to trace when it is not nil.
func (m *machine) Run(bus *portBus, trace io.Writer) (stopReason, error) {
	for {
		if _, err := ioctl(m.vcpu, kvmRun, 0); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return stopFailed, fmt.Errorf("run: %w", err)
		}

		reason := binary.LittleEndian.Uint32(m.run[runExitReason:])
		switch reason {
		case kvmExitIO:
			dir := m.run[runIODir]
			size := int(m.run[runIOSize])
			port := binary.LittleEndian.Uint16(m.run[runIOPort:])
			count := int(binary.LittleEndian.Uint32(m.run[runIOCount:]))
			offset := int(binary.LittleEndian.Uint64(m.run[runIOOffset:]))

			if trace != nil {
				fmt.Fprintf(trace, "[kvmboot] io dir=%d port=0x%x size=%d count=%d\n", dir, port, size, count)
			}

			if bus.handle(dir, port, m.run[offset:offset+size*count]) {
				return stopExitPort, nil
			}
		case kvmExitHLT:
			if trace != nil {
				m.traceRegs(trace, "hlt")
			}
			return stopHalted, nil
		case kvmExitShutdown:
			m.traceRegs(trace, "shutdown")
			return stopFailed, errTripleFault
		case kvmExitFailEntry, kvmExitInternalError:
			m.traceRegs(trace, "failure")
			return stopFailed, fmt.Errorf("vcpu exit reason %d", reason)
		default:
			if trace != nil {
				fmt.Fprintf(trace, "[kvmboot] ignoring exit reason %d\n", reason)
			}
		}
	}
}

func (m *machine) traceRegs(w io.Writer, event string) {
	if w == nil {
		return
	}

	var regs kvmRegs
	if err := ioctlPtr(m.vcpu, kvmGetRegs, unsafe.Pointer(&regs)); err != nil {
		fmt.Fprintf(w, "[kvmboot] %s: get regs: %s\n", event, err)
		return
	}

	fmt.Fprintf(w, "[kvmboot] %s: eip=0x%08x esp=0x%08x eflags=0x%08x eax=0x%08x\n",
		event, uint32(regs.RIP), uint32(regs.RSP), uint32(regs.RFLAGS), uint32(regs.RAX))
}
