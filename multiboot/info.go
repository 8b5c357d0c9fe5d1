package multiboot

import "unsafe"

// Info flags describing which fields of the information structure are valid.
const (
	InfoMemory         = uint32(1 << 0)
	InfoBootDevice     = uint32(1 << 1)
	InfoCmdLine        = uint32(1 << 2)
	InfoModules        = uint32(1 << 3)
	InfoMemoryMap      = uint32(1 << 6)
	InfoBootLoaderName = uint32(1 << 9)
)

// maxCStringLen bounds the scan for the terminating NUL of loader strings.
const maxCStringLen = 4096

// Info is the leading part of the multiboot v1 information structure.
type Info struct {
	Flags          uint32
	MemLower       uint32
	MemUpper       uint32
	BootDevice     uint32
	CmdLine        uint32
	ModsCount      uint32
	ModsAddr       uint32
	Syms           [4]uint32
	MmapLength     uint32
	MmapAddr       uint32
	DrivesLength   uint32
	DrivesAddr     uint32
	ConfigTable    uint32
	BootLoaderName uint32
}

var (
	info *Info

	// cStringAtFn returns the NUL terminated string stored at a physical
	// address. The boot loader places its strings in identity mapped low
	// memory. It is mocked by tests.
	cStringAtFn = cStringAt
)

func cStringAt(addr uint32) string {
	if addr == 0 {
		return ""
	}

	ptr := (*byte)(unsafe.Pointer(uintptr(addr)))
	buf := unsafe.Slice(ptr, maxCStringLen)
	for i, b := range buf {
		if b == 0 {
			return unsafe.String(ptr, i)
		}
	}
	return unsafe.String(ptr, maxCStringLen)
}

// SetInfoPtr updates the internal multiboot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package. A zero pointer clears the information.
func SetInfoPtr(ptr uintptr) {
	if ptr == 0 {
		info = nil
		return
	}
	info = (*Info)(unsafe.Pointer(ptr))
}

// Present returns true if an information structure has been registered.
func Present() bool {
	return info != nil
}

// MemorySize returns the amount of lower and upper memory in KiB reported by
// the loader or zeroes if the loader did not provide it.
func MemorySize() (lower, upper uint32) {
	if info == nil || info.Flags&InfoMemory == 0 {
		return 0, 0
	}
	return info.MemLower, info.MemUpper
}

// BootCmdLine returns the kernel command line.
func BootCmdLine() string {
	if info == nil || info.Flags&InfoCmdLine == 0 {
		return ""
	}
	return cStringAtFn(info.CmdLine)
}

// BootLoaderName returns the name reported by the boot loader.
func BootLoaderName() string {
	if info == nil || info.Flags&InfoBootLoaderName == 0 {
		return ""
	}
	return cStringAtFn(info.BootLoaderName)
}

// CmdLineValue returns the value of the first key=value pair on the command
// line whose key matches. Tokens are separated by spaces. The first token is
// conventionally the kernel path and is ignored unless it contains '='.
func CmdLineValue(key string) (string, bool) {
	cmdLine := BootCmdLine()

	for start := 0; start < len(cmdLine); {
		end := start
		for end < len(cmdLine) && cmdLine[end] != ' ' {
			end++
		}

		token := cmdLine[start:end]
		if len(token) > len(key) && token[len(key)] == '=' && token[:len(key)] == key {
			return token[len(key)+1:], true
		}

		start = end + 1
	}

	return "", false
}
