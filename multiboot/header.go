// Package multiboot describes the multiboot v1 protocol used to load the
// kernel: the header embedded in the kernel image and the information
// structure handed over by the boot loader.
package multiboot

import (
	"encoding/binary"

	"github.com/criskell/ark/kernel"
)

const (
	// HeaderMagic identifies a multiboot v1 header.
	HeaderMagic = uint32(0x1badb002)

	// BootloaderMagic is the value a compliant loader leaves in EAX when
	// it transfers control to the kernel.
	BootloaderMagic = uint32(0x2badb002)

	// HeaderSearchLimit is the number of bytes at the start of the image
	// that loaders scan for the header.
	HeaderSearchLimit = 8192

	// HeaderAlign is the required alignment of the header.
	HeaderAlign = 4

	// HeaderSize is the size of the magic, flags and checksum fields.
	HeaderSize = 12
)

// Header flags.
const (
	// FlagPageAlignModules requests boot modules aligned on 4 KiB.
	FlagPageAlignModules = uint32(1 << 0)

	// FlagMemoryInfo requests the mem_lower/mem_upper fields.
	FlagMemoryInfo = uint32(1 << 1)
)

var (
	// ErrHeaderNotFound is returned by Locate when no header with a valid
	// checksum appears in the search window.
	ErrHeaderNotFound = &kernel.Error{Module: "multiboot", Message: "no multiboot header in the first 8 KiB of the image"}
)

// Header is the fixed part of a multiboot v1 header.
type Header struct {
	Magic    uint32
	Flags    uint32
	Checksum uint32
}

// Checksum returns the value that makes magic + flags + checksum wrap to 0.
func Checksum(magic, flags uint32) uint32 {
	return -(magic + flags)
}

// NewHeader returns a header with the given flags and a matching checksum.
func NewHeader(flags uint32) Header {
	return Header{
		Magic:    HeaderMagic,
		Flags:    flags,
		Checksum: Checksum(HeaderMagic, flags),
	}
}

// Valid returns true if the header carries the multiboot magic and its
// fields sum to zero.
func (h Header) Valid() bool {
	return h.Magic == HeaderMagic && h.Magic+h.Flags+h.Checksum == 0
}

// Bytes returns the little-endian encoding of the header.
func (h Header) Bytes() [HeaderSize]byte {
	var out [HeaderSize]byte
	binary.LittleEndian.PutUint32(out[0:], h.Magic)
	binary.LittleEndian.PutUint32(out[4:], h.Flags)
	binary.LittleEndian.PutUint32(out[8:], h.Checksum)
	return out
}

// Locate scans image the way a boot loader does and returns the offset of
// the first valid header together with its contents.
func Locate(image []byte) (int, Header, *kernel.Error) {
	limit := len(image)
	if limit > HeaderSearchLimit {
		limit = HeaderSearchLimit
	}

	for offset := 0; offset+HeaderSize <= limit; offset += HeaderAlign {
		if binary.LittleEndian.Uint32(image[offset:]) != HeaderMagic {
			continue
		}

		h := Header{
			Magic:    HeaderMagic,
			Flags:    binary.LittleEndian.Uint32(image[offset+4:]),
			Checksum: binary.LittleEndian.Uint32(image[offset+8:]),
		}
		if h.Valid() {
			return offset, h, nil
		}
	}

	return 0, Header{}, ErrHeaderNotFound
}
