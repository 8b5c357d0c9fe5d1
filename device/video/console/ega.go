package console

import (
	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/hw"
)

const (
	// EgaBase is the physical address of the color text mode buffer.
	EgaBase = uintptr(0xb8000)

	// EgaColumns and EgaRows are the dimensions of text mode 3.
	EgaColumns = 80
	EgaRows    = 25

	crtcIndexPort = 0x3d4
	crtcDataPort  = 0x3d5

	crtcCursorHigh = 0x0e
	crtcCursorLow  = 0x0f

	clearColor = Black
	clearChar  = byte(' ')
)

// ErrWindowTooSmall is returned by Init when the framebuffer window cannot
// hold width*height cells.
var ErrWindowTooSmall = &kernel.Error{Module: "ega", Message: "framebuffer window smaller than console"}

// Ega implements an EGA-compatible text console. Each cell is a 16-bit value
// holding the character in the low byte and the color attribute in the high
// byte. The hardware cursor is driven through the CRTC index/data ports.
type Ega struct {
	width  uint16
	height uint16

	fb    []uint16
	ports hw.PortIO
}

// Init sets up the console on top of the framebuffer window. If ports is nil
// the hardware cursor is left alone.
func (cons *Ega) Init(width, height uint16, fb hw.Window, ports hw.PortIO) *kernel.Error {
	cells := fb.Cells16()
	if len(cells) < int(width)*int(height) {
		return ErrWindowTooSmall
	}

	cons.width = width
	cons.height = height
	cons.fb = cells[:int(width)*int(height)]
	cons.ports = ports
	return nil
}

// Clear clears the specified rectangular region
func (cons *Ega) Clear(x, y, width, height uint16) {
	var (
		attr                 = uint16(MakeAttr(clearColor, clearColor)) << 8
		clr                  = attr | uint16(clearChar)
		rowOffset, colOffset uint32
	)

	// clip rectangle
	if x >= cons.width {
		x = cons.width
	}
	if y >= cons.height {
		y = cons.height
	}

	if uint32(x)+uint32(width) > uint32(cons.width) {
		width = cons.width - x
	}
	if uint32(y)+uint32(height) > uint32(cons.height) {
		height = cons.height - y
	}

	rowOffset = uint32(y)*uint32(cons.width) + uint32(x)
	for ; height > 0; height, rowOffset = height-1, rowOffset+uint32(cons.width) {
		for colOffset = rowOffset; colOffset < rowOffset+uint32(width); colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Scroll a particular number of lines to the specified direction. The
// uncovered lines keep their old contents.
func (cons *Ega) Scroll(dir ScrollDir, lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := int(lines) * int(cons.width)
	count := int(cons.height-lines) * int(cons.width)

	switch dir {
	case Up:
		copy(cons.fb[:count], cons.fb[offset:])
	case Down:
		copy(cons.fb[offset:], cons.fb[:count])
	}
}

// Write a char to the specified location.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[int(y)*int(cons.width)+int(x)] = (uint16(attr) << 8) | uint16(ch)
}

// Cell returns the raw cell value at (x, y).
func (cons *Ega) Cell(x, y uint16) uint16 {
	if x >= cons.width || y >= cons.height {
		return 0
	}

	return cons.fb[int(y)*int(cons.width)+int(x)]
}

// MoveCursor places the hardware cursor at (x, y).
func (cons *Ega) MoveCursor(x, y uint16) {
	if cons.ports == nil || x >= cons.width || y >= cons.height {
		return
	}

	pos := y*cons.width + x
	cons.ports.Out8(crtcIndexPort, crtcCursorLow)
	cons.ports.Out8(crtcDataPort, uint8(pos))
	cons.ports.Out8(crtcIndexPort, crtcCursorHigh)
	cons.ports.Out8(crtcDataPort, uint8(pos>>8))
}
