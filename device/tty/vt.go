// Package tty implements a virtual terminal on top of a text console.
package tty

import (
	"unicode/utf8"

	"github.com/criskell/ark/device/video/console"

	"golang.org/x/text/encoding/charmap"
)

const (
	defaultFg = console.LightGrey
	defaultBg = console.Black

	// DefaultTabWidth defines the number of spaces that tabs expand to.
	DefaultTabWidth = 4

	// Replacement is the CP437 glyph (a filled square) drawn for runes
	// that have no CP437 encoding.
	Replacement = byte(0xfe)
)

// Vt implements a simple terminal that can process LF, CR, TAB and BS
// characters. The terminal uses a console device for its output and keeps
// no shadow buffer; scrolling moves the console contents directly.
//
// Input is treated as UTF-8 and each rune is drawn using its code page 437
// glyph. Multi-byte sequences may be split across calls to WriteByte.
type Vt struct {
	cons   console.Console
	cursor console.CursorMover

	width  uint16
	height uint16

	curX    uint16
	curY    uint16
	curAttr console.Attr

	tabWidth uint8

	pending    [utf8.UTFMax]byte
	pendingLen int
}

// AttachTo connects the terminal to a console and resets the cursor to the
// top-left corner.
func (t *Vt) AttachTo(cons console.Console) {
	t.cons = cons
	t.cursor, _ = cons.(console.CursorMover)
	t.width, t.height = cons.Dimensions()
	t.curX, t.curY = 0, 0
	t.curAttr = console.MakeAttr(defaultFg, defaultBg)
	t.tabWidth = DefaultTabWidth
	t.pendingLen = 0
	t.syncCursor()
}

// Dimensions returns the terminal width and height in characters.
func (t *Vt) Dimensions() (uint16, uint16) {
	return t.width, t.height
}

// Clear clears the terminal and moves the cursor to the top-left corner.
func (t *Vt) Clear() {
	t.cons.Clear(0, 0, t.width, t.height)
	t.curX, t.curY = 0, 0
	t.syncCursor()
}

// Position returns the current cursor position (x, y).
func (t *Vt) Position() (uint16, uint16) {
	return t.curX, t.curY
}

// SetPosition sets the current cursor position to (x,y). Positions outside
// the terminal are clipped.
func (t *Vt) SetPosition(x, y uint16) {
	if x >= t.width {
		x = t.width - 1
	}

	if y >= t.height {
		y = t.height - 1
	}

	t.curX, t.curY = x, y
	t.syncCursor()
}

// SetColors sets the attribute used by subsequent writes.
func (t *Vt) SetColors(fg, bg console.Attr) {
	t.curAttr = console.MakeAttr(fg, bg)
}

// Write implements io.Writer.
func (t *Vt) Write(data []byte) (int, error) {
	for _, b := range data {
		t.WriteByte(b)
	}

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *Vt) WriteByte(b byte) error {
	if t.cons == nil {
		return nil
	}

	if t.pendingLen == 0 && b < utf8.RuneSelf {
		t.writeASCII(b)
		t.syncCursor()
		return nil
	}

	t.pending[t.pendingLen] = b
	t.pendingLen++

	for t.pendingLen > 0 && utf8.FullRune(t.pending[:t.pendingLen]) {
		r, size := utf8.DecodeRune(t.pending[:t.pendingLen])
		if r < utf8.RuneSelf {
			t.writeASCII(byte(r))
		} else {
			t.writeGlyph(Glyph(r))
		}

		copy(t.pending[:], t.pending[size:t.pendingLen])
		t.pendingLen -= size
	}

	t.syncCursor()
	return nil
}

// Glyph returns the code page 437 byte used to draw r. Runes without a
// CP437 glyph map to Replacement.
func Glyph(r rune) byte {
	if r >= ' ' && r < 0x7f {
		return byte(r)
	}

	if b, ok := charmap.CodePage437.EncodeRune(r); ok && r >= 0x80 {
		return b
	}

	return Replacement
}

func (t *Vt) writeASCII(b byte) {
	switch b {
	case '\r':
		t.cr()
	case '\n':
		t.cr()
		t.lf()
	case '\t':
		for i := uint8(0); i < t.tabWidth; i++ {
			t.writeGlyph(' ')
		}
	case '\b':
		if t.curX > 0 {
			t.curX--
			t.cons.Write(' ', t.curAttr, t.curX, t.curY)
		}
	default:
		t.writeGlyph(Glyph(rune(b)))
	}
}

// writeGlyph draws ch at the cursor and advances it, wrapping to the next
// line at the right edge.
func (t *Vt) writeGlyph(ch byte) {
	t.cons.Write(ch, t.curAttr, t.curX, t.curY)
	t.curX++
	if t.curX == t.width {
		t.cr()
		t.lf()
	}
}

// cr resets the x coordinate of the terminal cursor to 0.
func (t *Vt) cr() {
	t.curX = 0
}

// lf advances the y coordinate of the terminal cursor by one line scrolling
// the terminal contents if the end of the last terminal line is reached.
func (t *Vt) lf() {
	if t.curY+1 < t.height {
		t.curY++
		return
	}

	t.cons.Scroll(console.Up, 1)
	t.cons.Clear(0, t.height-1, t.width, 1)
}

func (t *Vt) syncCursor() {
	if t.cursor != nil {
		t.cursor.MoveCursor(t.curX, t.curY)
	}
}
