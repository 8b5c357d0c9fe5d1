// Package console drives text mode displays: a grid of character cells, each
// holding a CP437 code point and a color attribute.
package console

// Attr is a cell attribute. The low nibble selects the foreground color and
// the high nibble the background color.
type Attr uint16

// The 16 colors of the standard text mode palette.
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

// MakeAttr packs fg and bg into a cell attribute.
func MakeAttr(fg, bg Attr) Attr {
	return (bg&0xf)<<4 | (fg & 0xf)
}

// ScrollDir selects the direction in which Scroll moves the cell rows.
type ScrollDir uint8

const (
	// Up moves rows towards the top; the bottom rows become free.
	Up ScrollDir = iota

	// Down moves rows towards the bottom; the top rows become free.
	Down
)

// Console is a display addressed in cells. Coordinates start at 0 in the
// top-left corner and out of range cells are ignored.
type Console interface {
	Dimensions() (width, height uint16)

	// Clear blanks the cells of the given rectangle.
	Clear(x, y, width, height uint16)

	Scroll(dir ScrollDir, lines uint16)

	// Write stores ch with attribute attr in the cell at (x, y).
	Write(ch byte, attr Attr, x, y uint16)
}

// CursorMover is implemented by consoles with a hardware cursor.
type CursorMover interface {
	MoveCursor(x, y uint16)
}
