// Package kfmt implements the kernel's diagnostic output: an allocation-free
// Printf, a ring buffer that captures output emitted before any device is
// attached, a line prefixing writer and the Panic routine.
package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	digits = "0123456789abcdef"

	// numFmtBuf receives formatted numbers right to left. One extra slot
	// holds the sign of a value padded to maxBufSize-1 digits.
	numFmtBuf [maxBufSize + 1]byte

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer stores Printf output until an output sink is
	// attached.
	earlyPrintBuffer ringBuffer

	// outputSink is where Printf sends its output. While nil, output is
	// redirected to earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and drains
// any data accumulated in the early print buffer into it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the default target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// Output is an io.Writer that forwards to the current output sink or, while
// none is attached, to the early print buffer. Unlike GetOutputSink it is
// never nil and can be handed to a PrefixWriter at any time.
var Output io.Writer = outputProxy{}

type outputProxy struct{}

func (outputProxy) Write(p []byte) (int, error) {
	if outputSink != nil {
		return outputSink.Write(p)
	}
	return earlyPrintBuffer.Write(p)
}

// Printf provides a minimal Printf implementation that can be safely used
// from interrupt handlers and before the Go allocator is available. It
// supports the following subset of formatting verbs:
//
//	%s string or byte slice
//	%d base 10 integer, left-padded with spaces
//	%x base 16 integer (lower-case), left-padded with zeroes
//	%o base 8 integer, left-padded with zeroes
//	%t "true" or "false"
//
// A decimal width may precede the verb. Pointers (%p) are not supported as
// that would pull in reflect.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
		verb     byte
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		width = 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}

		switch verb = format[i]; verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'x', 'o', 's', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 's':
			fmtString(w, args[argIndex], width)
		case 't':
			fmtBool(w, args[argIndex])
		}
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString left-pads string or []byte values with spaces up to width.
func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		fmtRepeat(w, ' ', width-len(s))
		// converting s to a byte slice would allocate.
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		fmtRepeat(w, ' ', width-len(s))
		doWrite(w, s)
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt formats any built-in integer type in base 8, 10 or 16.
func fmtInt(w io.Writer, v interface{}, base, width int) {
	var (
		uval uint64
		neg  bool
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, neg = abs(int64(n))
	case int16:
		uval, neg = abs(int64(n))
	case int32:
		uval, neg = abs(int64(n))
	case int64:
		uval, neg = abs(n)
	case int:
		uval, neg = abs(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if width >= maxBufSize {
		width = maxBufSize - 1
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	end := len(numFmtBuf)
	pos := end
	for {
		pos--
		numFmtBuf[pos] = digits[uval%uint64(base)]
		if uval /= uint64(base); uval == 0 {
			break
		}
	}

	for end-pos < width {
		pos--
		numFmtBuf[pos] = padCh
	}

	// The sign takes the place of the space closest to the digits; with
	// zero padding or no room left it is prepended.
	if neg {
		first := pos
		for numFmtBuf[first] == ' ' {
			first++
		}

		if first > pos {
			numFmtBuf[first-1] = '-'
		} else {
			pos--
			numFmtBuf[pos] = '-'
		}
	}

	doWrite(w, numFmtBuf[pos:end])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	doWrite(w, singleByte)
}

// doWrite hides p from escape analysis. Passing p straight to the unknown
// io.Writer makes the compiler flag it as escaping and every Printf call
// would then allocate through runtime.convT2E.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
