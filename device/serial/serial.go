// Package serial drives a 16550 compatible UART as a write-only diagnostic
// channel.
package serial

import "github.com/criskell/ark/kernel/hw"

// COM1 is the I/O base of the first serial port.
const COM1 = uint16(0x3f8)

// Register offsets from the port base.
const (
	regData            = 0
	regInterruptEnable = 1
	regFIFOControl     = 2
	regLineControl     = 3
	regModemControl    = 4
	regLineStatus      = 5
)

const (
	// lineStatusTransmitEmpty is set when the transmit holding register
	// can accept a byte.
	lineStatusTransmitEmpty = 0x20

	lineControlDLAB = 0x80
	lineControl8N1  = 0x03

	// fifoEnable enables and clears both FIFOs with a 14 byte threshold.
	fifoEnable = 0xc7

	// modemControlReady asserts DTR, RTS and OUT2.
	modemControlReady = 0x0b

	// divisor38400 programs the baud rate to 115200/3.
	divisor38400 = 3
)

// Port is a UART at a fixed I/O base.
type Port struct {
	base  uint16
	ports hw.PortIO
}

// Init binds the port to the UART at base and programs the line for 38400
// baud, 8 data bits, no parity and one stop bit with interrupts disabled.
func (p *Port) Init(base uint16, ports hw.PortIO) {
	p.base, p.ports = base, ports

	p.ports.Out8(p.base+regInterruptEnable, 0x00)
	p.ports.Out8(p.base+regLineControl, lineControlDLAB)
	p.ports.Out8(p.base+regData, divisor38400)
	p.ports.Out8(p.base+regInterruptEnable, 0x00)
	p.ports.Out8(p.base+regLineControl, lineControl8N1)
	p.ports.Out8(p.base+regFIFOControl, fifoEnable)
	p.ports.Out8(p.base+regModemControl, modemControlReady)
}

// WriteByte implements io.ByteWriter. It busy-waits until the transmitter
// is ready. There is no timeout.
func (p *Port) WriteByte(b byte) error {
	for p.ports.In8(p.base+regLineStatus)&lineStatusTransmitEmpty == 0 {
	}

	p.ports.Out8(p.base+regData, b)
	return nil
}

// Write implements io.Writer.
func (p *Port) Write(data []byte) (int, error) {
	for _, b := range data {
		p.WriteByte(b)
	}

	return len(data), nil
}
