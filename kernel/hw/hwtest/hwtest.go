// Package hwtest provides a recording PortIO bus for driver tests.
package hwtest

// Write records a single port write.
type Write struct {
	Port  uint16
	Value uint32
	Width uint8
}

// Bus is a fake port I/O space. Reads return the value registered with
// SetInput for the port (or Floating if none), writes are appended to a log.
type Bus struct {
	// Floating is returned by In8 for ports without a registered value.
	Floating uint8

	inputs map[uint16]uint8
	writes []Write
}

// NewBus returns a Bus whose unregistered ports read as 0xff.
func NewBus() *Bus {
	return &Bus{Floating: 0xff, inputs: make(map[uint16]uint8)}
}

// SetInput registers the value returned when port is read.
func (b *Bus) SetInput(port uint16, val uint8) {
	b.inputs[port] = val
}

// In8 implements hw.PortIO.
func (b *Bus) In8(port uint16) uint8 {
	if val, ok := b.inputs[port]; ok {
		return val
	}
	return b.Floating
}

// Out8 implements hw.PortIO.
func (b *Bus) Out8(port uint16, val uint8) {
	b.writes = append(b.writes, Write{Port: port, Value: uint32(val), Width: 1})
}

// Out32 implements hw.PortIO.
func (b *Bus) Out32(port uint16, val uint32) {
	b.writes = append(b.writes, Write{Port: port, Value: val, Width: 4})
}

// Writes returns the recorded writes in issue order.
func (b *Bus) Writes() []Write {
	return b.writes
}

// WritesTo returns the values written to port in issue order.
func (b *Bus) WritesTo(port uint16) []uint32 {
	var vals []uint32
	for _, w := range b.writes {
		if w.Port == port {
			vals = append(vals, w.Value)
		}
	}
	return vals
}

// Reset clears the write log.
func (b *Bus) Reset() {
	b.writes = b.writes[:0]
}
