package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/criskell/ark/device/debugexit"
	"github.com/criskell/ark/device/serial"
)

// I/O directions reported in the kvm_run io exit.
const (
	ioIn  = uint8(0)
	ioOut = uint8(1)
)

const (
	lineStatusPort = serial.COM1 + 5

	// Transmitter holding register and transmitter empty.
	lineStatusIdle = byte(0x60)

	// Reads from ports without a device see a floating bus.
	floatingBus = byte(0xff)
)

// portBus emulates the handful of devices the kernel talks to: the COM1
// transmitter and the debug exit port. Writes to every other port are
// discarded.
type portBus struct {
	console io.Writer

	// err is the first error returned by console. The guest keeps running
	// after a failed relay.
	err error

	exited bool
	code   debugexit.Code
}

// handle services a single port access. data holds the bytes written by the
// guest or receives the bytes it reads. It returns true once the guest has
// written to the exit port.
func (b *portBus) handle(dir uint8, port uint16, data []byte) bool {
	if dir == ioIn {
		fill := floatingBus
		if port == lineStatusPort {
			fill = lineStatusIdle
		}
		for i := range data {
			data[i] = fill
		}
		return false
	}

	switch port {
	case serial.COM1:
		if _, err := b.console.Write(data); err != nil && b.err == nil {
			b.err = fmt.Errorf("console: %w", err)
		}
	case debugexit.Port:
		var buf [4]byte
		copy(buf[:], data)
		b.code = debugexit.Code(binary.LittleEndian.Uint32(buf[:]))
		b.exited = true
	}

	return b.exited
}

// status returns the process exit status for the guest's exit code using the
// same encoding as the emulator's isa-debug-exit device.
func (b *portBus) status() int {
	if !b.exited {
		return 0
	}
	return b.code.Status()
}
