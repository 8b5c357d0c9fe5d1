// Package hal wires the diagnostic output devices together and attaches them
// to kfmt.
package hal

import (
	"io"

	"github.com/criskell/ark/device/serial"
	"github.com/criskell/ark/device/tty"
	"github.com/criskell/ark/device/video/console"
	"github.com/criskell/ark/kernel"
	"github.com/criskell/ark/kernel/hw"
	"github.com/criskell/ark/kernel/irq"
	"github.com/criskell/ark/kernel/kfmt"
	"github.com/criskell/ark/kernel/sync"
)

const maxTargets = 2

var (
	egaConsole console.Ega
	terminal   tty.Vt
	com1       serial.Port

	sink diagnosticSink
)

// diagnosticSink fans writes out to every attached target. Writes are
// serialized by a spinlock and run with interrupts masked so an exception
// handler never spins on a lock held by the code it interrupted.
type diagnosticSink struct {
	lock    sync.Spinlock
	targets [maxTargets]io.Writer
	count   int
}

func (s *diagnosticSink) attach(w io.Writer) {
	if s.count < maxTargets {
		s.targets[s.count] = w
		s.count++
	}
}

// Write implements io.Writer.
func (s *diagnosticSink) Write(p []byte) (int, error) {
	irq.WithoutInterrupts(func() {
		s.lock.Acquire()
		for i := 0; i < s.count; i++ {
			s.targets[i].Write(p)
		}
		s.lock.Release()
	})

	return len(p), nil
}

// Init sets up the text console on fb and the COM1 serial line and attaches
// both to kfmt. Any output buffered by kfmt before this call is replayed to
// both devices.
func Init(fb hw.Window, ports hw.PortIO) *kernel.Error {
	if err := egaConsole.Init(console.EgaColumns, console.EgaRows, fb, ports); err != nil {
		return err
	}

	terminal.AttachTo(&egaConsole)
	terminal.Clear()

	com1.Init(serial.COM1, ports)

	sink = diagnosticSink{}
	sink.attach(&terminal)
	sink.attach(&com1)
	kfmt.SetOutputSink(&sink)

	kfmt.Printf("[hal] console %dx%d at 0x%x, serial at 0x%x\n", console.EgaColumns, console.EgaRows, fb.Base, serial.COM1)
	return nil
}
