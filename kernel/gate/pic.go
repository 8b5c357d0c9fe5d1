package gate

import "github.com/criskell/ark/kernel/hw"

const (
	masterPICData = uint16(0x21)
	slavePICData  = uint16(0xa1)
)

// MaskPIC masks every line on both legacy 8259 interrupt controllers. The
// controllers are not remapped and their default vectors overlap the
// processor exceptions, so every line must stay masked.
func MaskPIC(ports hw.PortIO) {
	ports.Out8(masterPICData, 0xff)
	ports.Out8(slavePICData, 0xff)
}
