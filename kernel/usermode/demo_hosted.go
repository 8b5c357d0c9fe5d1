//go:build !386

package usermode

// hostedDemoEntry is the synthetic demo entry point handed out by the
// hosted build.
const hostedDemoEntry = uintptr(0x00180000)

// DemoEntry returns the address of the ring 3 demo program.
func DemoEntry() uintptr {
	return hostedDemoEntry
}
