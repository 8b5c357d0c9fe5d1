//go:build 386

package usermode

// demoEntry is implemented in demo_386.s and runs in ring 3. It must not be
// called from Go.
func demoEntry()

func demoEntryAddr() uintptr

// DemoEntry returns the address of the ring 3 demo program. The program
// reports its privilege level over COM1 using port I/O and then executes
// HLT, which raises a general protection fault outside ring 0.
func DemoEntry() uintptr {
	return demoEntryAddr()
}
