//go:build 386

package kfmt

// keepHaltingFn re-arms hlt after an NMI or SMI wakes the CPU.
var keepHaltingFn = func() bool { return true }
