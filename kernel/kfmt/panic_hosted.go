//go:build !386

package kfmt

// keepHaltingFn lets Panic return on a development host where the hosted
// Halt is a no-op.
var keepHaltingFn = func() bool { return false }
