package mm

import "unsafe"

// Stack is a statically reserved stack region. Stacks are declared as
// package-level variables and are never reclaimed.
type Stack [StackSize]byte

// Top returns the 16-byte aligned address just past the end of the stack.
// x86 stacks grow down so this is the initial stack pointer.
//
//go:nosplit
func (s *Stack) Top() uintptr {
	return (uintptr(unsafe.Pointer(&s[0])) + uintptr(len(s))) &^ (stackAlign - 1)
}

// Contains returns true if addr falls inside the stack region.
func (s *Stack) Contains(addr uintptr) bool {
	bottom := uintptr(unsafe.Pointer(&s[0]))
	return addr >= bottom && addr <= bottom+uintptr(len(s))
}
