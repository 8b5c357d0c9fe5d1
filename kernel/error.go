package kernel

// Error is the error type returned by every kernel package. Errors are
// declared up front as package-level pointers so that reporting one never
// needs the allocator; errors.New is off limits during early boot.
type Error struct {
	// The subsystem that raised the error.
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error formatted as "[module] message" for use by
// host-side tooling.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
