// Package kernel contains the types shared by every kernel subsystem.
package kernel

// Error describes a kernel error. All kernel errors are defined as
// package-level pointers to an Error value so callers can compare them by
// identity; the allocators return them instead of building new error values
// on the failure path.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error prefixed by the module that raised it.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
