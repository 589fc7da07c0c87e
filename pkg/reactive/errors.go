package reactive

import "fmt"

// ComputeError is the failure payload of a computed cell. It wraps the
// error returned by the compute function, or describes a recovered panic
// when Panicked is set.
type ComputeError struct {
	// Cell is the key of the failed cell.
	Cell string

	// Err is the underlying failure.
	Err error

	// Panicked indicates the worker panicked rather than returning an
	// error. Stack then holds the worker's stack at the panic site.
	Panicked bool
	Stack    []byte
}

// Error implements the error interface.
func (e *ComputeError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("cell %q: compute panicked: %v", e.Cell, e.Err)
	}
	return fmt.Sprintf("cell %q: compute failed: %v", e.Cell, e.Err)
}

// Unwrap returns the underlying error.
func (e *ComputeError) Unwrap() error { return e.Err }
