package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors of the execution core
var (
	// ErrResultTimeout indicates a bounded result wait elapsed before the
	// task completed
	ErrResultTimeout = errors.New("task result wait timed out")

	// ErrInvokeUnsupported indicates a bulk invoke entry point that the
	// service does not provide
	ErrInvokeUnsupported = errors.New("bulk invoke is not supported")
)

// ExecutionError wraps the failure a task body produced. Get returns it
// so that callers can tell a failed body apart from a failed wait.
type ExecutionError struct {
	Err error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task execution failed: %v", e.Err)
}

// Unwrap returns the body's failure for errors.Is/As compatibility
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PanicError is the stored outcome of a body that panicked. It carries
// the recovered value and the stack captured at recovery.
type PanicError struct {
	Value interface{}
	Stack []byte
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// IsTimeout checks if an error is a result-wait timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrResultTimeout)
}

// IsUnsupported checks if an error is the bulk-invoke rejection
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrInvokeUnsupported)
}

// ExecutionCause returns the body failure inside err when err carries an
// ExecutionError, nil otherwise.
func ExecutionCause(err error) error {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Err
	}
	return nil
}
