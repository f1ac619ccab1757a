package util

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tarndb/tarn/internal/executor"
	"github.com/tarndb/tarn/internal/xa"
)

// Common error types for the tarn CLI
var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCancelled indicates an operation was cancelled
	ErrCancelled = errors.New("operation cancelled")

	// ErrDatasourceNotFound indicates a datasource was not found
	ErrDatasourceNotFound = errors.New("datasource not found")
)

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i < 10 { // Limit to first 10 errors in the message
			sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
		} else if i == 10 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// NewMultiError creates a new MultiError from a slice of errors
// It filters out nil errors
func NewMultiError(errors []error) *MultiError {
	m := &MultiError{
		Errors: make([]error, 0, len(errors)),
	}
	for _, err := range errors {
		if err != nil {
			m.Errors = append(m.Errors, err)
		}
	}
	return m
}

// CombineErrors combines multiple errors into a single error
// Returns nil if all errors are nil
func CombineErrors(errors ...error) error {
	m := NewMultiError(errors)
	return m.ErrorOrNil()
}

// WrapErrorf wraps an error with a formatted message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case executor.IsTimeout(err):
		return "Timed out waiting for a task result. Increase the wait with --timeout, or check whether the stage is overloaded."
	case executor.IsUnsupported(err):
		return "Bulk submission is not supported by tarn executors. Submit tasks individually."
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "Operation was cancelled."
	case xa.IsMalformed(err):
		return fmt.Sprintf("Invalid transaction identifier: %v. Expected the form XID_<formatId>_<branchHex>_<globalHex>.", err)
	case errors.Is(err, ErrDatasourceNotFound):
		return "Datasource not found. Check the name against the datasources section of your config file."
	case errors.Is(err, ErrInvalidConfig):
		return "Invalid configuration. Please check your config file and command-line flags."
	default:
		if cause := executor.ExecutionCause(err); cause != nil {
			return fmt.Sprintf("Task failed: %v", cause)
		}
		return err.Error()
	}
}
