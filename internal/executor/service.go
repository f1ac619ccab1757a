package executor

import (
	"context"
	"log/slog"

	"github.com/tarndb/tarn/internal/tracing"
)

// Backend is the contract a concrete executor implements to receive
// handles from a Service. Stages, direct runners, and test doubles all
// satisfy it.
type Backend interface {
	// AddTask takes ownership of the handle. The backend must eventually
	// call its Run exactly once, or never (a backend that is shutting
	// down may discard handles).
	AddTask(t *Task)

	// OnCompletion runs on the executing goroutine after each handle
	// completes, once its outcome is readable. Backends use it for
	// accounting such as completed-task counters.
	OnCompletion()
}

// Service is the submission surface shared by every executor. It wraps
// bodies into handles, captures the submitter's ambient trace state, and
// hands the handles to its backend.
//
// A Service is safe for concurrent use by any number of submitters.
type Service struct {
	backend Backend
	logger  *slog.Logger
}

// NewService wires a submission surface to a backend. A nil logger falls
// back to slog.Default.
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger}
}

// Execute wraps the body in a handle and enqueues it, fire-and-forget.
// The submitter's ambient trace state, if any, is captured into the
// handle. Callers that need the outcome use the submit family instead.
func (s *Service) Execute(ctx context.Context, fn func(ctx context.Context) error) {
	t := NewTaskWithResult(fn, nil)
	s.capture(ctx, t)
	s.enqueue(t)
}

// ExecuteTraced enqueues the body with the supplied trace state instead
// of capturing the ambient one. A nil state enqueues an untraced task.
func (s *Service) ExecuteTraced(ctx context.Context, fn func(ctx context.Context) error, st *tracing.State) {
	t := NewTaskWithResult(fn, nil)
	t.trace = st
	s.enqueue(t)
}

// Submit wraps a plain body and returns its handle. The handle's success
// value is nil.
func (s *Service) Submit(ctx context.Context, fn func(ctx context.Context) error) *Task {
	t := NewTaskWithResult(fn, nil)
	s.capture(ctx, t)
	return s.enqueue(t)
}

// SubmitCall wraps a value-producing body and returns its handle.
func (s *Service) SubmitCall(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) *Task {
	t := NewTask(fn)
	s.capture(ctx, t)
	return s.enqueue(t)
}

// SubmitWithResult wraps a plain body whose handle carries the given
// value on success.
func (s *Service) SubmitWithResult(ctx context.Context, fn func(ctx context.Context) error, result interface{}) *Task {
	t := NewTaskWithResult(fn, result)
	s.capture(ctx, t)
	return s.enqueue(t)
}

// SubmitTask enqueues an existing handle unchanged and returns it. The
// handle's captured trace state, if any, is kept as-is; there is no
// re-capture and no double wrapping.
func (s *Service) SubmitTask(t *Task) *Task {
	return s.enqueue(t)
}

// InvokeAll is not provided by engine executors; it fails with
// ErrInvokeUnsupported without running anything.
func (s *Service) InvokeAll(ctx context.Context, fns []func(ctx context.Context) (interface{}, error)) ([]*Task, error) {
	return nil, ErrInvokeUnsupported
}

// InvokeAny is not provided by engine executors; it fails with
// ErrInvokeUnsupported without running anything.
func (s *Service) InvokeAny(ctx context.Context, fns []func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return nil, ErrInvokeUnsupported
}

// capture records the submitter's ambient trace state on a fresh handle.
// Handles that already carry a state keep it.
func (s *Service) capture(ctx context.Context, t *Task) {
	if t.trace == nil {
		t.trace = tracing.Ambient(ctx)
	}
}

// enqueue wires the backend's completion hook and hands the handle over.
func (s *Service) enqueue(t *Task) *Task {
	if t.onDone == nil {
		t.onDone = s.backend.OnCompletion
	}
	s.logger.Debug("task submitted", "traced", t.trace != nil)
	s.backend.AddTask(t)
	return t
}
