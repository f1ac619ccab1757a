package executor

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/tarndb/tarn/internal/ctxlog"
	"github.com/tarndb/tarn/internal/tracing"
)

// Task is a handle on one unit of engine work: a body, a completion
// signal, and a write-once outcome slot. The outcome is either the body's
// value or its failure; an unset slot is distinguished by the signal
// being unset, not by a sentinel value.
//
// A handle is built once, enqueued once, and run at most once. Backends
// own the exactly-once-or-never guarantee; the handle does not guard
// against a second Run.
type Task struct {
	// fn is the body. It runs on the worker goroutine with the worker's
	// context.
	fn func(ctx context.Context) (interface{}, error)

	// done fires after the outcome slot is written
	done *Signal

	// trace is the session state captured at submission, nil for
	// untraced tasks. Captured at most once.
	trace *tracing.State

	// onDone is the backend's completion hook, wired at submission
	onDone func()

	// result holds the body's value on success. Written before done
	// fires, read only after.
	result interface{}

	// err holds the failure on error or panic. Written before done
	// fires, read only after.
	err error
}

// NewTask returns a handle around a value-producing body.
func NewTask(fn func(ctx context.Context) (interface{}, error)) *Task {
	return &Task{fn: fn, done: NewSignal()}
}

// NewTaskWithResult returns a handle around a plain body. On success the
// handle's value is the caller-fixed result; a nil result is a legal
// success value.
func NewTaskWithResult(fn func(ctx context.Context) error, result interface{}) *Task {
	return &Task{
		fn: func(ctx context.Context) (interface{}, error) {
			if err := fn(ctx); err != nil {
				return nil, err
			}
			return result, nil
		},
		done: NewSignal(),
	}
}

// Run executes the body and completes the handle: outcome store, then
// signal, then completion hook, on the calling goroutine. Failures are
// logged with the executing worker's identity and stored as the outcome;
// neither a returned error nor a panic escapes to the caller.
//
// When the handle carries a captured trace state and ctx carries a worker
// slot, the captured state is installed for the whole run (hook included)
// and the slot's previous state restored on the way out, on every path.
func (t *Task) Run(ctx context.Context) {
	if t.trace != nil {
		if slot := tracing.SlotFromContext(ctx); slot != nil {
			prev := slot.Swap(t.trace)
			defer slot.Set(prev)
		} else {
			// No worker slot: make the state visible to the body
			// through the context instead.
			ctx = tracing.NewContext(ctx, t.trace)
		}
	}

	log := ctxlog.From(ctx)
	if t.trace != nil {
		log = log.With("trace", t.trace)
	}

	defer func() {
		if r := recover(); r != nil {
			t.err = &PanicError{Value: r, Stack: debug.Stack()}
			log.Error("task panicked", "panic", r)
		}
		t.done.SignalAll()
		if t.onDone != nil {
			t.onDone()
		}
	}()

	v, err := t.fn(ctx)
	if err != nil {
		t.err = err
		log.Warn("task failed", "error", err)
		return
	}
	t.result = v
}

// Get blocks until the handle completes, then returns the stored value or
// an *ExecutionError wrapping the stored failure. Cancellation of ctx
// returns ctx.Err() and leaves the handle untouched.
func (t *Task) Get(ctx context.Context) (interface{}, error) {
	if err := t.done.Await(ctx); err != nil {
		return nil, err
	}
	return t.outcome()
}

// GetTimeout is Get with a bounded wait. When the window elapses before
// completion it returns ErrResultTimeout; the task may still complete
// later and the result remains retrievable.
func (t *Task) GetTimeout(d time.Duration) (interface{}, error) {
	if !t.done.AwaitTimeout(d) {
		return nil, ErrResultTimeout
	}
	return t.outcome()
}

func (t *Task) outcome() (interface{}, error) {
	if t.err != nil {
		return nil, &ExecutionError{Err: t.err}
	}
	return t.result, nil
}

// Err returns the raw stored failure once the handle has completed, nil
// on success or while still pending.
func (t *Task) Err() error {
	if !t.done.Signaled() {
		return nil
	}
	return t.err
}

// Cancel reports false: enqueued engine tasks run to completion or are
// discarded by their backend, never cancelled through the handle. The
// task is unaffected.
func (t *Task) Cancel() bool { return false }

// Cancelled reports false; handles never enter a cancelled state.
func (t *Task) Cancelled() bool { return false }

// Done reports whether the outcome is readable, exactly the state of the
// completion signal.
func (t *Task) Done() bool { return t.done.Signaled() }

// Wait returns the completion channel, for use in select statements.
func (t *Task) Wait() <-chan struct{} { return t.done.Wait() }
