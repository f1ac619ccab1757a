// Package executor provides the task execution core of the Tarn engine:
// single-shot completion signals, lightweight task handles, and the
// submission service shared by every execution stage.
//
// The package is deliberately narrower than a general-purpose futures
// library. Engine tasks, once enqueued, either run to completion exactly
// once or are discarded before running (for example during stage
// shutdown). There is no cancellation of in-flight work and no
// interruption; Cancel exists only so that handles satisfy callers that
// probe for it, and it always reports false.
//
// # Architecture
//
//   - Signal: a single-shot broadcast condition. One-way transition from
//     unset to set, observable without blocking, awaitable with a context
//     or a timeout.
//   - Task: a handle pairing a body with a Signal and a write-once
//     outcome slot. Running the handle stores the outcome, sets the
//     signal, then invokes the backend's completion hook, in that order.
//     Failures (returned errors and panics alike) are logged and stored;
//     they never escape into the worker's run loop.
//   - Service: the submission surface. It wraps bodies into handles,
//     captures the submitter's ambient trace state, and hands the handles
//     to a Backend.
//   - Backend: the two-method contract a concrete executor implements.
//     AddTask must eventually run each handle exactly once, or never.
//     OnCompletion runs on the worker after each handle completes.
//
// # Basic Usage
//
// Wire a Service to a backend and submit work:
//
//	svc := executor.NewService(backend, logger)
//
//	task := svc.SubmitCall(ctx, func(ctx context.Context) (interface{}, error) {
//	    return computeSomething(ctx)
//	})
//
//	value, err := task.Get(ctx)
//
// # Trace Propagation
//
// When the submitting context carries a trace state (see the tracing
// package), the handle captures it at submission time. The worker that
// later runs the handle has the captured state installed in its slot for
// the duration of the run, body and completion hook included, and its own
// state restored afterwards, whether the body returned, failed, or
// panicked.
//
// # Concurrency Guarantees
//
//   - Everything written by the body before completion is visible to any
//     goroutine that observed the signal (Get, GetTimeout, Done, Wait).
//   - Each handle's outcome slot is written at most once.
//   - Concurrent Get calls all observe the same outcome.
//   - The completion hook runs exactly once per executed handle, on the
//     executing goroutine, after the outcome is readable.
package executor
