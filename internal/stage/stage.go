// Package stage provides the engine's standard executor backend: a named
// execution stage with a bounded task queue and a fixed set of worker
// goroutines. Stages implement executor.Backend, so a Service wired to a
// stage gives callers the full submission surface while the stage decides
// where and when each handle runs.
package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarndb/tarn/internal/ctxlog"
	"github.com/tarndb/tarn/internal/events"
	"github.com/tarndb/tarn/internal/executor"
	"github.com/tarndb/tarn/internal/tracing"
)

// ErrStageClosed indicates a task was handed to a stage after Close began
var ErrStageClosed = errors.New("stage is closed")

// Stats is a point-in-time snapshot of a stage's counters
type Stats struct {
	// Submitted is the number of tasks accepted into the queue
	Submitted int64

	// Completed is the number of tasks that finished running
	Completed int64

	// Failed is the number of completed tasks whose body failed
	Failed int64

	// Dropped is the number of tasks discarded because the stage was
	// closed; dropped tasks never run
	Dropped int64

	// Pending is the number of tasks queued but not yet picked up
	Pending int

	// InFlight is the number of tasks currently running on workers
	InFlight int64
}

// Stage is a bounded single-queue executor backend. Tasks are accepted
// in FIFO order and run by a fixed set of workers; when the queue is
// full, AddTask blocks the submitter (backpressure). Each worker carries
// its own tracing slot, so traced tasks propagate session state per the
// executor contract.
//
// A Stage is safe for concurrent use by any number of submitters.
type Stage struct {
	// name identifies the stage in logs and stats
	name string

	// workers is the number of worker goroutines
	workers int

	// tasks is the bounded task queue
	tasks chan *executor.Task

	// logger for structured logging
	logger *slog.Logger

	// bus receives a completion event per task when non-nil
	bus *events.Bus

	// mu guards the closed transition against concurrent AddTask; the
	// queue channel is closed only while holding the write lock
	mu sync.RWMutex

	// closed indicates intake has stopped
	closed atomic.Bool

	// wg tracks worker goroutines
	wg sync.WaitGroup

	// counters
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	inFlight  atomic.Int64
}

// Option configures a Stage
type Option func(*Stage)

// WithEventBus makes the stage publish one events.TaskEvent per
// completed task.
func WithEventBus(bus *events.Bus) Option {
	return func(s *Stage) {
		s.bus = bus
	}
}

// New creates and starts a stage. workers and queueSize must be > 0,
// otherwise they default to 1. A nil logger falls back to slog.Default.
func New(name string, workers, queueSize int, logger *slog.Logger, opts ...Option) *Stage {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Stage{
		name:    name,
		workers: workers,
		tasks:   make(chan *executor.Task, queueSize),
		logger:  logger.With("stage", name),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug("starting stage workers", "workers", workers, "queue_size", queueSize)

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	return s
}

// AddTask implements executor.Backend. Open stage: the handle is queued
// and will run exactly once; when the queue is full the call blocks
// until a worker makes room. Closed stage: the handle is discarded with
// a warning and never runs, so its waiters see timeouts rather than
// results.
func (s *Stage) AddTask(t *executor.Task) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		s.dropped.Add(1)
		s.logger.Warn("task dropped, stage is closed", "dropped", s.dropped.Load())
		return
	}

	s.submitted.Add(1)
	s.tasks <- t
}

// OnCompletion implements executor.Backend. It runs on the worker
// goroutine after each handle completes, once the outcome is readable.
func (s *Stage) OnCompletion() {
	s.completed.Add(1)
}

// worker is the run loop of one worker goroutine. It drains the queue
// until the stage closes and the queue is empty. Task failures are
// contained by the handle; nothing a task does unwinds this loop.
func (s *Stage) worker(id int) {
	defer s.wg.Done()

	workerName := fmt.Sprintf("%s-%d", s.name, id)
	logger := s.logger.With("worker", workerName)

	// The worker's context carries its identity for failure logs and its
	// own tracing slot for session propagation.
	ctx := ctxlog.With(context.Background(), logger)
	ctx = tracing.WithSlot(ctx, tracing.NewSlot())

	logger.Debug("worker started")

	for t := range s.tasks {
		s.inFlight.Add(1)
		start := time.Now()

		t.Run(ctx)

		duration := time.Since(start)
		s.inFlight.Add(-1)

		err := t.Err()
		if err != nil {
			s.failed.Add(1)
		}

		if s.bus != nil {
			s.publish(logger, workerName, err, duration)
		}
	}

	logger.Debug("worker finished")
}

// publish emits a completion event for one task
func (s *Stage) publish(logger *slog.Logger, workerName string, err error, duration time.Duration) {
	var panicErr *executor.PanicError

	ev := events.TaskEvent{
		Stage:    s.name,
		Worker:   workerName,
		Failed:   err != nil,
		Panicked: errors.As(err, &panicErr),
		Duration: duration,
		At:       time.Now(),
	}

	if err := s.bus.Publish(ev); err != nil {
		logger.Warn("failed to publish completion event", "error", err)
	}
}

// Close stops intake, lets the workers drain the queue, and waits for
// them to exit. The context bounds the wait; on expiry the workers keep
// draining in the background but Close returns the context error.
// Closing an already-closed stage returns ErrStageClosed.
func (s *Stage) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStageClosed
	}

	s.logger.Info("closing stage", "pending", len(s.tasks))

	// Take the write lock so no AddTask is mid-send, then close the
	// queue to release the workers once it drains.
	s.mu.Lock()
	close(s.tasks)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stage closed", "completed", s.completed.Load(), "failed", s.failed.Load())
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stage close timed out: %w", ctx.Err())
	}
}

// Closed reports whether intake has stopped
func (s *Stage) Closed() bool {
	return s.closed.Load()
}

// Name returns the stage name
func (s *Stage) Name() string {
	return s.name
}

// Workers returns the number of worker goroutines
func (s *Stage) Workers() int {
	return s.workers
}

// Stats returns a snapshot of the stage counters. The counters move
// independently, so a snapshot taken while tasks are running may be
// mid-update; quiesce the stage first for exact numbers.
func (s *Stage) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.dropped.Load(),
		Pending:   len(s.tasks),
		InFlight:  s.inFlight.Load(),
	}
}
