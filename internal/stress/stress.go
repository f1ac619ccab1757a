// Package stress drives an execution stage with synthetic tasks and
// aggregates the outcomes into a per-worker report. It exists to
// exercise the executor core under load from the command line and to
// sanity-check sizing choices (workers, queue depth) for a stage.
package stress

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tarndb/tarn/internal/events"
	"github.com/tarndb/tarn/internal/executor"
	"github.com/tarndb/tarn/internal/stage"
	"github.com/tarndb/tarn/internal/tracing"
)

// Options configures one stress run
type Options struct {
	// Tasks is the number of synthetic tasks to submit
	Tasks int

	// Workers is the stage worker count
	Workers int

	// QueueSize is the stage queue depth
	QueueSize int

	// FailPercent is the percentage of tasks (0-100) whose bodies fail
	FailPercent int

	// WorkTime is how long each task body runs
	WorkTime time.Duration

	// Traced attaches a trace session to every submission
	Traced bool
}

// applyDefaults fills unset options with usable values
func (o *Options) applyDefaults() {
	if o.Tasks <= 0 {
		o.Tasks = 100
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = o.Workers * 2
	}
	if o.FailPercent < 0 {
		o.FailPercent = 0
	}
	if o.FailPercent > 100 {
		o.FailPercent = 100
	}
}

// WorkerReport aggregates the tasks one worker completed
type WorkerReport struct {
	// Worker is the worker identity within the stage
	Worker string `json:"worker" yaml:"worker"`

	// Tasks is the number of tasks the worker ran
	Tasks int `json:"tasks" yaml:"tasks"`

	// OK is the number of successful tasks
	OK int `json:"ok" yaml:"ok"`

	// Failed is the number of failed tasks
	Failed int `json:"failed" yaml:"failed"`

	// Min, Avg, Max are task latency bounds
	Min time.Duration `json:"min" yaml:"min"`
	Avg time.Duration `json:"avg" yaml:"avg"`
	Max time.Duration `json:"max" yaml:"max"`
}

// Report is the outcome of one stress run
type Report struct {
	// Rows holds one entry per worker, sorted by worker name
	Rows []WorkerReport `json:"rows" yaml:"rows"`

	// Total aggregates all workers
	Total WorkerReport `json:"total" yaml:"total"`

	// Stats is the stage counter snapshot after the run drained
	Stats stage.Stats `json:"stats" yaml:"stats"`

	// Elapsed is the wall time of the whole run
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Run submits opts.Tasks synthetic tasks to a fresh stage and waits for
// every outcome. A deterministic fraction of bodies fail so that failure
// isolation is exercised; the run itself only fails on infrastructure
// problems (subscription, context expiry), never on task failures.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (*Report, error) {
	opts.applyDefaults()

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("starting stress run",
		"tasks", opts.Tasks,
		"workers", opts.Workers,
		"queue_size", opts.QueueSize,
		"fail_percent", opts.FailPercent,
		"traced", opts.Traced)

	bus := events.NewBus(logger)
	defer bus.Close()

	eventCtx, cancelEvents := context.WithCancel(ctx)
	defer cancelEvents()

	received, err := bus.Subscribe(eventCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to completion events: %w", err)
	}

	st := stage.New("stress", opts.Workers, opts.QueueSize, logger, stage.WithEventBus(bus))
	svc := executor.NewService(st, logger)

	submitCtx := ctx
	if opts.Traced {
		submitCtx = tracing.NewContext(ctx, tracing.NewState("stress"))
	}

	start := time.Now()

	// Collect events concurrently with submission: AddTask blocks on a
	// full queue, so the collector must already be draining.
	collected := make(chan []events.TaskEvent, 1)
	go func() {
		evs := make([]events.TaskEvent, 0, opts.Tasks)
		for ev := range received {
			evs = append(evs, ev)
			if len(evs) == opts.Tasks {
				break
			}
		}
		collected <- evs
	}()

	tasks := make([]*executor.Task, opts.Tasks)
	for i := 0; i < opts.Tasks; i++ {
		fail := i%100 < opts.FailPercent
		tasks[i] = svc.Submit(submitCtx, func(ctx context.Context) error {
			if opts.WorkTime > 0 {
				select {
				case <-time.After(opts.WorkTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if fail {
				return fmt.Errorf("synthetic failure")
			}
			return nil
		})
	}

	for i, t := range tasks {
		if _, err := t.Get(ctx); err != nil && executor.ExecutionCause(err) == nil {
			// A wait failure, not a task failure
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
	}

	var evs []events.TaskEvent
	select {
	case evs = <-collected:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for completion events: %w", ctx.Err())
	}

	elapsed := time.Since(start)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := st.Close(closeCtx); err != nil {
		return nil, fmt.Errorf("failed to close stage: %w", err)
	}

	report := build(evs)
	report.Stats = st.Stats()
	report.Elapsed = elapsed

	logger.Info("stress run finished",
		"tasks", report.Total.Tasks,
		"ok", report.Total.OK,
		"failed", report.Total.Failed,
		"elapsed", elapsed)

	return report, nil
}

// build aggregates completion events into per-worker rows and a total
func build(evs []events.TaskEvent) *Report {
	type acc struct {
		report WorkerReport
		sum    time.Duration
	}

	byWorker := make(map[string]*acc)
	total := &acc{}

	add := func(a *acc, ev events.TaskEvent) {
		a.report.Tasks++
		if ev.Failed {
			a.report.Failed++
		} else {
			a.report.OK++
		}
		a.sum += ev.Duration
		if a.report.Tasks == 1 || ev.Duration < a.report.Min {
			a.report.Min = ev.Duration
		}
		if ev.Duration > a.report.Max {
			a.report.Max = ev.Duration
		}
	}

	for _, ev := range evs {
		a, ok := byWorker[ev.Worker]
		if !ok {
			a = &acc{report: WorkerReport{Worker: ev.Worker}}
			byWorker[ev.Worker] = a
		}
		add(a, ev)
		add(total, ev)
	}

	rows := make([]WorkerReport, 0, len(byWorker))
	for _, a := range byWorker {
		if a.report.Tasks > 0 {
			a.report.Avg = a.sum / time.Duration(a.report.Tasks)
		}
		rows = append(rows, a.report)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Worker < rows[j].Worker })

	if total.report.Tasks > 0 {
		total.report.Avg = total.sum / time.Duration(total.report.Tasks)
	}
	total.report.Worker = "total"

	return &Report{Rows: rows, Total: total.report}
}

// FilterFailed returns the rows that saw at least one failure
func FilterFailed(rows []WorkerReport) []WorkerReport {
	filtered := make([]WorkerReport, 0, len(rows))
	for _, r := range rows {
		if r.Failed > 0 {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// SuccessRate returns the success rate of a row as a percentage
func SuccessRate(r WorkerReport) float64 {
	if r.Tasks == 0 {
		return 0.0
	}
	return float64(r.OK) / float64(r.Tasks) * 100.0
}

// Summarize renders a one-line summary of the report
func (r *Report) Summarize() string {
	return fmt.Sprintf("Tasks: %d, OK: %d, Failed: %d, Workers: %d, Avg: %s, Max: %s, Elapsed: %s",
		r.Total.Tasks,
		r.Total.OK,
		r.Total.Failed,
		len(r.Rows),
		r.Total.Avg.Round(time.Microsecond),
		r.Total.Max.Round(time.Microsecond),
		r.Elapsed.Round(time.Millisecond))
}
