package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tarndb/tarn/internal/config"
	"github.com/tarndb/tarn/internal/datasource"
	"github.com/tarndb/tarn/internal/events"
	"github.com/tarndb/tarn/internal/executor"
	"github.com/tarndb/tarn/internal/stage"
	"github.com/tarndb/tarn/internal/stress"
	"github.com/tarndb/tarn/internal/tracing"
	"github.com/tarndb/tarn/internal/xa"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestFullWorkflow submits tasks through a service onto a live stage and
// retrieves every outcome
func TestFullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := testLogger()
	st := stage.New("workflow", 4, 8, logger)
	svc := executor.NewService(st, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const taskCount = 20
	tasks := make([]*executor.Task, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		n := i
		task := svc.SubmitCall(ctx, func(ctx context.Context) (interface{}, error) {
			return n * 2, nil
		})
		tasks = append(tasks, task)
	}

	for i, task := range tasks {
		v, err := task.Get(ctx)
		if err != nil {
			t.Fatalf("task %d failed: %v", i, err)
		}
		if v.(int) != i*2 {
			t.Errorf("task %d: expected %d, got %v", i, i*2, v)
		}
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("stage close failed: %v", err)
	}

	stats := st.Stats()
	if stats.Submitted != taskCount {
		t.Errorf("expected %d submitted, got %d", taskCount, stats.Submitted)
	}
	if stats.Completed != taskCount {
		t.Errorf("expected %d completed, got %d", taskCount, stats.Completed)
	}
	if stats.Failed != 0 {
		t.Errorf("expected 0 failed, got %d", stats.Failed)
	}
}

// TestTracePropagatesAcrossStage verifies a trace state submitted with a
// task is visible inside the worker goroutine
func TestTracePropagatesAcrossStage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := testLogger()
	st := stage.New("traced", 2, 4, logger)
	svc := executor.NewService(st, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state := tracing.NewState("integration-test")
	observed := make(chan *tracing.State, 1)

	svc.ExecuteTraced(ctx, func(ctx context.Context) error {
		observed <- tracing.Ambient(ctx)
		return nil
	}, state)

	select {
	case got := <-observed:
		if got == nil {
			t.Fatal("no trace state visible in worker")
		}
		if got.Session() != state.Session() {
			t.Errorf("expected session %s, got %s", state.Session(), got.Session())
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for traced task")
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("stage close failed: %v", err)
	}
}

// TestCompletionEventsFlow runs tasks on an event-wired stage and checks
// the bus delivers one event per task
func TestCompletionEventsFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := testLogger()
	bus := events.NewBus(logger)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	evs, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	st := stage.New("evented", 2, 4, logger, stage.WithEventBus(bus))
	svc := executor.NewService(st, logger)

	const taskCount = 10
	for i := 0; i < taskCount; i++ {
		fail := i%2 == 0
		svc.Execute(ctx, func(ctx context.Context) error {
			if fail {
				return errors.New("synthetic failure")
			}
			return nil
		})
	}

	received := 0
	failures := 0
	for received < taskCount {
		select {
		case ev := <-evs:
			received++
			if ev.Stage != "evented" {
				t.Errorf("expected stage 'evented', got %q", ev.Stage)
			}
			if ev.Failed {
				failures++
			}
		case <-ctx.Done():
			t.Fatalf("timed out after %d of %d events", received, taskCount)
		}
	}

	if failures != taskCount/2 {
		t.Errorf("expected %d failures, got %d", taskCount/2, failures)
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("stage close failed: %v", err)
	}
}

// TestStressRunEndToEnd exercises the full stress harness
func TestStressRunEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := stress.Run(ctx, stress.Options{
		Tasks:       200,
		Workers:     4,
		FailPercent: 10,
		Traced:      true,
	}, testLogger())
	if err != nil {
		t.Fatalf("stress run failed: %v", err)
	}

	if report.Total.Tasks != 200 {
		t.Errorf("expected 200 tasks, got %d", report.Total.Tasks)
	}
	if report.Total.Failed != 20 {
		t.Errorf("expected 20 failures, got %d", report.Total.Failed)
	}
	if len(report.Rows) == 0 || len(report.Rows) > 4 {
		t.Errorf("expected 1-4 worker rows, got %d", len(report.Rows))
	}
	if report.Elapsed <= 0 {
		t.Errorf("expected positive elapsed time, got %v", report.Elapsed)
	}
}

// TestDatasourcePingThroughStage health-checks sqlite datasources with
// the pings routed through a stage-backed service
func TestDatasourcePingThroughStage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := testLogger()
	refs := map[string]map[string]string{
		"primary": {"url": "sqlite://file:primary?mode=memory&cache=shared"},
		"replica": {"url": "sqlite://file:replica?mode=memory&cache=shared"},
	}

	reg, err := datasource.NewRegistry(refs, logger)
	if err != nil {
		t.Fatalf("registry creation failed: %v", err)
	}
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st := stage.New("ping", 2, 4, logger)
	svc := executor.NewService(st, logger)

	results := reg.PingAllVia(ctx, svc)

	if len(results) != 2 {
		t.Fatalf("expected 2 ping results, got %d", len(results))
	}
	for name, pingErr := range results {
		if pingErr != nil {
			t.Errorf("ping failed for %s: %v", name, pingErr)
		}
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("stage close failed: %v", err)
	}
}

// TestXidRoundTripThroughTasks encodes and decodes transaction
// identifiers inside stage workers
func TestXidRoundTripThroughTasks(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := testLogger()
	st := stage.New("xid", 2, 4, logger)
	svc := executor.NewService(st, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const taskCount = 10
	tasks := make([]*executor.Task, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		x := xa.Xid{
			FormatID:            int64(i),
			GlobalTransactionID: []byte(fmt.Sprintf("global-%d", i)),
			BranchQualifier:     []byte(fmt.Sprintf("branch-%d", i)),
		}
		task := svc.SubmitCall(ctx, func(ctx context.Context) (interface{}, error) {
			return xa.Parse(xa.Format(x))
		})
		tasks = append(tasks, task)
	}

	for i, task := range tasks {
		v, err := task.Get(ctx)
		if err != nil {
			t.Fatalf("task %d failed: %v", i, err)
		}
		got := v.(xa.Xid)
		if got.FormatID != int64(i) {
			t.Errorf("task %d: expected format id %d, got %d", i, i, got.FormatID)
		}
		if string(got.GlobalTransactionID) != fmt.Sprintf("global-%d", i) {
			t.Errorf("task %d: global transaction id mismatch", i)
		}
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("stage close failed: %v", err)
	}
}

// TestConfigDrivenStage builds a stage from a configuration file
func TestConfigDrivenStage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "tarn.yaml")
	cfgData := `stages:
  bulk:
    workers: 3
    queueSize: 12
defaults:
  timeout: 5s
`
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	mgr := config.NewManager(cfgPath)
	if _, err := mgr.Load(); err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	sc := mgr.GetStageConfig("bulk")
	if sc.Workers != 3 {
		t.Fatalf("expected 3 workers, got %d", sc.Workers)
	}
	if sc.QueueSize != 12 {
		t.Fatalf("expected queue size 12, got %d", sc.QueueSize)
	}

	logger := testLogger()
	st := stage.New("bulk", sc.Workers, sc.QueueSize, logger)
	svc := executor.NewService(st, logger)

	ctx, cancel := context.WithTimeout(context.Background(), mgr.GetConfig().Defaults.Timeout)
	defer cancel()

	task := svc.Submit(ctx, func(ctx context.Context) error { return nil })
	if _, err := task.Get(ctx); err != nil {
		t.Fatalf("task failed: %v", err)
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("stage close failed: %v", err)
	}

	if st.Workers() != 3 {
		t.Errorf("expected 3 workers, got %d", st.Workers())
	}
}

// TestStageShutdownGracefully drains in-flight tasks and rejects late
// submissions
func TestStageShutdownGracefully(t *testing.T) {
	logger := testLogger()
	st := stage.New("shutdown", 2, 8, logger)
	svc := executor.NewService(st, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const taskCount = 5
	tasks := make([]*executor.Task, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		task := svc.SubmitCall(ctx, func(ctx context.Context) (interface{}, error) {
			time.Sleep(10 * time.Millisecond)
			return "done", nil
		})
		tasks = append(tasks, task)
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// All tasks accepted before close must complete
	for i, task := range tasks {
		if !task.Done() {
			t.Errorf("task %d not completed after close", i)
		}
	}

	if !st.Closed() {
		t.Error("stage should report closed")
	}

	// Closing again reports the stage already closed
	if err := st.Close(ctx); !errors.Is(err, stage.ErrStageClosed) {
		t.Errorf("expected ErrStageClosed, got %v", err)
	}

	// Late submissions are dropped, not run
	late := executor.NewTask(func(ctx context.Context) (interface{}, error) {
		return "late", nil
	})
	st.AddTask(late)
	if late.Done() {
		t.Error("late task should have been dropped, not run")
	}

	if st.Stats().Dropped != 1 {
		t.Errorf("expected 1 dropped task, got %d", st.Stats().Dropped)
	}
}

// TestConcurrentSubmitters hammers one stage from many goroutines
func TestConcurrentSubmitters(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping race test in short mode")
	}

	logger := testLogger()
	st := stage.New("concurrent", 4, 16, logger)
	svc := executor.NewService(st, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const submitters = 8
	const perSubmitter = 25

	var wg sync.WaitGroup
	var mu sync.Mutex
	all := make([]*executor.Task, 0, submitters*perSubmitter)

	for g := 0; g < submitters; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSubmitter; i++ {
				task := svc.Submit(ctx, func(ctx context.Context) error { return nil })
				mu.Lock()
				all = append(all, task)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for i, task := range all {
		if _, err := task.Get(ctx); err != nil {
			t.Fatalf("task %d failed: %v", i, err)
		}
	}

	if err := st.Close(ctx); err != nil {
		t.Fatalf("stage close failed: %v", err)
	}

	stats := st.Stats()
	if stats.Completed != submitters*perSubmitter {
		t.Errorf("expected %d completed, got %d", submitters*perSubmitter, stats.Completed)
	}
}
