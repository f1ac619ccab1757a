package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tarndb/tarn/internal/config"
	"github.com/tarndb/tarn/internal/output"
	"github.com/tarndb/tarn/internal/stress"
	"github.com/tarndb/tarn/internal/util"
)

func newStressCmd() *cobra.Command {
	var tasks int
	var workers int
	var queueSize int
	var failPercent int
	var workTime time.Duration
	var traced bool

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Stress-test an execution stage",
		Long: `Run a synthetic workload through an execution stage and report
per-worker throughput and latency.

Tasks are distributed across the stage's worker goroutines. A configurable
percentage of tasks fail so that error accounting can be verified. Results
include per-worker task counts, success rates, and latency figures.`,
		Example: `  # Run with defaults (100 tasks, 4 workers)
  tarn stress

  # Run a larger workload with more workers
  tarn stress --tasks 10000 --workers 16

  # Inject a 10% failure rate
  tarn stress --fail-percent 10

  # Simulate 5ms of work per task with trace propagation
  tarn stress --work-time 5ms --traced

  # Output the report as JSON
  tarn stress -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := stress.Options{
				Tasks:       tasks,
				Workers:     workers,
				QueueSize:   queueSize,
				FailPercent: failPercent,
				WorkTime:    workTime,
				Traced:      traced,
			}
			wide, _ := cmd.Flags().GetBool("wide")
			return runStress(cmd.Context(), opts, wide)
		},
	}

	cmd.Flags().IntVar(&tasks, "tasks", 0, "Number of tasks to submit (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of stage workers (default from config)")
	cmd.Flags().IntVar(&queueSize, "queue-size", 0, "Stage queue depth (default 2x workers)")
	cmd.Flags().IntVar(&failPercent, "fail-percent", 0, "Percentage of tasks that fail (0-100)")
	cmd.Flags().DurationVar(&workTime, "work-time", 0, "Simulated work duration per task")
	cmd.Flags().BoolVar(&traced, "traced", false, "Propagate a trace state through each task")
	cmd.Flags().Bool("wide", false, "Show additional columns in table output")

	return cmd
}

func runStress(ctx context.Context, opts stress.Options, wide bool) error {
	logger := slog.Default()

	// Fall back to configured stage sizing when flags are unset
	if opts.Workers == 0 || opts.QueueSize == 0 {
		mgr := config.NewManager(viper.ConfigFileUsed())
		if _, err := mgr.Load(); err != nil {
			logger.Debug("config load failed, using defaults", "error", err)
		} else {
			sc := mgr.GetStageConfig("stress")
			if opts.Workers == 0 {
				opts.Workers = sc.Workers
			}
			if opts.QueueSize == 0 {
				opts.QueueSize = sc.QueueSize
			}
		}
	}

	timeout := viper.GetDuration("timeout")
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Debug("starting stress run",
		"tasks", opts.Tasks,
		"workers", opts.Workers,
		"fail_percent", opts.FailPercent)

	report, err := stress.Run(runCtx, opts, logger)
	if err != nil {
		return fmt.Errorf("stress run failed: %s", util.FriendlyError(err))
	}

	return formatReport(report, wide)
}

func formatReport(report *stress.Report, wide bool) error {
	format := resolveFormat()
	noColor := viper.GetBool("no-color")

	formatter := output.NewFormatter(format,
		output.WithNoColor(noColor),
		output.WithWide(wide))

	return formatter.FormatReport(os.Stdout, report)
}

// resolveFormat maps the --output flag to a formatter selection,
// defaulting to table output
func resolveFormat() output.Format {
	switch viper.GetString("output") {
	case "json":
		return output.FormatJSON
	case "yaml":
		return output.FormatYAML
	default:
		return output.FormatTable
	}
}
