package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tarndb/tarn/internal/config"
	"github.com/tarndb/tarn/internal/datasource"
	"github.com/tarndb/tarn/internal/executor"
	"github.com/tarndb/tarn/internal/output"
	"github.com/tarndb/tarn/internal/schedule"
	"github.com/tarndb/tarn/internal/stage"
	"github.com/tarndb/tarn/internal/util"
)

// datasourceInfo represents a configured datasource for display
type datasourceInfo struct {
	Name        string `json:"name" yaml:"name"`
	Driver      string `json:"driver" yaml:"driver"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
}

func newDatasourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasource",
		Aliases: []string{"ds"},
		Short:   "Manage configured datasources",
		Long: `List and health-check the datasources defined in the
configuration file.

Each datasource is a named bag of connection properties; the URL scheme
selects the database driver.`,
		Example: `  # List configured datasources
  tarn datasource list

  # Check connectivity to all datasources
  tarn datasource ping

  # Ping output as JSON
  tarn datasource ping -o json`,
	}

	cmd.AddCommand(newDatasourceListCmd())
	cmd.AddCommand(newDatasourcePingCmd())

	return cmd
}

func newDatasourceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured datasources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasourceList()
		},
	}

	return cmd
}

func newDatasourcePingCmd() *cobra.Command {
	var workers int
	var every string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to all configured datasources",
		Long: `Ping every configured datasource in parallel and report
reachability.

With --every the pings repeat on a cron schedule until interrupted,
which is useful for watching a database come back up.`,
		Example: `  # Ping once
  tarn datasource ping

  # Ping every 30 seconds until interrupted
  tarn datasource ping --every "@every 30s"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if every != "" {
				return runDatasourcePingEvery(cmd.Context(), workers, every)
			}
			return runDatasourcePing(cmd.Context(), workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Number of stage workers for parallel pings (default from config)")
	cmd.Flags().StringVar(&every, "every", "", "Cron schedule for recurring pings (e.g. \"@every 30s\")")

	return cmd
}

func loadRegistry(logger *slog.Logger) (*datasource.Registry, *config.Manager, error) {
	mgr := config.NewManager(viper.ConfigFileUsed())
	if _, err := mgr.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	refs := mgr.DatasourceProperties()
	if len(refs) == 0 {
		return nil, nil, fmt.Errorf("no datasources configured")
	}

	reg, err := datasource.NewRegistry(refs, logger)
	if err != nil {
		return nil, nil, err
	}

	return reg, mgr, nil
}

func runDatasourceList() error {
	logger := slog.Default()

	reg, mgr, err := loadRegistry(logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	cfg := mgr.GetConfig()
	infos := make([]datasourceInfo, 0, reg.Count())
	for _, name := range reg.Names() {
		ds, err := reg.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, datasourceInfo{
			Name:        name,
			Driver:      ds.Driver(),
			Description: cfg.Datasources[name].Description,
		})
	}

	format := resolveFormat()
	if format != output.FormatTable {
		formatter := output.NewFormatter(format)
		return formatter.Format(os.Stdout, infos)
	}

	return formatDatasourceTable(infos, false)
}

func runDatasourcePing(ctx context.Context, workers int) error {
	logger := slog.Default()

	reg, mgr, err := loadRegistry(logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	if workers == 0 {
		workers = mgr.GetStageConfig("ping").Workers
	}

	timeout := viper.GetDuration("timeout")
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Pings run as tasks on a dedicated stage so slow or unreachable
	// databases are probed in parallel
	st := stage.New("ping", workers, reg.Count(), logger)
	svc := executor.NewService(st, logger)

	results := reg.PingAllVia(pingCtx, svc)

	if err := st.Close(pingCtx); err != nil {
		logger.Warn("stage close failed", "error", err)
	}

	infos := make([]datasourceInfo, 0, len(results))
	failed := 0
	cfg := mgr.GetConfig()
	for name, pingErr := range results {
		info := datasourceInfo{
			Name:        name,
			Description: cfg.Datasources[name].Description,
			Status:      "ok",
		}
		if ds, err := reg.Get(name); err == nil {
			info.Driver = ds.Driver()
		}
		if pingErr != nil {
			info.Status = util.FriendlyError(pingErr)
			failed++
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	format := resolveFormat()
	if format != output.FormatTable {
		formatter := output.NewFormatter(format)
		if err := formatter.Format(os.Stdout, infos); err != nil {
			return err
		}
	} else if err := formatDatasourceTable(infos, true); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d datasources unreachable", failed, len(infos))
	}
	return nil
}

// runDatasourcePingEvery repeats the ping round on a cron schedule
// until the context is cancelled (Ctrl-C)
func runDatasourcePingEvery(ctx context.Context, workers int, every string) error {
	logger := slog.Default()

	reg, mgr, err := loadRegistry(logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	if workers == 0 {
		workers = mgr.GetStageConfig("ping").Workers
	}

	st := stage.New("ping", workers, reg.Count(), logger)
	svc := executor.NewService(st, logger)

	sched := schedule.NewScheduler(svc, logger)
	_, err = sched.Add("datasource-ping", every, func(jobCtx context.Context) error {
		timeout := viper.GetDuration("timeout")
		pingCtx, cancel := context.WithTimeout(jobCtx, timeout)
		defer cancel()

		for name, pingErr := range reg.PingAll(pingCtx) {
			if pingErr != nil {
				logger.Warn("datasource unreachable", "datasource", name, "error", pingErr)
			} else {
				logger.Info("datasource reachable", "datasource", name)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	sched.Start()
	logger.Info("watching datasources", "schedule", every, "count", reg.Count())

	<-ctx.Done()

	sched.Stop()
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return st.Close(closeCtx)
}

func formatDatasourceTable(infos []datasourceInfo, withStatus bool) error {
	if len(infos) == 0 {
		fmt.Println("No datasources configured")
		return nil
	}

	noColor := viper.GetBool("no-color")
	colors := output.NewColorScheme(os.Stdout, noColor)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

	if withStatus {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			colors.Header("NAME"),
			colors.Header("DRIVER"),
			colors.Header("STATUS"),
			colors.Header("DESCRIPTION"))
	} else {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			colors.Header("NAME"),
			colors.Header("DRIVER"),
			colors.Header("DESCRIPTION"))
	}

	for _, info := range infos {
		if withStatus {
			statusColor := colors.StatusColor(info.Status != "ok")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				colors.Worker(info.Name),
				info.Driver,
				statusColor(info.Status),
				info.Description)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				colors.Worker(info.Name),
				info.Driver,
				info.Description)
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nTotal: %d datasources\n", len(infos))
	return nil
}
