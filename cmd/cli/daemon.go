package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anstrom/shodan-notifier/internal/api"
	"github.com/anstrom/shodan-notifier/internal/daemon"
	"github.com/anstrom/shodan-notifier/internal/logging"
	"github.com/anstrom/shodan-notifier/internal/metrics"
	"github.com/anstrom/shodan-notifier/internal/notifier"
	"github.com/anstrom/shodan-notifier/internal/scheduler"
)

const daemonStopTimeout = 30 * time.Second

var (
	daemonListenAddr string
	daemonRunOnStart bool
	daemonPIDFile    string
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the notifier on a cron schedule",
	Long: `Run the notifier in the foreground and execute a run on every tick of
schedule.cron. When a listen address is configured a status server exposes
/metrics, /api/v1/health and /api/v1/status. Send SIGINT or SIGTERM to stop,
SIGUSR1 to log the scheduler status.`,
	Example: `  shodan-notifier daemon
  shodan-notifier daemon --listen :9090 --run-on-start
  shodan-notifier daemon --pid-file /var/run/shodan-notifier.pid`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonListenAddr, "listen", "", "status server address (overrides schedule.listen_addr)")
	daemonCmd.Flags().BoolVar(&daemonRunOnStart, "run-on-start", false, "execute one run immediately")
	daemonCmd.Flags().StringVar(&daemonPIDFile, "pid-file", "", "PID file path (overrides schedule.pid_file)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	if daemonListenAddr != "" {
		cfg.Schedule.ListenAddr = daemonListenAddr
	}
	if daemonRunOnStart {
		cfg.Schedule.RunOnStart = true
	}
	if daemonPIDFile != "" {
		cfg.Schedule.PIDFile = daemonPIDFile
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateSchedule(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.Default().WithComponent("daemon")
	pm := metrics.NewPrometheusMetrics()

	pidFile := daemon.NewPIDFile(cfg.Schedule.PIDFile, logger)
	if err := pidFile.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Release(); err != nil {
			logger.Warn("Failed to release PID file", "error", err)
		}
	}()

	pipeline, closePipeline, err := buildPipeline(ctx, cfg, pm, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closePipeline()

	// The targets file is re-read on every run so edits apply without a restart.
	targetsFile := cfg.Targets.File
	run := func(ctx context.Context) (*notifier.RunResult, error) {
		targets, err := notifier.ReadTargets(targetsFile)
		if err != nil {
			return nil, err
		}
		return pipeline.Run(ctx, targets)
	}

	sched, err := scheduler.New(cfg.Schedule.Cron, run, logger)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.Schedule.ListenAddr != "" {
		srv := api.New(api.Config{ListenAddr: cfg.Schedule.ListenAddr}, sched, pm, logger)
		group.Go(func() error {
			return srv.Start(groupCtx)
		})
	}

	if cfg.Schedule.RunOnStart {
		go func() {
			if _, err := sched.RunNow(groupCtx); err != nil {
				logger.Error("Initial run failed", "error", err)
			}
		}()
	}

	go dumpStatusOnSignal(groupCtx, sched, logger)

	logger.Info("Daemon started", "schedule", cfg.Schedule.Cron, "listen", cfg.Schedule.ListenAddr)

	// Canceled by a signal or by the status server failing.
	<-groupCtx.Done()

	logger.Info("Shutting down daemon")
	stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), daemonStopTimeout)
	defer cancel()
	sched.Stop(stopCtx)

	if err := group.Wait(); err != nil {
		logger.Error("Status server stopped unexpectedly", "error", err)
		return err
	}
	return nil
}

// dumpStatusOnSignal logs the scheduler status on every SIGUSR1 until ctx ends.
func dumpStatusOnSignal(ctx context.Context, sched *scheduler.Scheduler, logger *logging.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			logStatus(logger, sched.Status())
		}
	}
}

func logStatus(logger *logging.Logger, st scheduler.Status) {
	fields := []any{
		"schedule", st.Schedule,
		"started", st.Started,
		"executing", st.Executing,
		"runs", st.Runs,
		"next_run", st.NextRun,
	}
	if !st.LastRun.IsZero() {
		fields = append(fields, "last_run", st.LastRun)
	}
	if st.LastResult != nil {
		fields = append(fields, "last_result", st.LastResult.String())
	}
	if st.LastError != "" {
		fields = append(fields, "last_error", st.LastError)
	}
	logger.Info("Daemon status", fields...)
}
