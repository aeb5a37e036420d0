package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/shodan-notifier/internal/config"
	"github.com/anstrom/shodan-notifier/internal/logging"
	"github.com/anstrom/shodan-notifier/internal/metrics"
	"github.com/anstrom/shodan-notifier/internal/notifier"
)

const pushTimeout = 10 * time.Second

var (
	runTargetsFile string
	runDryRun      bool
	runNoDiff      bool
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Look up all targets once and publish the report",
	Long: `Look up every address in the targets file, store the new snapshot,
archive it under today's date and publish either the full listing (first run)
or the additions and removals since the previous snapshot.`,
	Example: `  shodan-notifier run
  shodan-notifier run --targets iplist.txt
  shodan-notifier run --dry-run --no-diff`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runTargetsFile, "targets", "t", "", "targets file (overrides targets.file)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the report instead of publishing it")
	runCmd.Flags().BoolVar(&runNoDiff, "no-diff", false, "always report the full listing")
}

// runOptions are the per-invocation overrides of the run command.
type runOptions struct {
	TargetsFile string
	DryRun      bool
	NoDiff      bool
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executeRun(ctx, cfg, runOptions{
		TargetsFile: runTargetsFile,
		DryRun:      runDryRun,
		NoDiff:      runNoDiff,
	}, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), result.String())
	return nil
}

// applyRunOptions applies command line overrides to cfg.
func applyRunOptions(cfg *config.Config, opts runOptions) {
	if opts.TargetsFile != "" {
		cfg.Targets.File = opts.TargetsFile
	}
	if opts.DryRun {
		cfg.Publish.Kind = config.PublisherStdout
	}
	if opts.NoDiff {
		cfg.Diff.Enabled = false
	}
}

// executeRun performs one complete run. Dry runs write the report to out.
func executeRun(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer) (*notifier.RunResult, error) {
	applyRunOptions(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	targets, err := notifier.ReadTargets(cfg.Targets.File)
	if err != nil {
		return nil, err
	}

	logger := logging.Default().WithComponent("run")
	pm := metrics.NewPrometheusMetrics()

	pipeline, closePipeline, err := buildPipeline(ctx, cfg, pm, logger, out)
	if err != nil {
		return nil, err
	}
	defer closePipeline()

	result, runErr := pipeline.Run(ctx, targets)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		if err := pm.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("Failed to push metrics", "gateway", cfg.Metrics.PushgatewayURL, "error", err)
		}
		cancel()
	}

	return result, runErr
}
