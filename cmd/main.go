package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	app "github.com/okian/scorefix/internal/app"
	"github.com/okian/scorefix/internal/config"
	"github.com/okian/scorefix/pkg/logger"
	"github.com/okian/scorefix/pkg/metrics"
)

// errGroupsFailed makes the process exit non-zero in strict mode.
var errGroupsFailed = errors.New("some duplicate groups were not merged")

// cli holds flag values and the loaded configuration for one invocation.
type cli struct {
	cfg *config.Config

	configPath string
	driver     string
	dsn        string
	table      string
	dryRun     bool
	strict     bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "scorefix",
		Short: "Merge case-variant duplicate wallet score records",
		Long: "Scans the score collection, groups records by lowercased wallet address, " +
			"keeps the highest score under the lowercase key, and deletes the other variants.",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		RunE:              c.reconcile,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file (overrides SCOREFIX_CONFIG)")
	pf.StringVar(&c.driver, "driver", "", "store driver: memory, sqlite, postgres")
	pf.StringVar(&c.dsn, "dsn", "", "store location: sqlite file, postgres URL, or memory fixture")
	pf.StringVar(&c.table, "table", "", "table holding score records")

	f := root.Flags()
	f.BoolVar(&c.dryRun, "dry-run", false, "report planned merges without writing")
	f.BoolVar(&c.strict, "strict", false, "exit non-zero when any duplicate group fails")

	root.AddCommand(newSeedCmd(c))
	return root
}

// setup loads configuration, applies flag overrides, and initializes
// logging and metrics.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if c.configPath != "" {
		if err := os.Setenv("SCOREFIX_CONFIG", c.configPath); err != nil {
			return eris.Wrap(err, "set config path")
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Store.Driver = c.driver
	}
	if flags.Changed("dsn") {
		cfg.Store.DSN = c.dsn
	}
	if flags.Changed("table") {
		cfg.Store.Table = c.table
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = c.dryRun
	}
	if flags.Changed("strict") {
		cfg.FailOnGroupError = c.strict
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Init(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithMetricsEnabled(cfg.Metrics.Enabled),
		metrics.WithCustomLabels(cfg.Metrics.Labels),
	)
	return nil
}

// reconcile runs one pass and prints the summary report to stdout.
func (c *cli) reconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.Get()

	store, err := app.OpenStore(ctx, c.cfg.Store, metrics.Global())
	if err != nil {
		return eris.Wrapf(err, "open %s store", c.cfg.Store.Driver)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}()

	svc := app.New(
		app.WithStore(store),
		app.WithLogger(log),
		app.WithMetrics(metrics.Global()),
		app.WithDryRun(c.cfg.DryRun),
		app.WithMetricsTextfile(c.cfg.Metrics.Textfile),
	)
	sum, runErr := svc.Run(ctx)
	if sum != nil {
		if err := sum.WriteReport(cmd.OutOrStdout()); err != nil {
			return eris.Wrap(err, "write report")
		}
	}
	if runErr != nil {
		return runErr
	}
	if c.cfg.FailOnGroupError && len(sum.Failures) > 0 {
		return fmt.Errorf("%w: %d of %d", errGroupsFailed, len(sum.Failures), sum.DuplicateGroups)
	}
	return nil
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM; the reconciler stops
	// between groups.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
