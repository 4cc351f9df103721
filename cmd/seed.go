package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	app "github.com/okian/scorefix/internal/app"
	"github.com/okian/scorefix/internal/config"
	"github.com/okian/scorefix/internal/domain/model"
	"github.com/okian/scorefix/internal/seed"
	"github.com/okian/scorefix/pkg/logger"
	"github.com/okian/scorefix/pkg/metrics"
)

type seedFlags struct {
	fixture string
	out     string
	gen     seed.Config
}

func newSeedCmd(c *cli) *cobra.Command {
	sf := &seedFlags{gen: seed.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load score records from a fixture or generate wallets with case-variant duplicates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.seed(cmd, sf)
		},
	}
	f := cmd.Flags()
	f.StringVar(&sf.fixture, "fixture", "", "YAML fixture to load instead of generating")
	f.StringVar(&sf.out, "out", "", "write records to this YAML file instead of the store")
	f.IntVar(&sf.gen.Wallets, "wallets", seed.DefaultWallets, "wallets to generate")
	f.Float64Var(&sf.gen.DuplicateRatio, "duplicate-ratio", seed.DefaultDuplicateRatio, "fraction of wallets given case variants")
	f.IntVar(&sf.gen.MaxVariants, "max-variants", seed.DefaultMaxVariants, "maximum extra records per duplicated wallet")
	f.Float64Var(&sf.gen.LegacyRatio, "legacy-ratio", seed.DefaultLegacyRatio, "fraction of variants stored under a document id")
	return cmd
}

func (c *cli) seed(cmd *cobra.Command, sf *seedFlags) error {
	ctx := cmd.Context()
	log := logger.Get().Named("seed")

	var (
		records []model.ScoreRecord
		err     error
	)
	if sf.fixture != "" {
		records, err = seed.LoadFile(sf.fixture)
		if err != nil {
			return err
		}
	} else {
		var stats seed.Stats
		records, stats, err = seed.Generate(ctx, sf.gen)
		if err != nil {
			return err
		}
		log.Info(ctx, "generated score records",
			logger.Int("wallets", stats.Wallets),
			logger.Int("duplicated", stats.Duplicated),
			logger.Int("records", stats.Records),
		)
	}

	if sf.out != "" {
		f, err := os.Create(sf.out)
		if err != nil {
			return eris.Wrap(err, "create fixture")
		}
		if err := seed.Encode(f, records); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "close fixture")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(records), sf.out)
		return nil
	}

	if c.cfg.Store.Driver == config.DriverMemory {
		log.Warn(ctx, "seeding the memory store; records are gone when the process exits")
	}
	store, err := app.OpenStore(ctx, c.cfg.Store, metrics.Global())
	if err != nil {
		return eris.Wrapf(err, "open %s store", c.cfg.Store.Driver)
	}
	defer func() { _ = store.Close() }()

	n, err := seed.Apply(ctx, store, records)
	if err != nil {
		return eris.Wrapf(err, "seed after %d records", n)
	}
	log.Info(ctx, "seeded records", logger.Int("count", n))
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records\n", n)
	return nil
}
