package service

import (
	"context"
	"fmt"

	repository "github.com/okian/scorefix/internal/adapters/repository"
	"github.com/okian/scorefix/internal/config"
	"github.com/okian/scorefix/internal/seed"
	"github.com/okian/scorefix/pkg/metrics"
)

// OpenStore builds the store selected by cfg. The result is rate limited
// when cfg.OpsPerSecond is set and always reports operation latency to m.
// For the memory driver a non-empty DSN names a YAML fixture to preload.
func OpenStore(ctx context.Context, cfg config.StoreConfig, m *metrics.Manager) (repository.Store, error) {
	var (
		store repository.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverMemory, "":
		var opts []repository.Option
		if cfg.DSN != "" {
			recs, lerr := seed.LoadFile(cfg.DSN)
			if lerr != nil {
				return nil, lerr
			}
			opts = append(opts, repository.WithRecords(recs...))
		}
		store = repository.NewMemoryStore(opts...)
	case config.DriverSQLite:
		store, err = repository.NewSQLite(ctx, cfg.DSN, cfg.Table)
	case config.DriverPostgres:
		store, err = repository.NewPostgres(ctx, cfg.DSN, cfg.Table, &repository.PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrBadDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return repository.NewInstrumented(repository.NewThrottled(store, cfg.OpsPerSecond), m), nil
}
