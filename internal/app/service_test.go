package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	repository "github.com/okian/scorefix/internal/adapters/repository"
	service "github.com/okian/scorefix/internal/app"
	"github.com/okian/scorefix/internal/config"
	"github.com/okian/scorefix/internal/domain/model"
	"github.com/okian/scorefix/internal/domain/reconcile"
	"github.com/okian/scorefix/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func duplicates() []model.ScoreRecord {
	return []model.ScoreRecord{
		{Key: "0xA8F4", WalletAddress: "0xA8F4", Score: 50},
		{Key: "0xa8f4", WalletAddress: "0xa8f4", Score: 120},
		{Key: "0xbeef", WalletAddress: "0xbeef", Score: 3},
		{Key: "", Score: 1},
	}
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a collection with duplicates", t, func() {
		store := repository.NewMemoryStore(repository.WithRecords(duplicates()...))
		m := metrics.NewManager()
		textfile := filepath.Join(t.TempDir(), "scorefix.prom")
		svc := service.New(
			service.WithStore(store),
			service.WithMetrics(m),
			service.WithRunID("run-1"),
			service.WithMetricsTextfile(textfile),
		)

		Convey("When running", func() {
			sum, err := svc.Run(ctx)

			Convey("Then the duplicates are merged and the summary filled in", func() {
				So(err, ShouldBeNil)
				So(sum.RunID, ShouldEqual, "run-1")
				So(sum.RecordsScanned, ShouldEqual, 4)
				So(sum.Malformed, ShouldEqual, 1)
				So(sum.Identities, ShouldEqual, 2)
				So(sum.DuplicateGroups, ShouldEqual, 1)
				So(sum.Merged, ShouldEqual, 1)
				So(sum.Complete(), ShouldBeTrue)

				rec, ok := store.Get("0xa8f4")
				So(ok, ShouldBeTrue)
				So(rec.Score, ShouldEqual, 120)
			})

			Convey("Then the run is counted and exported", func() {
				n, err := testutil.GatherAndCount(m.Registry(), "scorefix_reconcile_runs_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				body, err := os.ReadFile(textfile)
				So(err, ShouldBeNil)
				So(string(body), ShouldContainSubstring, "scorefix_reconcile_groups_merged_total 1")
				So(string(body), ShouldContainSubstring, "scorefix_reconcile_malformed_records_total 1")
			})
		})
	})

	Convey("Given a dry-run service", t, func() {
		store := repository.NewMemoryStore(repository.WithRecords(duplicates()...))
		svc := service.New(
			service.WithStore(store),
			service.WithMetrics(metrics.NewManager()),
			service.WithDryRun(true),
		)

		Convey("When running", func() {
			sum, err := svc.Run(ctx)

			Convey("Then nothing is written and a run id is generated", func() {
				So(err, ShouldBeNil)
				So(sum.DryRun, ShouldBeTrue)
				So(len(sum.Planned), ShouldEqual, 1)
				So(sum.RunID, ShouldNotBeEmpty)
				So(store.Len(), ShouldEqual, 4)
			})
		})
	})

	Convey("Given a collection that cannot be read", t, func() {
		store := repository.NewMemoryStore(repository.WithRecords(duplicates()...))
		store.InjectFault(repository.OpEnumerate, "", errors.New("connection refused"))
		m := metrics.NewManager()
		svc := service.New(service.WithStore(store), service.WithMetrics(m))

		Convey("When running", func() {
			sum, err := svc.Run(ctx)

			Convey("Then the read error is returned and nothing changes", func() {
				So(sum, ShouldBeNil)
				So(errors.Is(err, repository.ErrRead), ShouldBeTrue)
				So(store.Len(), ShouldEqual, 4)

				expected := `
# HELP scorefix_reconcile_runs_total Reconciliation runs by outcome
# TYPE scorefix_reconcile_runs_total counter
scorefix_reconcile_runs_total{outcome="failure"} 1
`
				So(testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "scorefix_reconcile_runs_total"), ShouldBeNil)
			})
		})
	})

	Convey("Given an empty collection", t, func() {
		svc := service.New(
			service.WithStore(repository.NewMemoryStore()),
			service.WithMetrics(metrics.NewManager()),
		)

		Convey("When running", func() {
			sum, err := svc.Run(ctx)

			Convey("Then a zero summary is reported", func() {
				So(err, ShouldBeNil)
				So(sum.RecordsScanned, ShouldEqual, 0)
				So(sum.DuplicateGroups, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a service without a store", t, func() {
		_, err := service.New().Run(ctx)

		Convey("Then it refuses to run", func() {
			So(errors.Is(err, service.ErrNoStore), ShouldBeTrue)
		})
	})

	Convey("Given a service built without a logger", t, func() {
		svc := service.New(
			service.WithStore(repository.NewMemoryStore(repository.WithRecords(duplicates()...))),
			service.WithMetrics(metrics.NewManager()),
		)

		Convey("Then it runs without an initialized global logger", func() {
			var sum *reconcile.Summary
			var err error
			So(func() { sum, err = svc.Run(ctx) }, ShouldNotPanic)
			So(err, ShouldBeNil)
			So(sum.Merged, ShouldEqual, 1)
		})
	})

	Convey("Given a fixed clock", t, func() {
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		calls := 0
		clock := func() time.Time {
			calls++
			return start.Add(time.Duration(calls) * time.Second)
		}
		svc := service.New(
			service.WithStore(repository.NewMemoryStore()),
			service.WithMetrics(metrics.NewManager()),
			service.WithClock(clock),
		)

		Convey("Then elapsed time is measured with it", func() {
			sum, err := svc.Run(ctx)
			So(err, ShouldBeNil)
			So(sum.Elapsed, ShouldEqual, time.Second)
		})
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given store configurations", t, func() {
		m := metrics.NewManager()

		Convey("When opening a memory store with a fixture", func() {
			path := filepath.Join(t.TempDir(), "fixture.yaml")
			So(os.WriteFile(path, []byte("records:\n  - key: \"0xAB\"\n    score: 4\n"), 0o600), ShouldBeNil)

			store, err := service.OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory, DSN: path}, m)

			Convey("Then the fixture is loaded", func() {
				So(err, ShouldBeNil)
				recs, err := store.Enumerate(ctx)
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 1)
				So(recs[0].Key, ShouldEqual, "0xAB")
			})
		})

		Convey("When opening a sqlite store", func() {
			cfg := config.StoreConfig{
				Driver:       config.DriverSQLite,
				DSN:          filepath.Join(t.TempDir(), "scores.db"),
				Table:        "scores",
				OpsPerSecond: 1000,
			}
			store, err := service.OpenStore(ctx, cfg, m)
			So(err, ShouldBeNil)
			defer func() { _ = store.Close() }()

			Convey("Then it accepts writes and reports latency", func() {
				So(store.Put(ctx, "0xab", model.ScoreRecord{WalletAddress: "0xab", Score: 1}), ShouldBeNil)
				recs, err := store.Enumerate(ctx)
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 1)

				n, err := testutil.GatherAndCount(m.Registry(), "scorefix_reconcile_store_operation_milliseconds")
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the driver is unknown", func() {
			_, err := service.OpenStore(ctx, config.StoreConfig{Driver: "mongo"}, m)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrBadDriver), ShouldBeTrue)
			})
		})

		Convey("When the fixture is missing", func() {
			_, err := service.OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory, DSN: "/nonexistent.yaml"}, m)

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
