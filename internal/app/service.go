// Package service runs one reconciliation pass over a score collection:
// scan, group, merge, report.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	repository "github.com/okian/scorefix/internal/adapters/repository"
	"github.com/okian/scorefix/internal/domain/dedupe"
	"github.com/okian/scorefix/internal/domain/reconcile"
	"github.com/okian/scorefix/pkg/logger"
	"github.com/okian/scorefix/pkg/metrics"
)

// ErrNoStore is returned when Run is called without a store.
var ErrNoStore = errors.New("no store configured")

// Service wires the scanner and the reconciler to a store.
type Service struct {
	store    repository.Store
	logger   logger.Logger
	metrics  *metrics.Manager
	dryRun   bool
	runID    string
	textfile string
	clock    func() time.Time
}

// New constructs a Service. A store must be supplied with WithStore.
func New(opts ...Option) *Service {
	s := &Service{
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one full pass. It returns an error only when the collection
// could not be read or the context was cancelled; per-group failures are
// reported in the summary. The summary is non-nil whenever the scan
// succeeded.
func (s *Service) Run(ctx context.Context) (*reconcile.Summary, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	if s.metrics == nil {
		s.metrics = metrics.Global()
	}
	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := s.logger.With(logger.String("run_id", runID))
	start := s.clock()

	log.Info(ctx, "starting score reconciliation", logger.Bool("dry_run", s.dryRun))

	ix, err := dedupe.NewScanner(s.store, dedupe.WithLogger(log.Named("scanner"))).Scan(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrRead) {
			err = &repository.ReadError{Err: err}
		}
		log.Error(ctx, "could not read score collection", logger.Error(err))
		s.finish(ctx, log, metrics.OutcomeFailure, start)
		return nil, err
	}

	s.metrics.AddRecordsScanned(ix.Records)
	s.metrics.SetIdentitiesSeen(ix.Identities())
	for range ix.Malformed {
		s.metrics.RecordMalformedRecord()
	}
	if ix.Records == 0 {
		log.Info(ctx, "no score records found")
	}

	rec := reconcile.New(s.store,
		reconcile.WithLogger(log.Named("reconciler")),
		reconcile.WithMetrics(s.metrics),
		reconcile.WithDryRun(s.dryRun),
	)
	sum, err := rec.Reconcile(ctx, ix)
	sum.RunID = runID
	sum.Elapsed = s.clock().Sub(start)

	outcome := metrics.OutcomeSuccess
	if err != nil || len(sum.Failures) > 0 {
		outcome = metrics.OutcomeFailure
	}
	s.finish(ctx, log, outcome, start)

	log.Info(ctx, "score reconciliation finished",
		logger.Int("duplicate_groups", sum.DuplicateGroups),
		logger.Int("merged", sum.Merged),
		logger.Int("retired", sum.Retired),
		logger.Int("failed", len(sum.Failures)),
		logger.Duration("elapsed", sum.Elapsed),
	)
	if err != nil {
		return sum, fmt.Errorf("reconcile: %w", err)
	}
	return sum, nil
}

// finish records the run outcome and exports metrics when a textfile is
// configured. Export failures are logged, never returned.
func (s *Service) finish(ctx context.Context, log logger.Logger, outcome string, start time.Time) {
	end := s.clock()
	s.metrics.RecordRun(outcome, end.Sub(start), end)
	if s.textfile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.textfile); err != nil {
		log.Warn(ctx, "could not export metrics", logger.String("path", s.textfile), logger.Error(err))
		return
	}
	log.Debug(ctx, "exported metrics", logger.String("path", s.textfile))
}
