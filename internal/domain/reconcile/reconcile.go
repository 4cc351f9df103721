// Package reconcile merges score records that share a wallet identity into
// one canonical record and retires the rest.
//
// Each duplicate group goes through the same sequence: read the store's
// clock, write the canonical record, then delete the non-canonical keys.
// The write always lands before the first delete, so an interrupted run
// leaves at most a stale duplicate behind and never loses the best score.
// Running again finishes the job.
//
// A group whose canonical key currently stores another wallet's record is
// not touched at all. It is reported as a conflict for an operator to
// resolve.
package reconcile

import (
	"context"
	"time"

	"github.com/okian/scorefix/internal/domain/dedupe"
	"github.com/okian/scorefix/internal/domain/model"
	"github.com/okian/scorefix/pkg/logger"
	"github.com/okian/scorefix/pkg/metrics"
)

// Store is the write side of the score collection.
type Store interface {
	Put(ctx context.Context, key string, rec model.ScoreRecord) error
	Delete(ctx context.Context, key string) error
	Now(ctx context.Context) (time.Time, error)
}

// Stages at which a group can fail.
const (
	StageConflict = "conflict"
	StageClock    = "clock"
	StagePut      = "put"
	StageDelete   = "delete"
)

// Failure records a duplicate group that was left unfinished.
type Failure struct {
	Identity string
	Stage    string
	Key      string
	Err      error
}

// Plan describes what a merge of one group does.
type Plan struct {
	Identity    string
	SurvivorKey string
	Score       int64
	MergedFrom  []string
	Retire      []string
}

// Reconciler applies merges group by group.
type Reconciler struct {
	store   Store
	logger  logger.Logger
	metrics *metrics.Manager
	dryRun  bool
}

// New creates a Reconciler writing to store.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.Global()
	}
	return r
}

// PlanGroup computes the merge for a duplicate group without touching
// the store.
func PlanGroup(g dedupe.Group) Plan {
	survivor := g.Records[SelectSurvivor(g.Records)]
	return Plan{
		Identity:    g.Identity,
		SurvivorKey: survivor.Key,
		Score:       survivor.Score,
		MergedFrom:  g.Keys(),
		Retire:      RetiredKeys(g),
	}
}

// Reconcile processes every duplicate group of ix in order. Per-group
// failures are recorded in the summary and do not stop the run. The only
// error returned is a cancelled context, checked between groups; the
// summary is still valid in that case.
func (r *Reconciler) Reconcile(ctx context.Context, ix *dedupe.Index) (*Summary, error) {
	sum := &Summary{
		DryRun:         r.dryRun,
		RecordsScanned: ix.Records,
		Malformed:      len(ix.Malformed),
		Identities:     ix.Identities(),
	}

	for _, g := range ix.Groups {
		if !g.IsDuplicate() {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.logger.Warn(ctx, "reconciliation interrupted", logger.String("next_identity", g.Identity), logger.Error(err))
			return sum, err
		}

		sum.DuplicateGroups++
		r.metrics.RecordDuplicateGroup()

		plan := PlanGroup(g)
		r.logger.Info(ctx, "found duplicate identity",
			logger.String("identity", g.Identity),
			logger.Int("entries", len(g.Records)),
			logger.String("survivor", plan.SurvivorKey),
			logger.Int64("score", plan.Score),
		)
		for _, rec := range g.Records {
			r.logger.Debug(ctx, "duplicate entry",
				logger.String("identity", g.Identity),
				logger.String("key", rec.Key),
				logger.Int64("score", rec.Score),
			)
		}

		if fail := checkConflict(ix, g); fail != nil {
			r.recordFailure(ctx, sum, fail)
			continue
		}

		if r.dryRun {
			sum.Planned = append(sum.Planned, plan)
			r.logger.Info(ctx, "dry run: merge planned",
				logger.String("identity", g.Identity),
				logger.Strings("retire", plan.Retire),
			)
			continue
		}

		retired, fail := r.mergeGroup(ctx, g, plan)
		sum.Retired += retired
		if fail != nil {
			r.recordFailure(ctx, sum, fail)
			continue
		}
		sum.Merged++
		r.metrics.RecordGroupMerged()
	}
	return sum, nil
}

func (r *Reconciler) recordFailure(ctx context.Context, sum *Summary, fail *Failure) {
	sum.Failures = append(sum.Failures, *fail)
	r.metrics.RecordGroupFailure(fail.Stage)
	r.logger.Error(ctx, "merge failed; group left for the next run",
		logger.String("identity", fail.Identity),
		logger.String("stage", fail.Stage),
		logger.String("key", fail.Key),
		logger.Error(fail.Err),
	)
}

// checkConflict refuses a group whose canonical key stores a record of
// another identity at scan time. Retire keys always belong to the group
// itself, so once this passes no write or delete of the group can reach
// another identity's record.
func checkConflict(ix *dedupe.Index, g dedupe.Group) *Failure {
	owner, ok := ix.OwnerOf(g.Identity)
	if !ok || owner == g.Identity {
		return nil
	}
	return &Failure{
		Identity: g.Identity,
		Stage:    StageConflict,
		Key:      g.Identity,
		Err:      &KeyConflictError{Key: g.Identity, Owner: owner},
	}
}

// mergeGroup writes the canonical record and then retires the other keys.
// It stops at the first failing operation.
func (r *Reconciler) mergeGroup(ctx context.Context, g dedupe.Group, plan Plan) (int, *Failure) {
	now, err := r.store.Now(ctx)
	if err != nil {
		return 0, &Failure{Identity: g.Identity, Stage: StageClock, Err: err}
	}

	survivor := g.Records[SelectSurvivor(g.Records)]
	canonical := Consolidate(g, survivor, now)
	if err := r.store.Put(ctx, canonical.Key, canonical); err != nil {
		return 0, &Failure{Identity: g.Identity, Stage: StagePut, Key: canonical.Key, Err: err}
	}
	r.logger.Info(ctx, "wrote canonical record",
		logger.String("identity", g.Identity),
		logger.Int64("score", canonical.Score),
		logger.Strings("merged_from", canonical.MergedFrom),
	)

	retired := 0
	for _, key := range plan.Retire {
		if err := r.store.Delete(ctx, key); err != nil {
			return retired, &Failure{Identity: g.Identity, Stage: StageDelete, Key: key, Err: err}
		}
		retired++
		r.metrics.RecordRecordRetired()
		r.logger.Info(ctx, "retired duplicate", logger.String("identity", g.Identity), logger.String("key", key))
	}
	return retired, nil
}
