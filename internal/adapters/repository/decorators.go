package repository

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/scorefix/internal/domain/model"
	"github.com/okian/scorefix/pkg/metrics"
)

// ThrottledStore paces Put and Delete through a rate limiter so a cleanup
// against a production collection does not flood it. Reads are not paced.
type ThrottledStore struct {
	Store
	limiter *rate.Limiter
}

// NewThrottled wraps next. A non-positive opsPerSecond returns next as-is.
func NewThrottled(next Store, opsPerSecond float64) Store {
	if opsPerSecond <= 0 {
		return next
	}
	return &ThrottledStore{Store: next, limiter: rate.NewLimiter(rate.Limit(opsPerSecond), 1)}
}

// Put waits for a token, then writes.
func (s *ThrottledStore) Put(ctx context.Context, key string, rec model.ScoreRecord) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return s.Store.Put(ctx, key, rec)
}

// Delete waits for a token, then deletes.
func (s *ThrottledStore) Delete(ctx context.Context, key string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &DeleteError{Key: key, Err: err}
	}
	return s.Store.Delete(ctx, key)
}

// InstrumentedStore records per-operation latency on a metrics manager.
type InstrumentedStore struct {
	next    Store
	metrics *metrics.Manager
}

// NewInstrumented wraps next; a nil manager uses the global one.
func NewInstrumented(next Store, m *metrics.Manager) *InstrumentedStore {
	if m == nil {
		m = metrics.Global()
	}
	return &InstrumentedStore{next: next, metrics: m}
}

func (s *InstrumentedStore) observe(op Op, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.RecordStoreOperation(string(op), outcome, float64(time.Since(start).Microseconds())/1000)
}

// Enumerate delegates and records latency.
func (s *InstrumentedStore) Enumerate(ctx context.Context) ([]model.ScoreRecord, error) {
	start := time.Now()
	recs, err := s.next.Enumerate(ctx)
	s.observe(OpEnumerate, start, err)
	return recs, err
}

// Put delegates and records latency.
func (s *InstrumentedStore) Put(ctx context.Context, key string, rec model.ScoreRecord) error {
	start := time.Now()
	err := s.next.Put(ctx, key, rec)
	s.observe(OpPut, start, err)
	return err
}

// Delete delegates and records latency.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe(OpDelete, start, err)
	return err
}

// Now delegates and records latency.
func (s *InstrumentedStore) Now(ctx context.Context) (time.Time, error) {
	start := time.Now()
	t, err := s.next.Now(ctx)
	s.observe(OpNow, start, err)
	return t, err
}

// Close closes the wrapped store.
func (s *InstrumentedStore) Close() error { return s.next.Close() }
