package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/scorefix/internal/domain/model"
)

// Op names a store operation for fault injection and metrics.
type Op string

// Store operations.
const (
	OpEnumerate Op = "enumerate"
	OpPut       Op = "put"
	OpDelete    Op = "delete"
	OpNow       Op = "now"
)

// MemoryStore is an in-memory collection. Enumeration is in key byte order,
// which matches how document stores list ids. Records are deep-copied on
// the way in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]model.ScoreRecord
	clock  func() time.Time
	faults map[Op]map[string]error
}

// NewMemoryStore creates an empty store and applies opts.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		data:   make(map[string]model.ScoreRecord),
		clock:  time.Now,
		faults: make(map[Op]map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enumerate returns all records sorted by key.
func (s *MemoryStore) Enumerate(_ context.Context) ([]model.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault(OpEnumerate, ""); err != nil {
		return nil, &ReadError{Err: err}
	}

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.ScoreRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.data[k].Clone())
	}
	return out, nil
}

// Put replaces the record at key.
func (s *MemoryStore) Put(_ context.Context, key string, rec model.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(OpPut, key); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	rec = rec.Clone()
	rec.Key = key
	s.data[key] = rec
	return nil
}

// Delete removes key if present.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(OpDelete, key); err != nil {
		return &DeleteError{Key: key, Err: err}
	}
	delete(s.data, key)
	return nil
}

// Now returns the configured clock's time in UTC.
func (s *MemoryStore) Now(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault(OpNow, ""); err != nil {
		return time.Time{}, err
	}
	return s.clock().UTC(), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Get returns a copy of the record at key.
func (s *MemoryStore) Get(key string) (model.ScoreRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[key]
	if !ok {
		return model.ScoreRecord{}, false
	}
	return rec.Clone(), true
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// InjectFault makes op fail with err. An empty key matches every key.
// Passing a nil err clears the fault.
func (s *MemoryStore) InjectFault(op Op, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.faults[op], key)
		return
	}
	if s.faults[op] == nil {
		s.faults[op] = make(map[string]error)
	}
	s.faults[op][key] = err
}

// fault must be called with s.mu held.
func (s *MemoryStore) fault(op Op, key string) error {
	byKey := s.faults[op]
	if byKey == nil {
		return nil
	}
	if err, ok := byKey[key]; ok {
		return err
	}
	return byKey[""]
}
