package repository

import (
	"time"

	"github.com/okian/scorefix/internal/domain/model"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock sets the time source returned by Now.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRecords preloads records, each stored under its own Key.
func WithRecords(records ...model.ScoreRecord) Option {
	return func(s *MemoryStore) {
		for _, r := range records {
			s.data[r.Key] = r.Clone()
		}
	}
}
