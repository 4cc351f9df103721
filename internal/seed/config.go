// Package seed loads or generates score records for exercising
// reconciliation against a real store.
package seed

import (
	"context"
	"time"

	"github.com/okian/scorefix/internal/domain/model"
)

// Putter is the write side of a score collection.
type Putter interface {
	Put(ctx context.Context, key string, rec model.ScoreRecord) error
}

// Config controls random generation.
type Config struct {
	Wallets        int           // distinct wallets to generate
	DuplicateRatio float64       // fraction of wallets that get case variants, 0..1
	MaxVariants    int           // upper bound on extra records per duplicated wallet
	LegacyRatio    float64       // fraction of variants stored under a document id instead of the address
	MaxScore       int64         // scores are drawn from [0, MaxScore)
	Spread         time.Duration // timestamps fall within Spread before Now
	Now            func() time.Time
}

// Stats describes a generated batch.
type Stats struct {
	Wallets    int
	Duplicated int
	Records    int
}

// Default generation values.
const (
	DefaultWallets        = 100
	DefaultDuplicateRatio = 0.3
	DefaultMaxVariants    = 2
	DefaultLegacyRatio    = 0.1
	DefaultMaxScore       = 10_000
	DefaultSpread         = 30 * 24 * time.Hour
)

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		Wallets:        DefaultWallets,
		DuplicateRatio: DefaultDuplicateRatio,
		MaxVariants:    DefaultMaxVariants,
		LegacyRatio:    DefaultLegacyRatio,
		MaxScore:       DefaultMaxScore,
		Spread:         DefaultSpread,
		Now:            time.Now,
	}
}
