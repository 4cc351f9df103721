// Package repository defines the score collection contract and its adapters.
package repository

import (
	"context"
	"time"

	"github.com/okian/scorefix/internal/domain/model"
)

// Store provides access to the persisted score collection.
type Store interface {
	// Enumerate returns every record in the collection in the store's
	// enumeration order. Failures are reported as *ReadError.
	Enumerate(ctx context.Context) ([]model.ScoreRecord, error)

	// Put fully replaces the record stored under key; no field-level merge.
	// Failures are reported as *WriteError.
	Put(ctx context.Context, key string, rec model.ScoreRecord) error

	// Delete removes the record stored under key. Deleting an absent key
	// is not an error. Failures are reported as *DeleteError.
	Delete(ctx context.Context, key string) error

	// Now returns the store's notion of the current time, used for fields
	// the caller leaves blank.
	Now(ctx context.Context) (time.Time, error)

	Close() error
}
