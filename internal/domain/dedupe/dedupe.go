// Package dedupe groups score records by normalized wallet identity.
package dedupe

import (
	"context"
	"fmt"

	"github.com/okian/scorefix/internal/domain/model"
	"github.com/okian/scorefix/pkg/logger"
)

// Enumerator is the read side of the score collection.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]model.ScoreRecord, error)
}

// Group is every record sharing one normalized identity, in scan order.
type Group struct {
	Identity string
	Records  []model.ScoreRecord
}

// IsDuplicate reports whether more than one record claims the identity.
func (g Group) IsDuplicate() bool { return len(g.Records) > 1 }

// Keys returns the storage keys of the group's records in scan order.
func (g Group) Keys() []string {
	keys := make([]string, len(g.Records))
	for i, r := range g.Records {
		keys[i] = r.Key
	}
	return keys
}

// Index is the outcome of one scan. Groups are ordered by the first
// appearance of their identity.
type Index struct {
	Groups    []Group
	Malformed []*MalformedRecordError
	Records   int // records read, malformed ones included

	byIdentity map[string]int
	owners     map[string]string // storage key -> identity of the record there
}

// Identities returns the number of distinct normalized identities.
func (ix *Index) Identities() int { return len(ix.Groups) }

// Lookup returns the group for an identity.
func (ix *Index) Lookup(identity string) (Group, bool) {
	i, ok := ix.byIdentity[identity]
	if !ok {
		return Group{}, false
	}
	return ix.Groups[i], true
}

// OwnerOf returns the identity of the record stored under key.
func (ix *Index) OwnerOf(key string) (string, bool) {
	id, ok := ix.owners[key]
	return id, ok
}

// Duplicates returns only the groups with two or more records.
func (ix *Index) Duplicates() []Group {
	var out []Group
	for _, g := range ix.Groups {
		if g.IsDuplicate() {
			out = append(out, g)
		}
	}
	return out
}

// GroupRecords builds an Index from records in the order given.
// Records without a usable identity are set aside as malformed.
func GroupRecords(records []model.ScoreRecord) *Index {
	ix := &Index{
		Records:    len(records),
		byIdentity: make(map[string]int),
		owners:     make(map[string]string),
	}
	for _, r := range records {
		id := r.Identity()
		if id == "" {
			ix.Malformed = append(ix.Malformed, &MalformedRecordError{Key: r.Key, Reason: "no wallet address or key"})
			continue
		}
		i, ok := ix.byIdentity[id]
		if !ok {
			i = len(ix.Groups)
			ix.byIdentity[id] = i
			ix.Groups = append(ix.Groups, Group{Identity: id})
		}
		ix.Groups[i].Records = append(ix.Groups[i].Records, r)
		ix.owners[r.Key] = id
	}
	return ix
}

// Scanner reads the whole collection and groups it.
type Scanner struct {
	source Enumerator
	logger logger.Logger
}

// NewScanner creates a Scanner over source.
func NewScanner(source Enumerator, opts ...Option) *Scanner {
	s := &Scanner{source: source, logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan enumerates the collection once. A read failure returns no index at
// all; grouping only happens on a complete read.
func (s *Scanner) Scan(ctx context.Context) (*Index, error) {
	records, err := s.source.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan collection: %w", err)
	}

	ix := GroupRecords(records)
	for _, m := range ix.Malformed {
		s.logger.Warn(ctx, "skipping malformed score record", logger.String("key", m.Key), logger.Error(m))
	}
	s.logger.Info(ctx, "scanned score collection",
		logger.Int("records", ix.Records),
		logger.Int("identities", ix.Identities()),
		logger.Int("malformed", len(ix.Malformed)),
	)
	return ix, nil
}
