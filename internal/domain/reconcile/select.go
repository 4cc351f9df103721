package reconcile

import (
	"time"

	"github.com/okian/scorefix/internal/domain/dedupe"
	"github.com/okian/scorefix/internal/domain/model"
)

// SelectSurvivor returns the index of the record with the strictly greatest
// score. Ties go to the earliest record in scan order. records must not be
// empty.
func SelectSurvivor(records []model.ScoreRecord) int {
	best := 0
	for i := 1; i < len(records); i++ {
		if records[i].Score > records[best].Score {
			best = i
		}
	}
	return best
}

// Consolidate builds the canonical record for a duplicate group. The result
// is meant to fully replace whatever is stored at the group's identity.
func Consolidate(g dedupe.Group, survivor model.ScoreRecord, now time.Time) model.ScoreRecord {
	ts := survivor.Timestamp
	if ts == nil {
		t := now
		ts = &t
	} else {
		t := *ts
		ts = &t
	}
	mergedAt := now
	return model.ScoreRecord{
		Key:           g.Identity,
		WalletAddress: g.Identity,
		Score:         survivor.Score,
		Timestamp:     ts,
		DisplayName:   model.DisplayNameFor(g.Identity),
		IPAddress:     survivor.IPAddress,
		MergedFrom:    g.Keys(),
		MergedAt:      &mergedAt,
	}
}

// RetiredKeys lists the group's keys that differ from the canonical key,
// in scan order.
func RetiredKeys(g dedupe.Group) []string {
	var out []string
	for _, r := range g.Records {
		if r.Key != g.Identity {
			out = append(out, r.Key)
		}
	}
	return out
}
