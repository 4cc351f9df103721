package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/scorefix/internal/domain/model"
)

const (
	addressBytes      = 20
	randomFloatDivide = 1_000_000
)

// randomInt returns a uniform value in [0, n) using crypto/rand.
func randomInt(n int64) int64 {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// randomFloat returns a value in [0, 1).
func randomFloat() float64 {
	return float64(randomInt(randomFloatDivide)) / randomFloatDivide
}

func randomAddress() (string, error) {
	b := make([]byte, addressBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random address: %w", err)
	}
	return "0x" + hex.EncodeToString(b), nil
}

// caseVariant upper-cases a random subset of the hex letters after the
// prefix. It returns the input unchanged when there is nothing to flip.
func caseVariant(addr string) string {
	body := []byte(strings.TrimPrefix(addr, "0x"))
	var letters []int
	for i, c := range body {
		if c >= 'a' && c <= 'f' {
			letters = append(letters, i)
		}
	}
	if len(letters) == 0 {
		return addr
	}
	flipped := false
	for _, i := range letters {
		if randomInt(2) == 1 {
			body[i] -= 'a' - 'A'
			flipped = true
		}
	}
	if !flipped {
		i := letters[randomInt(int64(len(letters)))]
		body[i] -= 'a' - 'A'
	}
	return "0x" + string(body)
}

// Generate creates cfg.Wallets wallets. A share of them get extra records
// under case variants of the address, or under a document id, which is the
// shape reconciliation is meant to clean up. Keys are unique.
func Generate(ctx context.Context, cfg Config) ([]model.ScoreRecord, Stats, error) {
	if cfg.Wallets < 0 {
		return nil, Stats{}, fmt.Errorf("wallets must not be negative: %d", cfg.Wallets)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = DefaultMaxScore
	}
	now := cfg.Now().UTC()

	var (
		out   []model.ScoreRecord
		stats = Stats{Wallets: cfg.Wallets}
	)
	record := func(key, wallet string) model.ScoreRecord {
		ts := now.Add(-time.Duration(randomInt(int64(cfg.Spread) + 1)))
		return model.ScoreRecord{
			Key:           key,
			WalletAddress: wallet,
			Score:         randomInt(cfg.MaxScore),
			Timestamp:     &ts,
			DisplayName:   model.DisplayNameFor(strings.ToLower(wallet)),
		}
	}

	for i := 0; i < cfg.Wallets; i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("context cancelled during generation: %w", err)
		}
		addr, err := randomAddress()
		if err != nil {
			return nil, stats, err
		}
		out = append(out, record(addr, addr))

		if cfg.MaxVariants < 1 || randomFloat() >= cfg.DuplicateRatio {
			continue
		}
		seen := map[string]bool{addr: true}
		extra := 1 + int(randomInt(int64(cfg.MaxVariants)))
		added := 0
		for v := 0; v < extra; v++ {
			variant := caseVariant(addr)
			key := variant
			if randomFloat() < cfg.LegacyRatio {
				key = uuid.New().String()
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, record(key, variant))
			added++
		}
		if added > 0 {
			stats.Duplicated++
		}
	}
	stats.Records = len(out)
	return out, stats, nil
}

// Apply writes records to dst under their keys. It stops at the first error.
func Apply(ctx context.Context, dst Putter, records []model.ScoreRecord) (int, error) {
	written := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		key := rec.Key
		if key == "" {
			key = rec.WalletAddress
		}
		if key == "" {
			return written, fmt.Errorf("record %d has neither key nor wallet_address", written)
		}
		if err := dst.Put(ctx, key, rec); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
