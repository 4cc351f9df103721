// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Display name truncation for hex-style wallet addresses.
const (
	hexPrefix          = "0x"
	displayPrefixLen   = 6
	displaySuffixLen   = 4
	displayEllipsis    = "..."
	minTruncatableSize = displayPrefixLen + displaySuffixLen
)

// ScoreRecord is a player's persisted best score, stored under Key.
type ScoreRecord struct {
	Key           string     `json:"key" yaml:"key"`                                         // storage key; may be a case variant of the address
	WalletAddress string     `json:"wallet_address,omitempty" yaml:"wallet_address,omitempty"` // address as submitted
	Score         int64      `json:"score" yaml:"score"`                                     // absent is stored as 0
	Timestamp     *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	DisplayName   string     `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	MergedFrom    []string   `json:"merged_from,omitempty" yaml:"merged_from,omitempty"`
	MergedAt      *time.Time `json:"merged_at,omitempty" yaml:"merged_at,omitempty"`
}

// NormalizeIdentity lowercases a wallet address. Identity comparison is
// case-insensitive by business rule and must not rely on store collation.
func NormalizeIdentity(s string) string {
	return strings.ToLower(s)
}

// Identity returns the record's normalized identity: the lowercased wallet
// address, or the lowercased key when no address was stored. An empty
// result means the record carries no usable identity.
func (r ScoreRecord) Identity() string {
	if r.WalletAddress != "" {
		return NormalizeIdentity(r.WalletAddress)
	}
	return NormalizeIdentity(r.Key)
}

// IsCanonical reports whether the record is stored under its own identity.
func (r ScoreRecord) IsCanonical() bool {
	id := r.Identity()
	return id != "" && r.Key == id
}

// Clone returns a deep copy so stores and callers never share slices or times.
func (r ScoreRecord) Clone() ScoreRecord {
	c := r
	c.Timestamp = copyTime(r.Timestamp)
	c.MergedAt = copyTime(r.MergedAt)
	if r.MergedFrom != nil {
		c.MergedFrom = append([]string(nil), r.MergedFrom...)
	}
	return c
}

// DisplayNameFor renders the public name for an identity. Hex-style
// addresses become "0x1234...abcd"; anything else is shown as-is.
func DisplayNameFor(identity string) string {
	if !strings.HasPrefix(identity, hexPrefix) || len(identity) <= minTruncatableSize {
		return identity
	}
	return identity[:displayPrefixLen] + displayEllipsis + identity[len(identity)-displaySuffixLen:]
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
