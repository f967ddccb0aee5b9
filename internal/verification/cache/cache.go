// Package cache stores synthesized decisions keyed by process fingerprint.
// The cache is a pure optimization: a miss, a disabled cache or a failing
// backend never changes a decision.
package cache

import (
	"context"
	"time"

	"procverify/internal/decision"
)

// Cache is implemented by InMemoryCache, RedisCache and Guarded.
// Get returns sentinel.ErrNotFound on a miss; backend failures wrap
// sentinel.ErrUnavailable.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*decision.Decision, error)
	Put(ctx context.Context, fingerprint string, d *decision.Decision) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	ResetStats(ctx context.Context) error
}

// Stats reports cache occupancy and lookup counters.
type Stats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// HitRate is hits over lookups as a percentage, 0 when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Entry describes one cached decision for admin listings.
type Entry struct {
	Fingerprint   string           `json:"fingerprint"`
	ProcessNumber string           `json:"process_number"`
	Outcome       decision.Outcome `json:"outcome"`
	StoredAt      time.Time        `json:"stored_at"`
}
