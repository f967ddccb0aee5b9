// Package history keeps the append-only log of verification outcomes that
// backs process lookups and analytics.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"procverify/internal/decision"
)

// Record is one verification call, cache hits included.
type Record struct {
	ID            uuid.UUID        `json:"id"`
	ProcessNumber string           `json:"process_number"`
	Outcome       decision.Outcome `json:"outcome"`
	PolicyIDs     []string         `json:"policy_ids"`
	Confidence    float64          `json:"confidence"`
	Latency       time.Duration    `json:"latency"`
	CacheHit      bool             `json:"cache_hit"`
	Fingerprint   string           `json:"fingerprint"`
	RequestID     string           `json:"request_id,omitempty"`
	RecordedAt    time.Time        `json:"recorded_at"`
}

// NewRecord captures the parts of a decision the history keeps.
func NewRecord(d *decision.Decision, cacheHit bool, requestID string, now time.Time) Record {
	return Record{
		ID:            uuid.New(),
		ProcessNumber: d.ProcessNumber,
		Outcome:       d.Outcome,
		PolicyIDs:     d.PolicyIDs(),
		Confidence:    d.Confidence,
		Latency:       d.Duration,
		CacheHit:      cacheHit,
		Fingerprint:   d.Fingerprint,
		RequestID:     requestID,
		RecordedAt:    now,
	}
}

// LatencyMillis is the latency as fractional milliseconds.
func (r Record) LatencyMillis() float64 {
	return float64(r.Latency.Microseconds()) / 1000.0
}

// Store is append-only. Lists are ordered by RecordedAt, oldest first, and
// return an empty slice when nothing matches.
type Store interface {
	Append(ctx context.Context, r Record) error
	ListByProcess(ctx context.Context, processNumber string) ([]Record, error)
	ListAll(ctx context.Context) ([]Record, error)
}
