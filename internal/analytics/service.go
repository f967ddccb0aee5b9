// Package analytics derives read-only reports from the verification history.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"procverify/internal/decision"
	"procverify/internal/history"
	"procverify/internal/policy"
	dErrors "procverify/pkg/domain-errors"
)

const (
	DefaultTopPolicies = 5
	MaxTopPolicies     = 20
)

// HistoryReader is the slice of history.Store analytics needs.
type HistoryReader interface {
	ListAll(ctx context.Context) ([]history.Record, error)
}

type Service struct {
	history HistoryReader
	catalog *policy.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(h HistoryReader, catalog *policy.Catalog, opts ...Option) *Service {
	s := &Service{
		history: h,
		catalog: catalog,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PolicyCount is how often a policy was cited.
type PolicyCount struct {
	PolicyID string
	Count    int
}

// TopPolicy is a PolicyCount enriched with catalog metadata.
type TopPolicy struct {
	PolicyID    string
	Title       string
	Category    string
	Description string
	Count       int
}

type Distribution struct {
	Approved   int
	Rejected   int
	Incomplete int
	Total      int
}

type ProcessingTime struct {
	AverageMs float64
	MinMs     float64
	MaxMs     float64
	Count     int
}

type Summary struct {
	Distribution
	ApprovalRate   float64
	RejectionRate  float64
	IncompleteRate float64
	ProcessingTime ProcessingTime
	CacheHits      int
	TopPolicies    []TopPolicy
	GeneratedAt    time.Time
}

func (s *Service) records(ctx context.Context) ([]history.Record, error) {
	records, err := s.history.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list verification history")
	}
	return records, nil
}

// Summary reports totals, rates, latency and the most cited policies.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}

	dist := distribution(records)
	summary := &Summary{
		Distribution:   dist,
		ProcessingTime: processingTime(records),
		TopPolicies:    s.top(usage(records), DefaultTopPolicies),
		GeneratedAt:    s.now().UTC(),
	}
	if dist.Total > 0 {
		summary.ApprovalRate = percent(dist.Approved, dist.Total)
		summary.RejectionRate = percent(dist.Rejected, dist.Total)
		summary.IncompleteRate = percent(dist.Incomplete, dist.Total)
	}
	for _, r := range records {
		if r.CacheHit {
			summary.CacheHits++
		}
	}

	s.logger.InfoContext(ctx, "analytics summary computed",
		"total", dist.Total,
		"approval_rate", summary.ApprovalRate,
	)
	return summary, nil
}

// PolicyUsage counts citations per policy, most cited first and ties by id.
func (s *Service) PolicyUsage(ctx context.Context) ([]PolicyCount, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	return usage(records), nil
}

func (s *Service) Distribution(ctx context.Context) (Distribution, error) {
	records, err := s.records(ctx)
	if err != nil {
		return Distribution{}, err
	}
	return distribution(records), nil
}

func (s *Service) ProcessingTime(ctx context.Context) (ProcessingTime, error) {
	records, err := s.records(ctx)
	if err != nil {
		return ProcessingTime{}, err
	}
	return processingTime(records), nil
}

// TopPolicies returns up to limit of the most cited policies known to the
// catalog. limit must be within 1..20.
func (s *Service) TopPolicies(ctx context.Context, limit int) ([]TopPolicy, error) {
	if limit < 1 || limit > MaxTopPolicies {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("limit must be between 1 and %d", MaxTopPolicies))
	}
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	return s.top(usage(records), limit), nil
}

func (s *Service) top(counts []PolicyCount, limit int) []TopPolicy {
	out := make([]TopPolicy, 0, limit)
	for _, c := range counts {
		if len(out) == limit {
			break
		}
		p, ok := s.catalog.Get(c.PolicyID)
		if !ok {
			continue
		}
		out = append(out, TopPolicy{
			PolicyID:    c.PolicyID,
			Title:       p.Title,
			Category:    p.Category,
			Description: p.Description,
			Count:       c.Count,
		})
	}
	return out
}

func usage(records []history.Record) []PolicyCount {
	counts := make(map[string]int)
	for _, r := range records {
		for _, id := range r.PolicyIDs {
			counts[id]++
		}
	}
	out := make([]PolicyCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, PolicyCount{PolicyID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PolicyID < out[j].PolicyID
	})
	return out
}

func distribution(records []history.Record) Distribution {
	d := Distribution{Total: len(records)}
	for _, r := range records {
		switch r.Outcome {
		case decision.OutcomeApproved:
			d.Approved++
		case decision.OutcomeRejected:
			d.Rejected++
		case decision.OutcomeIncomplete:
			d.Incomplete++
		}
	}
	return d
}

func processingTime(records []history.Record) ProcessingTime {
	if len(records) == 0 {
		return ProcessingTime{}
	}
	pt := ProcessingTime{Count: len(records), MinMs: math.Inf(1)}
	var sum float64
	for _, r := range records {
		ms := r.LatencyMillis()
		sum += ms
		pt.MinMs = math.Min(pt.MinMs, ms)
		pt.MaxMs = math.Max(pt.MaxMs, ms)
	}
	pt.AverageMs = round2(sum / float64(len(records)))
	return pt
}

func percent(n, total int) float64 {
	return round2(float64(n) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
