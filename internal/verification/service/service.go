// Package service orchestrates a verification: validate, fingerprint, cache
// lookup, evaluate, synthesize, optional enrichment, cache store and history.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"procverify/internal/decision"
	"procverify/internal/history"
	"procverify/internal/policy"
	"procverify/internal/process/models"
	"procverify/internal/verification/cache"
	"procverify/internal/verification/fingerprint"
	"procverify/internal/verification/metrics"
	dErrors "procverify/pkg/domain-errors"
	"procverify/pkg/platform/sentinel"
	"procverify/pkg/requestcontext"
)

const (
	DefaultMaxBatchSize      = 50
	DefaultBatchConcurrency  = 8
	DefaultEnrichmentTimeout = 2 * time.Second
	DefaultListLimit         = 100
	MaxListLimit             = 1000
	tracerName               = "procverify/verification"
)

// DecisionCache is the cache port. A nil cache disables caching.
type DecisionCache interface {
	Get(ctx context.Context, fingerprint string) (*decision.Decision, error)
	Put(ctx context.Context, fingerprint string, d *decision.Decision) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (cache.Stats, error)
	ResetStats(ctx context.Context) error
}

// HistoryStore receives one record per Verify call.
type HistoryStore interface {
	Append(ctx context.Context, r history.Record) error
	ListByProcess(ctx context.Context, processNumber string) ([]history.Record, error)
	ListAll(ctx context.Context) ([]history.Record, error)
}

// Enricher produces an analyst note for a rule-based decision. It must not
// be relied on: errors and timeouts fall back to the rule-only decision.
type Enricher interface {
	Enrich(ctx context.Context, d *decision.Decision) (string, error)
}

// Service is safe for concurrent use.
type Service struct {
	catalog     *policy.Catalog
	synthesizer *decision.Synthesizer
	cache       DecisionCache
	history     HistoryStore
	enricher    Enricher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	maxBatchSize      int
	batchConcurrency  int
	enrichmentTimeout time.Duration
}

type Option func(*Service)

func WithCache(c DecisionCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithHistory(h HistoryStore) Option {
	return func(s *Service) {
		s.history = h
	}
}

func WithEnricher(e Enricher) Option {
	return func(s *Service) {
		s.enricher = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxBatchSize caps batch requests; values outside 1..50 are ignored.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n >= 1 && n <= DefaultMaxBatchSize {
			s.maxBatchSize = n
		}
	}
}

func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.batchConcurrency = n
		}
	}
}

func WithEnrichmentTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.enrichmentTimeout = d
		}
	}
}

// New constructs a Service.
func New(catalog *policy.Catalog, synthesizer *decision.Synthesizer, opts ...Option) *Service {
	s := &Service{
		catalog:           catalog,
		synthesizer:       synthesizer,
		logger:            slog.Default(),
		now:               time.Now,
		maxBatchSize:      DefaultMaxBatchSize,
		batchConcurrency:  DefaultBatchConcurrency,
		enrichmentTimeout: DefaultEnrichmentTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.synthesizer == nil {
		s.synthesizer = decision.NewSynthesizer()
	}
	return s
}

// Catalog returns the active policy catalog.
func (s *Service) Catalog() *policy.Catalog {
	return s.catalog
}

// MaxBatchSize returns the configured batch cap.
func (s *Service) MaxBatchSize() int {
	return s.maxBatchSize
}

// Verify evaluates one process. Only validation failures are returned as
// errors; cache, enrichment and history problems are logged and skipped.
func (s *Service) Verify(ctx context.Context, p *models.Process) (*decision.Decision, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "verification.Verify")
	defer span.End()

	start := s.now()
	requestID := requestcontext.RequestID(ctx)

	if err := p.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid process")
		return nil, err
	}
	span.SetAttributes(attribute.String("process.number", p.Number))

	fp, err := fingerprint.Of(p, s.catalog.Version())
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fingerprint process")
	}

	if cached, ok := s.lookup(ctx, fp); ok {
		cached.Duration = s.now().Sub(start)
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.String("decision.outcome", cached.Outcome.String()))
		s.metrics.IncrementOutcome(cached.Outcome.String(), true)
		s.metrics.ObserveVerifyLatency(cached.Duration)
		s.appendHistory(ctx, cached, true, requestID)
		s.logger.InfoContext(ctx, "decision served from cache",
			"request_id", requestID,
			"process_number", p.Number,
			"outcome", cached.Outcome,
			"fingerprint", fp,
		)
		return cached, nil
	}

	findings := policy.Evaluate(p, s.catalog)
	d := s.synthesizer.Synthesize(p.Number, findings, s.catalog)
	d.Fingerprint = fp
	d.DecidedAt = s.now()
	d = s.enrich(ctx, d)
	d.Duration = s.now().Sub(start)

	s.store(ctx, fp, d)
	s.appendHistory(ctx, d, false, requestID)

	span.SetAttributes(attribute.Bool("cache.hit", false), attribute.String("decision.outcome", d.Outcome.String()))
	s.metrics.IncrementOutcome(d.Outcome.String(), false)
	s.metrics.ObserveVerifyLatency(d.Duration)
	s.logger.InfoContext(ctx, "decision evaluated",
		"request_id", requestID,
		"process_number", p.Number,
		"outcome", d.Outcome,
		"confidence", d.Confidence,
		"citations", d.PolicyIDs(),
		"duration_ms", d.Duration.Milliseconds(),
	)
	return d, nil
}

func (s *Service) lookup(ctx context.Context, fp string) (*decision.Decision, bool) {
	if s.cache == nil {
		return nil, false
	}
	d, err := s.cache.Get(ctx, fp)
	switch {
	case err == nil && d != nil:
		s.metrics.IncrementCacheLookup("hit")
		return d.Clone(), true
	case err == nil, errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncrementCacheLookup("miss")
	default:
		s.metrics.IncrementCacheLookup("error")
		s.logger.WarnContext(ctx, "decision cache lookup failed, evaluating uncached",
			"request_id", requestcontext.RequestID(ctx),
			"fingerprint", fp,
			"error", err,
		)
	}
	return nil, false
}

func (s *Service) store(ctx context.Context, fp string, d *decision.Decision) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, fp, d.Clone()); err != nil {
		s.logger.WarnContext(ctx, "decision cache store failed",
			"request_id", requestcontext.RequestID(ctx),
			"fingerprint", fp,
			"error", err,
		)
	}
}

func (s *Service) appendHistory(ctx context.Context, d *decision.Decision, cacheHit bool, requestID string) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, history.NewRecord(d, cacheHit, requestID, s.now())); err != nil {
		s.metrics.IncrementHistoryFailure()
		s.logger.ErrorContext(ctx, "history append failed",
			"request_id", requestID,
			"process_number", d.ProcessNumber,
			"error", err,
		)
	}
}

// History returns the verification history of one process.
func (s *Service) History(ctx context.Context, processNumber string) ([]history.Record, error) {
	if s.history == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "history is not configured")
	}
	records, err := s.history.ListByProcess(ctx, processNumber)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list history")
	}
	if len(records) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no verification found for process "+processNumber)
	}
	return records, nil
}

// HistoryPage is one window of the full verification history.
type HistoryPage struct {
	Total   int
	Records []history.Record
}

// ListHistory pages through every recorded verification, oldest first,
// optionally keeping only one outcome. An empty outcome keeps all.
func (s *Service) ListHistory(ctx context.Context, outcome decision.Outcome, limit, offset int) (HistoryPage, error) {
	if s.history == nil {
		return HistoryPage{}, dErrors.New(dErrors.CodeUnavailable, "history is not configured")
	}
	if outcome != "" && !outcome.IsValid() {
		return HistoryPage{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown decision %q", outcome))
	}
	if limit < 1 || limit > MaxListLimit {
		return HistoryPage{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}
	if offset < 0 {
		return HistoryPage{}, dErrors.New(dErrors.CodeValidation, "offset must not be negative")
	}

	all, err := s.history.ListAll(ctx)
	if err != nil {
		return HistoryPage{}, dErrors.Wrap(err, dErrors.CodeInternal, "list history")
	}
	matched := all
	if outcome != "" {
		matched = make([]history.Record, 0, len(all))
		for _, r := range all {
			if r.Outcome == outcome {
				matched = append(matched, r)
			}
		}
	}

	page := HistoryPage{Total: len(matched), Records: []history.Record{}}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		page.Records = matched[offset:end]
	}
	return page, nil
}

// CacheReport is the administrative view of the cache.
type CacheReport struct {
	Enabled bool
	Stats   cache.Stats
	HitRate float64
}

func (s *Service) CacheStats(ctx context.Context) (CacheReport, error) {
	if s.cache == nil {
		return CacheReport{}, nil
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return CacheReport{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "read cache stats")
	}
	return CacheReport{Enabled: true, Stats: stats, HitRate: stats.HitRate()}, nil
}

// ClearCache drops cached decisions. It is a no-op when caching is disabled.
func (s *Service) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "clear cache")
	}
	s.logger.InfoContext(ctx, "decision cache cleared", "request_id", requestcontext.RequestID(ctx))
	return nil
}

// ResetCacheStats zeroes the hit and miss counters.
func (s *Service) ResetCacheStats(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.ResetStats(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "reset cache stats")
	}
	return nil
}
