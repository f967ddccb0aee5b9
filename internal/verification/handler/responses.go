package handler

import (
	"time"

	"procverify/internal/decision"
	"procverify/internal/history"
	"procverify/internal/policy"
	"procverify/internal/verification/service"
	dErrors "procverify/pkg/domain-errors"
)

type CitationResponse struct {
	PolicyID    string `json:"policyId"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

type FindingResponse struct {
	PolicyID    string `json:"policyId"`
	Outcome     string `json:"outcome"`
	Explanation string `json:"explanation"`
	Evidence    string `json:"evidence,omitempty"`
}

// DecisionResponse is the body of POST /verify.
type DecisionResponse struct {
	ProcessNumber    string             `json:"processNumber"`
	Decision         string             `json:"decision"`
	Rationale        string             `json:"rationale"`
	Citations        []CitationResponse `json:"citations"`
	Confidence       float64            `json:"confidence"`
	Findings         []FindingResponse  `json:"findings"`
	ProcessingTimeMs float64            `json:"processingTimeMs"`
	ProcessedAt      time.Time          `json:"processedAt"`
	CatalogVersion   string             `json:"catalogVersion"`
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func FromDecision(d *decision.Decision) *DecisionResponse {
	resp := &DecisionResponse{
		ProcessNumber:    d.ProcessNumber,
		Decision:         d.Outcome.String(),
		Rationale:        d.Rationale,
		Citations:        make([]CitationResponse, 0, len(d.Citations)),
		Confidence:       d.Confidence,
		Findings:         make([]FindingResponse, 0, len(d.Findings)),
		ProcessingTimeMs: millis(d.Duration),
		ProcessedAt:      d.DecidedAt,
		CatalogVersion:   d.CatalogVersion,
	}
	for _, c := range d.Citations {
		resp.Citations = append(resp.Citations, CitationResponse(c))
	}
	for _, f := range d.Findings {
		resp.Findings = append(resp.Findings, FindingResponse{
			PolicyID:    f.PolicyID,
			Outcome:     string(f.Outcome),
			Explanation: f.Explanation,
			Evidence:    f.Evidence,
		})
	}
	return resp
}

// ErrorResponse mirrors the top-level error envelope for batch items.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// itemError reports the innermost meaningful code: a validation failure
// inside a batch item surfaces as validation_error, not batch_item_error.
func itemError(err error) *ErrorResponse {
	code := dErrors.CodeBatchItem
	for _, c := range []dErrors.Code{dErrors.CodeValidation, dErrors.CodeBadRequest} {
		if dErrors.HasCode(err, c) {
			code = c
			break
		}
	}
	return &ErrorResponse{Code: string(code), Description: err.Error()}
}

type BatchItemResponse struct {
	Index         int               `json:"index"`
	ProcessNumber string            `json:"processNumber,omitempty"`
	Decision      *DecisionResponse `json:"decision,omitempty"`
	Error         *ErrorResponse    `json:"error,omitempty"`
}

// BatchResponse is the body of POST /verify/batch.
type BatchResponse struct {
	BatchID     string              `json:"batchId"`
	Total       int                 `json:"total"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	ByOutcome   map[string]int      `json:"byOutcome"`
	Results     []BatchItemResponse `json:"results"`
	TotalTimeMs float64             `json:"totalTimeMs"`
}

func FromBatch(batchID string, results []service.BatchResult, elapsed time.Duration) *BatchResponse {
	summary := service.Summarize(results)
	resp := &BatchResponse{
		BatchID:     batchID,
		Total:       summary.Total,
		Succeeded:   summary.Succeeded,
		Failed:      summary.Failed,
		ByOutcome:   make(map[string]int, len(summary.ByOutcome)),
		Results:     make([]BatchItemResponse, 0, len(results)),
		TotalTimeMs: millis(elapsed),
	}
	for outcome, n := range summary.ByOutcome {
		resp.ByOutcome[outcome.String()] = n
	}
	for _, r := range results {
		item := BatchItemResponse{Index: r.Index, ProcessNumber: r.ProcessNumber}
		if r.Err != nil {
			item.Error = itemError(r.Err)
		} else {
			item.Decision = FromDecision(r.Decision)
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

type VerificationResponse struct {
	ID               string    `json:"id"`
	ProcessNumber    string    `json:"processNumber,omitempty"`
	Decision         string    `json:"decision"`
	PolicyIDs        []string  `json:"policyIds"`
	Confidence       float64   `json:"confidence"`
	ProcessingTimeMs float64   `json:"processingTimeMs"`
	CacheHit         bool      `json:"cacheHit"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// HistoryResponse is the body of GET /process/{number}.
type HistoryResponse struct {
	ProcessNumber string                 `json:"processNumber"`
	Total         int                    `json:"total"`
	Latest        string                 `json:"latestDecision"`
	Verifications []VerificationResponse `json:"verifications"`
}

func FromHistory(number string, records []history.Record) *HistoryResponse {
	resp := &HistoryResponse{
		ProcessNumber: number,
		Total:         len(records),
		Verifications: make([]VerificationResponse, 0, len(records)),
	}
	for _, r := range records {
		resp.Verifications = append(resp.Verifications, toVerification(r))
	}
	if len(records) > 0 {
		resp.Latest = records[len(records)-1].Outcome.String()
	}
	return resp
}

func toVerification(r history.Record) VerificationResponse {
	ids := r.PolicyIDs
	if ids == nil {
		ids = []string{}
	}
	return VerificationResponse{
		ID:               r.ID.String(),
		Decision:         r.Outcome.String(),
		PolicyIDs:        ids,
		Confidence:       r.Confidence,
		ProcessingTimeMs: r.LatencyMillis(),
		CacheHit:         r.CacheHit,
		RecordedAt:       r.RecordedAt,
	}
}

// ProcessListResponse is the body of GET /process.
type ProcessListResponse struct {
	Total         int                    `json:"total"`
	Returned      int                    `json:"returned"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
	Decision      string                 `json:"decision,omitempty"`
	Verifications []VerificationResponse `json:"verifications"`
}

func FromHistoryPage(page service.HistoryPage, outcome decision.Outcome, limit, offset int) *ProcessListResponse {
	resp := &ProcessListResponse{
		Total:         page.Total,
		Returned:      len(page.Records),
		Limit:         limit,
		Offset:        offset,
		Decision:      string(outcome),
		Verifications: make([]VerificationResponse, 0, len(page.Records)),
	}
	for _, r := range page.Records {
		v := toVerification(r)
		v.ProcessNumber = r.ProcessNumber
		resp.Verifications = append(resp.Verifications, v)
	}
	return resp
}

type PolicyResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// PoliciesResponse is the body of GET /policies.
type PoliciesResponse struct {
	Version  string           `json:"version"`
	Total    int              `json:"total"`
	Policies []PolicyResponse `json:"policies"`
}

func FromCatalog(c *policy.Catalog) *PoliciesResponse {
	policies := c.Policies()
	resp := &PoliciesResponse{
		Version:  c.Version(),
		Total:    len(policies),
		Policies: make([]PolicyResponse, 0, len(policies)),
	}
	for _, p := range policies {
		resp.Policies = append(resp.Policies, PolicyResponse{
			ID:          p.ID,
			Title:       p.Title,
			Category:    p.Category,
			Kind:        string(p.Kind),
			Severity:    string(p.Severity),
			Description: p.Description,
		})
	}
	return resp
}

// CacheStatsResponse is the body of GET /monitoring/cache-stats.
type CacheStatsResponse struct {
	Enabled bool    `json:"enabled"`
	Entries int64   `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

func FromCacheReport(r service.CacheReport) *CacheStatsResponse {
	return &CacheStatsResponse{
		Enabled: r.Enabled,
		Entries: r.Stats.Entries,
		Hits:    r.Stats.Hits,
		Misses:  r.Stats.Misses,
		HitRate: r.HitRate,
	}
}
