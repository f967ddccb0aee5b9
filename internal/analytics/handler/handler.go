package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"procverify/internal/analytics"
	dErrors "procverify/pkg/domain-errors"
	"procverify/pkg/platform/httputil"
	"procverify/pkg/requestcontext"
)

// Service defines the analytics operations exposed over HTTP.
type Service interface {
	Summary(ctx context.Context) (*analytics.Summary, error)
	PolicyUsage(ctx context.Context) ([]analytics.PolicyCount, error)
	Distribution(ctx context.Context) (analytics.Distribution, error)
	ProcessingTime(ctx context.Context) (analytics.ProcessingTime, error)
	TopPolicies(ctx context.Context, limit int) ([]analytics.TopPolicy, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the analytics endpoints under /analytics.
func (h *Handler) Register(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", h.HandleSummary)
		r.Get("/policies-usage", h.HandlePolicyUsage)
		r.Get("/decision-distribution", h.HandleDistribution)
		r.Get("/processing-time", h.HandleProcessingTime)
		r.Get("/top-policies", h.HandleTopPolicies)
	})
}

type TopPolicyResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Uses        int    `json:"uses"`
}

type ProcessingTimeResponse struct {
	AverageMs float64 `json:"averageMs"`
	MinMs     float64 `json:"minMs"`
	MaxMs     float64 `json:"maxMs"`
	Count     int     `json:"count"`
}

type DistributionResponse struct {
	Approved   int `json:"approved"`
	Rejected   int `json:"rejected"`
	Incomplete int `json:"incomplete"`
	Total      int `json:"total"`
}

type SummaryResponse struct {
	TotalVerifications int                    `json:"totalVerifications"`
	Approved           int                    `json:"approved"`
	Rejected           int                    `json:"rejected"`
	Incomplete         int                    `json:"incomplete"`
	ApprovalRate       float64                `json:"approvalRatePercent"`
	RejectionRate      float64                `json:"rejectionRatePercent"`
	IncompleteRate     float64                `json:"incompleteRatePercent"`
	ProcessingTime     ProcessingTimeResponse `json:"processingTime"`
	CacheHits          int                    `json:"cacheHits"`
	MostCitedPolicies  []TopPolicyResponse    `json:"mostCitedPolicies"`
	Timestamp          time.Time              `json:"timestamp"`
}

func toTopPolicies(top []analytics.TopPolicy, detailed bool) []TopPolicyResponse {
	out := make([]TopPolicyResponse, 0, len(top))
	for _, t := range top {
		resp := TopPolicyResponse{ID: t.PolicyID, Title: t.Title, Uses: t.Count}
		if detailed {
			resp.Category = t.Category
			resp.Description = t.Description
		}
		out = append(out, resp)
	}
	return out
}

func toProcessingTime(pt analytics.ProcessingTime) ProcessingTimeResponse {
	return ProcessingTimeResponse(pt)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, r, "analytics summary failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SummaryResponse{
		TotalVerifications: s.Total,
		Approved:           s.Approved,
		Rejected:           s.Rejected,
		Incomplete:         s.Incomplete,
		ApprovalRate:       s.ApprovalRate,
		RejectionRate:      s.RejectionRate,
		IncompleteRate:     s.IncompleteRate,
		ProcessingTime:     toProcessingTime(s.ProcessingTime),
		CacheHits:          s.CacheHits,
		MostCitedPolicies:  toTopPolicies(s.TopPolicies, false),
		Timestamp:          s.GeneratedAt,
	})
}

// HandlePolicyUsage returns a policy id to citation count map.
func (h *Handler) HandlePolicyUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.service.PolicyUsage(r.Context())
	if err != nil {
		h.fail(w, r, "policy usage failed", err)
		return
	}
	out := make(map[string]int, len(usage))
	for _, u := range usage {
		out[u.PolicyID] = u.Count
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Distribution(r.Context())
	if err != nil {
		h.fail(w, r, "decision distribution failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DistributionResponse(d))
}

func (h *Handler) HandleProcessingTime(w http.ResponseWriter, r *http.Request) {
	pt, err := h.service.ProcessingTime(r.Context())
	if err != nil {
		h.fail(w, r, "processing time failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProcessingTime(pt))
}

// HandleTopPolicies handles GET /analytics/top-policies?limit=N (default 5).
func (h *Handler) HandleTopPolicies(w http.ResponseWriter, r *http.Request) {
	limit := analytics.DefaultTopPolicies
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be an integer"))
			return
		}
		limit = n
	}

	top, err := h.service.TopPolicies(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "top policies failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTopPolicies(top, true))
}
