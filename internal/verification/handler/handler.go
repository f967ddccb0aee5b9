package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"procverify/internal/decision"
	"procverify/internal/history"
	"procverify/internal/policy"
	"procverify/internal/process/models"
	"procverify/internal/verification/service"
	dErrors "procverify/pkg/domain-errors"
	"procverify/pkg/platform/httputil"
	"procverify/pkg/requestcontext"
)

// Service is the verification surface the handler depends on.
type Service interface {
	Verify(ctx context.Context, p *models.Process) (*decision.Decision, error)
	VerifyItems(ctx context.Context, items []service.BatchItem) ([]service.BatchResult, error)
	History(ctx context.Context, processNumber string) ([]history.Record, error)
	ListHistory(ctx context.Context, outcome decision.Outcome, limit, offset int) (service.HistoryPage, error)
	Catalog() *policy.Catalog
	CacheStats(ctx context.Context) (service.CacheReport, error)
	ClearCache(ctx context.Context) error
	ResetCacheStats(ctx context.Context) error
}

// Handler wires verification endpoints to the verification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the public verification endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
	r.Post("/verify/batch", h.HandleVerifyBatch)
	r.Get("/process", h.HandleListProcesses)
	r.Get("/process/", h.HandleListProcesses)
	r.Get("/process/{number}", h.HandleProcessHistory)
	r.Get("/policies", h.HandleListPolicies)
	r.Get("/monitoring/cache-stats", h.HandleCacheStats)
}

// RegisterAdmin mounts cache administration; callers wrap r with the admin
// token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/monitoring/cache/clear", h.HandleClearCache)
	r.Post("/monitoring/cache/reset-stats", h.HandleResetCacheStats)
}

// HandleVerify handles POST /verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ProcessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Verify(ctx, req.ToModel())
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestID,
			"process_number", req.Number,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandleVerifyBatch handles POST /verify/batch. Each process is decoded on
// its own; a malformed entry becomes an item-level error.
func (h *Handler) HandleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	batchID := uuid.NewString()
	results, err := h.service.VerifyItems(ctx, req.Items())
	if err != nil {
		h.logger.WarnContext(ctx, "batch rejected",
			"request_id", requestID,
			"batch_id", batchID,
			"size", len(req.Processes),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := FromBatch(batchID, results, time.Since(start))
	h.logger.InfoContext(ctx, "batch completed",
		"request_id", requestID,
		"batch_id", batchID,
		"total", resp.Total,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"duration_ms", resp.TotalTimeMs,
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleProcessHistory handles GET /process/{number}.
func (h *Handler) HandleProcessHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := strings.TrimSpace(chi.URLParam(r, "number"))
	if number == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "process number is required"))
		return
	}

	records, err := h.service.History(ctx, number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(number, records))
}

// HandleListProcesses handles GET /process?decision=&limit=&offset=.
func (h *Handler) HandleListProcesses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit", service.DefaultListLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	outcome := decision.Outcome(strings.ToLower(strings.TrimSpace(q.Get("decision"))))

	page, err := h.service.ListHistory(ctx, outcome, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "process history listed",
		"request_id", requestcontext.RequestID(ctx),
		"total", page.Total,
		"returned", len(page.Records),
		"decision_filter", string(outcome),
	)
	httputil.WriteJSON(w, http.StatusOK, FromHistoryPage(page, outcome, limit, offset))
}

func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be an integer")
	}
	return n, nil
}

// HandleListPolicies handles GET /policies.
func (h *Handler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromCatalog(h.service.Catalog()))
}

func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.CacheStats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCacheReport(report))
}

func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.ClearCache(ctx); err != nil {
		h.logger.ErrorContext(ctx, "cache clear failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) HandleResetCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.ResetCacheStats(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
