package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"procverify/internal/decision"
	"procverify/internal/process/models"
	dErrors "procverify/pkg/domain-errors"
	"procverify/pkg/requestcontext"
)

// BatchItem is one entry of a batch request. Err carries a decode failure
// from the transport; such items are reported without being verified.
type BatchItem struct {
	Process *models.Process
	Err     error
}

// BatchResult is the outcome of one batch item. Exactly one of Decision and
// Err is set.
type BatchResult struct {
	Index         int
	ProcessNumber string
	Decision      *decision.Decision
	Err           error
}

// BatchSummary aggregates a batch.
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	ByOutcome map[decision.Outcome]int
	Duration  time.Duration
}

// Items wraps already-decoded processes as batch items.
func Items(ps ...*models.Process) []BatchItem {
	items := make([]BatchItem, len(ps))
	for i, p := range ps {
		items[i] = BatchItem{Process: p}
	}
	return items
}

// VerifyBatch verifies every process independently.
func (s *Service) VerifyBatch(ctx context.Context, ps []*models.Process) ([]BatchResult, error) {
	return s.VerifyItems(ctx, Items(ps...))
}

// VerifyItems runs up to the configured concurrency of items at a time.
// Results echo input order. A failing item never aborts its siblings, so
// the only error returned is for a batch of invalid size.
func (s *Service) VerifyItems(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "verification.VerifyBatch")
	defer span.End()

	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "batch must contain at least one process")
	}
	if len(items) > s.maxBatchSize {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("batch exceeds maximum of %d processes", s.maxBatchSize))
	}
	span.SetAttributes(attribute.Int("batch.size", len(items)))
	s.metrics.ObserveBatchSize(len(items))

	results := make([]BatchResult, len(items))
	g := new(errgroup.Group)
	g.SetLimit(s.batchConcurrency)

	for i, item := range items {
		g.Go(func() error {
			results[i] = s.verifyItem(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "batch verified",
		"request_id", requestcontext.RequestID(ctx),
		"size", len(items),
		"failed", countFailed(results),
	)
	return results, nil
}

func (s *Service) verifyItem(ctx context.Context, index int, item BatchItem) (res BatchResult) {
	res.Index = index
	if item.Process != nil {
		res.ProcessNumber = item.Process.Number
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "batch item panicked",
				"request_id", requestcontext.RequestID(ctx),
				"index", index,
				"panic", r,
			)
			res.Decision = nil
			res.Err = dErrors.Wrap(fmt.Errorf("panic: %v", r), dErrors.CodeBatchItem,
				fmt.Sprintf("item %d: verification failed", index))
		}
	}()

	if item.Err != nil {
		res.Err = dErrors.Wrap(item.Err, dErrors.CodeBatchItem, fmt.Sprintf("item %d: malformed process", index))
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = dErrors.Wrap(err, dErrors.CodeBatchItem, fmt.Sprintf("item %d: not processed", index))
		return res
	}

	d, err := s.Verify(ctx, item.Process)
	if err != nil {
		res.Err = dErrors.Wrap(err, dErrors.CodeBatchItem, fmt.Sprintf("item %d", index))
		return res
	}
	res.Decision = d
	return res
}

// Summarize counts batch results.
func Summarize(results []BatchResult) BatchSummary {
	summary := BatchSummary{
		Total:     len(results),
		ByOutcome: make(map[decision.Outcome]int),
	}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		summary.ByOutcome[r.Decision.Outcome]++
	}
	return summary
}

func countFailed(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
