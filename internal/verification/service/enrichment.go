package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"procverify/internal/decision"
	"procverify/pkg/requestcontext"
)

const analystNotePrefix = "Analyst note: "

type enrichment struct {
	note string
	err  error
}

// enrich returns d with an analyst note appended to its rationale, or d
// itself when the enricher is absent, fails, times out or has nothing to say.
func (s *Service) enrich(ctx context.Context, d *decision.Decision) *decision.Decision {
	if s.enricher == nil {
		return d
	}

	ctx, cancel := context.WithTimeout(ctx, s.enrichmentTimeout)
	defer cancel()

	// Buffered so a late enricher never blocks after we have given up on it.
	done := make(chan enrichment, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- enrichment{err: fmt.Errorf("enricher panicked: %v", r)}
			}
		}()
		note, err := s.enricher.Enrich(ctx, d.Clone())
		done <- enrichment{note: note, err: err}
	}()

	var res enrichment
	select {
	case res = <-done:
	case <-ctx.Done():
		res = enrichment{err: ctx.Err()}
	}

	if res.err != nil {
		result := "error"
		if errors.Is(res.err, context.DeadlineExceeded) {
			result = "timeout"
		}
		s.metrics.IncrementEnrichment(result)
		s.logger.WarnContext(ctx, "enrichment failed, using rule-only decision",
			"request_id", requestcontext.RequestID(ctx),
			"process_number", d.ProcessNumber,
			"error", res.err,
		)
		return d
	}

	note := strings.TrimSpace(res.note)
	if note == "" {
		s.metrics.IncrementEnrichment("empty")
		return d
	}
	s.metrics.IncrementEnrichment("ok")

	enriched := d.Clone()
	enriched.Rationale = d.Rationale + "\n" + analystNotePrefix + note
	return enriched
}
