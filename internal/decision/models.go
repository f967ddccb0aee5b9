// Package decision turns policy findings into an explainable decision.
package decision

import (
	"time"

	"procverify/internal/policy"
)

// Outcome is the wire-stable decision vocabulary.
type Outcome string

const (
	OutcomeApproved   Outcome = "approved"
	OutcomeRejected   Outcome = "rejected"
	OutcomeIncomplete Outcome = "incomplete"
)

func (o Outcome) IsValid() bool {
	return o == OutcomeApproved || o == OutcomeRejected || o == OutcomeIncomplete
}

func (o Outcome) String() string {
	return string(o)
}

// Citation references a policy that drove the decision.
type Citation struct {
	PolicyID    string `json:"policy_id"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// Decision is the result of one verification. It is never mutated after
// synthesis; callers that need a variant work on a Clone.
type Decision struct {
	ProcessNumber  string           `json:"process_number"`
	Outcome        Outcome          `json:"outcome"`
	Rationale      string           `json:"rationale"`
	Citations      []Citation       `json:"citations"`
	Confidence     float64          `json:"confidence"`
	Findings       []policy.Finding `json:"findings"`
	CatalogVersion string           `json:"catalog_version"`
	Fingerprint    string           `json:"fingerprint"`
	Duration       time.Duration    `json:"duration"`
	DecidedAt      time.Time        `json:"decided_at"`
}

// Clone returns a deep copy.
func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	c := *d
	if d.Citations != nil {
		c.Citations = make([]Citation, len(d.Citations))
		copy(c.Citations, d.Citations)
	}
	if d.Findings != nil {
		c.Findings = make([]policy.Finding, len(d.Findings))
		copy(c.Findings, d.Findings)
	}
	return &c
}

// PolicyIDs lists the cited policy ids in citation order.
func (d *Decision) PolicyIDs() []string {
	ids := make([]string, 0, len(d.Citations))
	for _, c := range d.Citations {
		ids = append(ids, c.PolicyID)
	}
	return ids
}
