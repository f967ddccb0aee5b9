package policy

import (
	"fmt"

	"procverify/internal/process/models"
)

// Evaluate applies every catalog policy to p and returns one finding per
// policy in catalog order. A panicking predicate yields an indeterminate
// finding for that policy only.
func Evaluate(p *models.Process, c *Catalog) []Finding {
	findings := make([]Finding, 0, c.Len())
	for _, pol := range c.policies {
		findings = append(findings, evaluateOne(p, pol))
	}
	return findings
}

func evaluateOne(p *models.Process, pol Policy) (f Finding) {
	if p == nil {
		return Finding{
			PolicyID:    pol.ID,
			Outcome:     OutcomeIndeterminate,
			Explanation: "rule evaluation failed: no process",
		}
	}

	defer func() {
		if r := recover(); r != nil {
			f = Finding{
				PolicyID:    pol.ID,
				Outcome:     OutcomeIndeterminate,
				Explanation: fmt.Sprintf("rule evaluation failed: %v", r),
			}
		}
	}()

	f = pol.Evaluate(p)
	f.PolicyID = pol.ID
	if f.Outcome == "" {
		f.Outcome = OutcomeIndeterminate
		f.Explanation = "rule evaluation failed: empty outcome"
	}
	return f
}
