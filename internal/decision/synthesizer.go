package decision

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"procverify/internal/policy"
)

const DefaultCitationLimit = 5

// Synthesizer applies the tier table to a set of findings.
type Synthesizer struct {
	limit int
}

type Option func(*Synthesizer)

// WithCitationLimit caps the number of citations. Values below 1 become 1.
func WithCitationLimit(n int) Option {
	return func(s *Synthesizer) {
		if n < 1 {
			n = 1
		}
		s.limit = n
	}
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{limit: DefaultCitationLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CitationLimit returns the configured cap.
func (s *Synthesizer) CitationLimit() int {
	return s.limit
}

type driver struct {
	policy   policy.Policy
	finding  policy.Finding
	position int
}

// tier is one row of the priority table. The first tier with at least one
// driving finding decides; the last tier always applies.
type tier struct {
	outcome    Outcome
	drives     func(policy.Policy, policy.Finding) bool
	fallback   bool
	confidence func(drivers []driver, findings []policy.Finding) float64
}

var tiers = []tier{
	{
		outcome: OutcomeRejected,
		drives: func(p policy.Policy, f policy.Finding) bool {
			return p.Kind == policy.KindRejecting && f.Outcome == policy.OutcomeViolated
		},
		confidence: func(drivers []driver, _ []policy.Finding) float64 {
			return math.Max(0.5, 1.0-0.1*float64(len(drivers)-1))
		},
	},
	{
		outcome: OutcomeIncomplete,
		drives: func(p policy.Policy, f policy.Finding) bool {
			if p.Kind == policy.KindCompleteness && f.Outcome == policy.OutcomeViolated {
				return true
			}
			return p.Kind.Mandatory() && f.Outcome == policy.OutcomeIndeterminate
		},
		confidence: func([]driver, []policy.Finding) float64 {
			return 0.5
		},
	},
	{
		outcome:  OutcomeApproved,
		fallback: true,
		drives: func(p policy.Policy, f policy.Finding) bool {
			return p.Kind.Mandatory() && f.Outcome == policy.OutcomeSatisfied
		},
		confidence: func(_ []driver, findings []policy.Finding) float64 {
			na := 0
			for _, f := range findings {
				if f.Outcome == policy.OutcomeNotApplicable {
					na++
				}
			}
			return math.Max(0.8, 1.0-0.05*float64(na))
		},
	},
}

// Synthesize builds the decision for one process. Findings for ids missing
// from the catalog are kept on the decision but ignored by the tier table.
func (s *Synthesizer) Synthesize(processNumber string, findings []policy.Finding, catalog *policy.Catalog) *Decision {
	for _, t := range tiers {
		drivers := collect(t, findings, catalog)
		if len(drivers) == 0 && !t.fallback {
			continue
		}
		sortDrivers(drivers)

		citations := make([]Citation, 0, min(len(drivers), s.limit))
		for _, d := range drivers[:min(len(drivers), s.limit)] {
			citations = append(citations, Citation{
				PolicyID:    d.policy.ID,
				Title:       d.policy.Title,
				Explanation: d.finding.Explanation,
			})
		}

		kept := make([]policy.Finding, len(findings))
		copy(kept, findings)

		return &Decision{
			ProcessNumber:  processNumber,
			Outcome:        t.outcome,
			Rationale:      rationale(processNumber, t.outcome, citations, len(drivers)),
			Citations:      citations,
			Confidence:     round(t.confidence(drivers, findings)),
			Findings:       kept,
			CatalogVersion: catalog.Version(),
		}
	}
	// The last tier is a fallback, so this is unreachable.
	panic("decision: no tier applied")
}

func collect(t tier, findings []policy.Finding, catalog *policy.Catalog) []driver {
	var drivers []driver
	for _, f := range findings {
		p, ok := catalog.Get(f.PolicyID)
		if !ok {
			continue
		}
		if t.drives(p, f) {
			drivers = append(drivers, driver{policy: p, finding: f, position: catalog.Position(p.ID)})
		}
	}
	return drivers
}

func sortDrivers(drivers []driver) {
	sort.SliceStable(drivers, func(i, j int) bool {
		ri, rj := drivers[i].policy.Severity.Rank(), drivers[j].policy.Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return drivers[i].position < drivers[j].position
	})
}

func rationale(number string, outcome Outcome, citations []Citation, total int) string {
	if len(citations) == 0 {
		return fmt.Sprintf("Process %s %s: no mandatory policy applied", number, outcome)
	}
	parts := make([]string, 0, len(citations))
	for _, c := range citations {
		parts = append(parts, fmt.Sprintf("%s (%s): %s", c.PolicyID, c.Title, c.Explanation))
	}
	out := fmt.Sprintf("Process %s %s: %s", number, outcome, strings.Join(parts, "; "))
	if extra := total - len(citations); extra > 0 {
		out += fmt.Sprintf(" (+%d more)", extra)
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
