package policy

import (
	"fmt"
	"strings"

	"procverify/internal/process/models"
	pstrings "procverify/pkg/platform/strings"
)

// BaseVersion identifies the built-in policy set. The catalog version also
// carries a digest of the active rules, so changing a threshold or keyword
// invalidates every cached decision.
const BaseVersion = "2024.1"

const (
	CategoryEligibility   = "eligibility"
	CategoryExclusion     = "exclusion"
	CategoryFees          = "fees"
	CategoryDocumentation = "documentation"
)

// Catalog is the ordered, immutable policy list. Order is the citation
// tie-break order; it never affects which policies run.
type Catalog struct {
	version  string
	policies []Policy
	index    map[string]int
}

// NewCatalog builds a catalog from explicit policies. Ids must be unique and
// every policy needs a predicate.
func NewCatalog(version string, policies ...Policy) (*Catalog, error) {
	c := &Catalog{
		version:  version,
		policies: make([]Policy, 0, len(policies)),
		index:    make(map[string]int, len(policies)),
	}
	for _, p := range policies {
		if p.ID == "" {
			return nil, fmt.Errorf("policy without id")
		}
		if p.Evaluate == nil {
			return nil, fmt.Errorf("policy %s has no predicate", p.ID)
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("duplicate policy id %s", p.ID)
		}
		c.index[p.ID] = len(c.policies)
		c.policies = append(c.policies, p)
	}
	return c, nil
}

// DefaultCatalog builds POL-1..POL-8 from the given rules.
func DefaultCatalog(rules Rules) *Catalog {
	c, err := NewCatalog(BaseVersion+"+"+rules.Digest(), defaultPolicies(rules)...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Version() string {
	return c.version
}

func (c *Catalog) Len() int {
	return len(c.policies)
}

// Policies returns a copy of the ordered policy list.
func (c *Catalog) Policies() []Policy {
	out := make([]Policy, len(c.policies))
	copy(out, c.policies)
	return out
}

// Get looks up a policy by id.
func (c *Catalog) Get(id string) (Policy, bool) {
	i, ok := c.index[id]
	if !ok {
		return Policy{}, false
	}
	return c.policies[i], true
}

// Position returns the catalog order of a policy id, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

func defaultPolicies(r Rules) []Policy {
	return []Policy{
		{
			ID:          "POL-1",
			Title:       "Final judgment and execution phase",
			Category:    CategoryEligibility,
			Description: "Only credits from processes with a final judgment in the execution phase are acquired",
			Kind:        KindRejecting,
			Severity:    SeverityError,
			Evaluate:    finalJudgment(r.FinalJudgmentKeywords),
		},
		{
			ID:          "POL-2",
			Title:       "Condemnation value informed",
			Category:    CategoryEligibility,
			Description: "The condemnation value must be informed",
			Kind:        KindRejecting,
			Severity:    SeverityError,
			Evaluate:    condemnationValueInformed,
		},
		{
			ID:          "POL-3",
			Title:       "Minimum condemnation value",
			Category:    CategoryExclusion,
			Description: fmt.Sprintf("Condemnation values below R$ %.2f are not acquired", r.MinimumCondemnationValue),
			Kind:        KindRejecting,
			Severity:    SeverityError,
			Evaluate:    minimumValue(r.MinimumCondemnationValue),
		},
		{
			ID:          "POL-4",
			Title:       "Labor sphere exclusion",
			Category:    CategoryExclusion,
			Description: "Condemnations in the labor sphere are not acquired",
			Kind:        KindRejecting,
			Severity:    SeverityError,
			Evaluate:    laborSphere,
		},
		{
			ID:          "POL-5",
			Title:       "Deceased party without inventory habilitation",
			Category:    CategoryExclusion,
			Description: "Death of the plaintiff without habilitation in the inventory is not acquired",
			Kind:        KindRejecting,
			Severity:    SeverityError,
			Evaluate:    deceasedWithoutInventory(r.DeathKeywords, r.InventoryKeywords),
		},
		{
			ID:          "POL-6",
			Title:       "Delegation without reserve of powers",
			Category:    CategoryExclusion,
			Description: "Delegation of powers without reserve is not acquired",
			Kind:        KindRejecting,
			Severity:    SeverityError,
			Evaluate:    delegationWithoutReserve(r.DelegationKeywords, r.NoReserveKeywords),
		},
		{
			ID:          "POL-7",
			Title:       "Fees informed when applicable",
			Category:    CategoryFees,
			Description: "Contractual, expert and success fees must be informed when the process references them",
			Kind:        KindCompleteness,
			Severity:    SeverityWarning,
			Evaluate:    feesInformed(r.FeeKeywords),
		},
		{
			ID:          "POL-8",
			Title:       "Essential documents present",
			Category:    CategoryDocumentation,
			Description: "Missing essential documents make the process incomplete",
			Kind:        KindCompleteness,
			Severity:    SeverityError,
			Evaluate:    essentialDocuments(r.RequiredDocuments),
		},
	}
}

// texts yields every free-text field a keyword policy may inspect.
func texts(p *models.Process) []string {
	out := make([]string, 0, 2*len(p.Documents)+len(p.Movements))
	for _, m := range p.Movements {
		out = append(out, m.Description)
	}
	for _, d := range p.Documents {
		out = append(out, d.Name, d.Text)
	}
	return out
}

func findKeyword(p *models.Process, keywords []string) (string, bool) {
	for _, t := range texts(p) {
		if kw, ok := pstrings.ContainsAny(t, keywords); ok {
			return kw, true
		}
	}
	return "", false
}

func finalJudgment(keywords []string) Predicate {
	return func(p *models.Process) Finding {
		if kw, ok := findKeyword(p, keywords); ok {
			return Finding{
				Outcome:     OutcomeSatisfied,
				Explanation: "process shows final judgment or execution phase",
				Evidence:    kw,
			}
		}
		return Finding{
			Outcome:     OutcomeViolated,
			Explanation: "no final judgment or execution phase signal in movements or documents",
		}
	}
}

func condemnationValueInformed(p *models.Process) Finding {
	if p.CondemnationValue == nil {
		return Finding{Outcome: OutcomeViolated, Explanation: "condemnation value not informed"}
	}
	return Finding{
		Outcome:     OutcomeSatisfied,
		Explanation: "condemnation value informed",
		Evidence:    formatAmount(*p.CondemnationValue),
	}
}

func minimumValue(minimum float64) Predicate {
	return func(p *models.Process) Finding {
		if p.CondemnationValue == nil {
			return Finding{Outcome: OutcomeNotApplicable, Explanation: "condemnation value not informed"}
		}
		v := *p.CondemnationValue
		if v < minimum {
			return Finding{
				Outcome:     OutcomeViolated,
				Explanation: fmt.Sprintf("condemnation value %s is below the minimum of %s", formatAmount(v), formatAmount(minimum)),
				Evidence:    formatAmount(v),
			}
		}
		return Finding{
			Outcome:     OutcomeSatisfied,
			Explanation: fmt.Sprintf("condemnation value %s meets the minimum of %s", formatAmount(v), formatAmount(minimum)),
			Evidence:    formatAmount(v),
		}
	}
}

func laborSphere(p *models.Process) Finding {
	if p.Sphere == models.SphereLabor {
		return Finding{
			Outcome:     OutcomeViolated,
			Explanation: "process is in the labor sphere",
			Evidence:    p.Sphere.String(),
		}
	}
	return Finding{
		Outcome:     OutcomeSatisfied,
		Explanation: "process is not in the labor sphere",
		Evidence:    p.Sphere.String(),
	}
}

func deceasedWithoutInventory(death, inventory []string) Predicate {
	return func(p *models.Process) Finding {
		deathKw, died := findKeyword(p, death)
		if !died {
			return Finding{Outcome: OutcomeSatisfied, Explanation: "no death of a party recorded"}
		}
		if invKw, ok := findKeyword(p, inventory); ok {
			return Finding{
				Outcome:     OutcomeSatisfied,
				Explanation: "death of a party recorded with inventory habilitation",
				Evidence:    deathKw + ", " + invKw,
			}
		}
		return Finding{
			Outcome:     OutcomeViolated,
			Explanation: "death of a party recorded without inventory habilitation",
			Evidence:    deathKw,
		}
	}
}

func delegationWithoutReserve(delegation, noReserve []string) Predicate {
	return func(p *models.Process) Finding {
		for _, t := range texts(p) {
			if _, ok := pstrings.ContainsAny(t, delegation); !ok {
				continue
			}
			if kw, ok := pstrings.ContainsAny(t, noReserve); ok {
				return Finding{
					Outcome:     OutcomeViolated,
					Explanation: "delegation of powers without reserve found",
					Evidence:    kw,
				}
			}
		}
		return Finding{Outcome: OutcomeSatisfied, Explanation: "no delegation without reserve of powers"}
	}
}

func feesInformed(keywords []string) Predicate {
	return func(p *models.Process) Finding {
		kw, referenced := findKeyword(p, keywords)
		if !referenced {
			return Finding{Outcome: OutcomeSatisfied, Explanation: "process does not reference fees"}
		}
		if !p.Fees.Informed() {
			return Finding{
				Outcome:     OutcomeIndeterminate,
				Explanation: "process references fees but no fee amounts were informed",
				Evidence:    kw,
			}
		}
		return Finding{Outcome: OutcomeSatisfied, Explanation: "fee amounts informed", Evidence: kw}
	}
}

func essentialDocuments(required []string) Predicate {
	return func(p *models.Process) Finding {
		var missing []string
		for _, label := range required {
			found := false
			for _, d := range p.Documents {
				if strings.Contains(pstrings.Fold(d.Name), pstrings.Fold(label)) {
					found = true
					break
				}
			}
			if !found {
				missing = append(missing, label)
			}
		}
		if len(missing) > 0 {
			return Finding{
				Outcome:     OutcomeViolated,
				Explanation: "missing essential documents: " + strings.Join(missing, ", "),
				Evidence:    strings.Join(missing, ", "),
			}
		}
		return Finding{Outcome: OutcomeSatisfied, Explanation: "all essential documents are present"}
	}
}

func formatAmount(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}
