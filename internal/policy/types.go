// Package policy holds the eligibility policy catalog and the rule evaluator
// that applies it to a judicial process.
package policy

import "procverify/internal/process/models"

// Kind classifies how a violated policy affects the decision.
type Kind string

const (
	// KindRejecting policies reject the process when violated.
	KindRejecting Kind = "rejecting"
	// KindCompleteness policies mark the process incomplete when violated.
	KindCompleteness Kind = "completeness"
	// KindInformational policies never drive the outcome.
	KindInformational Kind = "informational"
)

// Mandatory reports whether findings of this kind can drive the decision.
func (k Kind) Mandatory() bool {
	return k == KindRejecting || k == KindCompleteness
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank orders severities for citation sorting; lower ranks first.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Outcome is the result of applying one policy to one process.
type Outcome string

const (
	OutcomeSatisfied     Outcome = "satisfied"
	OutcomeViolated      Outcome = "violated"
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Finding records the outcome of one policy for one process.
type Finding struct {
	PolicyID    string  `json:"policy_id"`
	Outcome     Outcome `json:"outcome"`
	Explanation string  `json:"explanation"`
	Evidence    string  `json:"evidence,omitempty"`
}

// Predicate applies a policy to a process. Predicates are pure and must
// tolerate nil optional fields.
type Predicate func(p *models.Process) Finding

// Policy is one catalog entry.
type Policy struct {
	ID          string
	Title       string
	Category    string
	Description string
	Kind        Kind
	Severity    Severity
	Evaluate    Predicate
}
