package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procverify/internal/process/models"
)

func TestEvaluate_Totality(t *testing.T) {
	c := DefaultCatalog(DefaultRules())

	findings := Evaluate(eligibleProcess(), c)

	require.Len(t, findings, c.Len())
	for i, p := range c.Policies() {
		assert.Equal(t, p.ID, findings[i].PolicyID)
		assert.Equal(t, OutcomeSatisfied, findings[i].Outcome, p.ID)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	c := DefaultCatalog(DefaultRules())
	p := eligibleProcess()
	p.Sphere = models.SphereLabor

	assert.Equal(t, Evaluate(p, c), Evaluate(p, c))
}

func TestEvaluate_RecoversPanickingPredicate(t *testing.T) {
	c, err := NewCatalog("test",
		Policy{ID: "A", Kind: KindRejecting, Evaluate: func(*models.Process) Finding {
			return Finding{Outcome: OutcomeSatisfied, Explanation: "ok"}
		}},
		Policy{ID: "B", Kind: KindRejecting, Evaluate: func(p *models.Process) Finding {
			_ = *p.CondemnationValue
			return Finding{Outcome: OutcomeSatisfied}
		}},
		Policy{ID: "C", Kind: KindCompleteness, Evaluate: func(*models.Process) Finding {
			return Finding{Outcome: OutcomeViolated, Explanation: "missing"}
		}},
	)
	require.NoError(t, err)

	findings := Evaluate(&models.Process{Number: "1"}, c)

	require.Len(t, findings, 3)
	assert.Equal(t, OutcomeSatisfied, findings[0].Outcome)
	assert.Equal(t, "B", findings[1].PolicyID)
	assert.Equal(t, OutcomeIndeterminate, findings[1].Outcome)
	assert.Contains(t, findings[1].Explanation, "rule evaluation failed")
	assert.Equal(t, OutcomeViolated, findings[2].Outcome)
}

func TestEvaluate_NormalizesPolicyID(t *testing.T) {
	c, err := NewCatalog("test",
		Policy{ID: "A", Evaluate: func(*models.Process) Finding {
			return Finding{PolicyID: "wrong", Outcome: OutcomeSatisfied}
		}},
		Policy{ID: "B", Evaluate: func(*models.Process) Finding {
			return Finding{}
		}},
	)
	require.NoError(t, err)

	findings := Evaluate(&models.Process{}, c)

	assert.Equal(t, "A", findings[0].PolicyID)
	assert.Equal(t, "B", findings[1].PolicyID)
	assert.Equal(t, OutcomeIndeterminate, findings[1].Outcome)
}

func TestEvaluate_NilProcess(t *testing.T) {
	c := DefaultCatalog(DefaultRules())

	findings := Evaluate(nil, c)

	require.Len(t, findings, c.Len())
	for _, f := range findings {
		assert.Equal(t, OutcomeIndeterminate, f.Outcome)
	}
}
