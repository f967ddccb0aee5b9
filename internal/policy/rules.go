package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dErrors "procverify/pkg/domain-errors"
	pstrings "procverify/pkg/platform/strings"
)

// Rules carries the thresholds and keyword lists the predicates read.
// Keyword lists are folded (lowercase, no accents) after Normalize.
type Rules struct {
	MinimumCondemnationValue float64  `yaml:"minimum_condemnation_value" json:"minimum_condemnation_value"`
	FinalJudgmentKeywords    []string `yaml:"final_judgment_keywords" json:"final_judgment_keywords"`
	DeathKeywords            []string `yaml:"death_keywords" json:"death_keywords"`
	InventoryKeywords        []string `yaml:"inventory_keywords" json:"inventory_keywords"`
	DelegationKeywords       []string `yaml:"delegation_keywords" json:"delegation_keywords"`
	NoReserveKeywords        []string `yaml:"no_reserve_keywords" json:"no_reserve_keywords"`
	FeeKeywords              []string `yaml:"fee_keywords" json:"fee_keywords"`
	RequiredDocuments        []string `yaml:"required_documents" json:"required_documents"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	r := Rules{
		MinimumCondemnationValue: 1000,
		FinalJudgmentKeywords: []string{
			"trânsito em julgado",
			"transitou em julgado",
			"transitado em julgado",
			"cumprimento definitivo",
			"cumprimento de sentença",
			"execução",
		},
		DeathKeywords:      []string{"óbito", "falecimento", "faleceu", "morte"},
		InventoryKeywords:  []string{"inventário", "habilitação", "espólio"},
		DelegationKeywords: []string{"substabelecimento", "substabeleço"},
		NoReserveKeywords:  []string{"sem reserva"},
		FeeKeywords:        []string{"honorários"},
		RequiredDocuments: []string{
			"Certidão de Trânsito em Julgado",
			"Planilha de Cálculos",
			"Requisição",
		},
	}
	r.Normalize()
	return r
}

// Normalize folds and deduplicates keyword lists. Required document labels
// keep their display form; matching folds them at evaluation time.
func (r *Rules) Normalize() {
	r.FinalJudgmentKeywords = pstrings.NormalizeKeywords(r.FinalJudgmentKeywords)
	r.DeathKeywords = pstrings.NormalizeKeywords(r.DeathKeywords)
	r.InventoryKeywords = pstrings.NormalizeKeywords(r.InventoryKeywords)
	r.DelegationKeywords = pstrings.NormalizeKeywords(r.DelegationKeywords)
	r.NoReserveKeywords = pstrings.NormalizeKeywords(r.NoReserveKeywords)
	r.FeeKeywords = pstrings.NormalizeKeywords(r.FeeKeywords)
	r.RequiredDocuments = pstrings.DedupeAndTrim(r.RequiredDocuments)
}

// Validate rejects rule sets that would make a policy meaningless.
func (r Rules) Validate() error {
	if r.MinimumCondemnationValue < 0 {
		return dErrors.New(dErrors.CodeValidation, "minimum_condemnation_value must not be negative")
	}
	lists := []struct {
		name   string
		values []string
	}{
		{"final_judgment_keywords", r.FinalJudgmentKeywords},
		{"death_keywords", r.DeathKeywords},
		{"inventory_keywords", r.InventoryKeywords},
		{"delegation_keywords", r.DelegationKeywords},
		{"no_reserve_keywords", r.NoReserveKeywords},
		{"fee_keywords", r.FeeKeywords},
		{"required_documents", r.RequiredDocuments},
	}
	for _, l := range lists {
		if len(l.values) == 0 {
			return dErrors.New(dErrors.CodeValidation, l.name+" must not be empty")
		}
	}
	return nil
}

// Digest is a short sha256 prefix over the canonical JSON form of the rules.
func (r Rules) Digest() string {
	data, err := json.Marshal(r)
	if err != nil {
		// Rules contains only strings and floats.
		panic(fmt.Sprintf("marshal rules: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

// ParseRules overlays YAML data on the default rules. Omitted keys keep
// their default value.
func ParseRules(data []byte) (Rules, error) {
	r := DefaultRules()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid policy rules")
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) (Rules, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read policy rules %s: %w", path, err)
	}
	return ParseRules(data)
}
