// Package fingerprint derives the cache key for a verification: a digest of
// every process field the policies read, plus the catalog version.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"procverify/internal/process/models"
	pstrings "procverify/pkg/platform/strings"
)

type document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type fees struct {
	Contractual *float64 `json:"contractual"`
	Expert      *float64 `json:"expert"`
	Success     *float64 `json:"success"`
}

// projection fixes field order; encoding/json emits struct fields in
// declaration order.
type projection struct {
	CatalogVersion    string     `json:"catalog_version"`
	Number            string     `json:"number"`
	Sphere            string     `json:"sphere"`
	CondemnationValue *float64   `json:"condemnation_value"`
	Documents         []document `json:"documents"`
	Movements         []string   `json:"movements"`
	Fees              *fees      `json:"fees"`
}

// Of returns the hex sha256 fingerprint of p under catalogVersion. Request
// ids, timestamps and fields no policy reads do not contribute. Texts are
// NFC-normalized; the number is hashed as given since decisions echo it.
func Of(p *models.Process, catalogVersion string) (string, error) {
	if p == nil {
		return "", errors.New("fingerprint: nil process")
	}

	proj := projection{
		CatalogVersion:    catalogVersion,
		Number:            p.Number,
		Sphere:            string(p.Sphere),
		CondemnationValue: p.CondemnationValue,
		Documents:         make([]document, 0, len(p.Documents)),
		Movements:         make([]string, 0, len(p.Movements)),
	}
	for _, d := range p.Documents {
		proj.Documents = append(proj.Documents, document{Name: pstrings.NFC(d.Name), Text: pstrings.NFC(d.Text)})
	}
	for _, m := range p.Movements {
		proj.Movements = append(proj.Movements, pstrings.NFC(m.Description))
	}
	if p.Fees != nil {
		proj.Fees = &fees{Contractual: p.Fees.Contractual, Expert: p.Fees.Expert, Success: p.Fees.Success}
	}

	data, err := json.Marshal(proj)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
