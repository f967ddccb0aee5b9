package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"procverify/internal/process/models"
	"procverify/internal/verification/service"
	dErrors "procverify/pkg/domain-errors"
)

// timestampLayouts are tried in order. Court systems export local times
// without a zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp accepts RFC 3339 and the zone-less layouts court exports use.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

// DocumentRequest is one attached document.
type DocumentRequest struct {
	ID         string    `json:"id"`
	AttachedAt Timestamp `json:"dataHoraJuntada"`
	Name       string    `json:"nome"`
	Text       string    `json:"texto"`
}

// MovementRequest is one docket entry.
type MovementRequest struct {
	At          Timestamp `json:"dataHora"`
	Description string    `json:"descricao"`
}

// FeesRequest holds the optional fee amounts.
type FeesRequest struct {
	Contractual *float64 `json:"contratuais"`
	Expert      *float64 `json:"periciais"`
	Success     *float64 `json:"sucumbenciais"`
}

// ProcessRequest is the wire form of a judicial process as exported by
// court systems.
type ProcessRequest struct {
	Number            string            `json:"numeroProcesso"`
	CaseClass         string            `json:"classe"`
	AdjudicatingBody  string            `json:"orgaoJulgador"`
	LastDistribution  Timestamp         `json:"ultimaDistribuicao"`
	Subject           string            `json:"assunto"`
	Secrecy           bool              `json:"segredoJustica"`
	FreeLegalAid      bool              `json:"justicaGratuita"`
	TribunalCode      string            `json:"siglaTribunal"`
	Sphere            string            `json:"esfera"`
	CaseValue         *float64          `json:"valorCausa"`
	CondemnationValue *float64          `json:"valorCondenacao"`
	Documents         []DocumentRequest `json:"documentos"`
	Movements         []MovementRequest `json:"movimentos"`
	Fees              *FeesRequest      `json:"honorarios"`

	parsedSphere models.Sphere
}

// Validate implements httputil.Validatable. Structural checks beyond the
// required fields run in models.Process.Validate.
func (r *ProcessRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Number = strings.TrimSpace(r.Number)
	if r.Number == "" {
		return dErrors.New(dErrors.CodeValidation, "numeroProcesso is required")
	}
	sphere, err := models.ParseSphere(r.Sphere)
	if err != nil {
		return err
	}
	r.parsedSphere = sphere
	return nil
}

// ToModel converts a validated request.
func (r *ProcessRequest) ToModel() *models.Process {
	p := &models.Process{
		Number:            r.Number,
		CaseClass:         r.CaseClass,
		AdjudicatingBody:  r.AdjudicatingBody,
		LastDistribution:  r.LastDistribution.Time,
		Subject:           r.Subject,
		Secrecy:           r.Secrecy,
		FreeLegalAid:      r.FreeLegalAid,
		TribunalCode:      r.TribunalCode,
		Sphere:            r.parsedSphere,
		CaseValue:         r.CaseValue,
		CondemnationValue: r.CondemnationValue,
	}
	if len(r.Documents) > 0 {
		p.Documents = make([]models.Document, len(r.Documents))
		for i, d := range r.Documents {
			p.Documents[i] = models.Document{ID: d.ID, AttachedAt: d.AttachedAt.Time, Name: d.Name, Text: d.Text}
		}
	}
	if len(r.Movements) > 0 {
		p.Movements = make([]models.Movement, len(r.Movements))
		for i, m := range r.Movements {
			p.Movements[i] = models.Movement{At: m.At.Time, Description: m.Description}
		}
	}
	if r.Fees != nil {
		p.Fees = &models.Fees{Contractual: r.Fees.Contractual, Expert: r.Fees.Expert, Success: r.Fees.Success}
	}
	return p
}

// BatchRequest keeps each process raw so one malformed entry does not fail
// the whole request.
type BatchRequest struct {
	Processes []json.RawMessage `json:"processes"`
}

func (r *BatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Processes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "processes must contain at least one process")
	}
	return nil
}

// Items decodes every entry independently.
func (r *BatchRequest) Items() []service.BatchItem {
	items := make([]service.BatchItem, len(r.Processes))
	for i, raw := range r.Processes {
		var req ProcessRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			items[i] = service.BatchItem{Err: dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid process")}
			continue
		}
		if err := req.Validate(); err != nil {
			items[i] = service.BatchItem{Process: &models.Process{Number: req.Number}, Err: err}
			continue
		}
		items[i] = service.BatchItem{Process: req.ToModel()}
	}
	return items
}
