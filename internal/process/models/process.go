// Package models holds the judicial process record evaluated by the policy catalog.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	dErrors "procverify/pkg/domain-errors"
)

// Sphere is the judicial sphere a process belongs to.
type Sphere string

const (
	SphereFederal Sphere = "Federal"
	SphereState   Sphere = "State"
	SphereLabor   Sphere = "Labor"
)

// ParseSphere accepts English names and the Portuguese court labels
// ("Estadual", "Trabalhista"), case-insensitively.
func ParseSphere(s string) (Sphere, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "federal":
		return SphereFederal, nil
	case "state", "estadual":
		return SphereState, nil
	case "labor", "labour", "trabalhista":
		return SphereLabor, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown sphere %q", s))
	}
}

func (s Sphere) IsValid() bool {
	return s == SphereFederal || s == SphereState || s == SphereLabor
}

func (s Sphere) String() string {
	return string(s)
}

// Document is a filing attached to the process.
type Document struct {
	ID         string
	AttachedAt time.Time
	Name       string
	Text       string
}

// Movement is a docket entry.
type Movement struct {
	At          time.Time
	Description string
}

// Fees groups the optional fee amounts. Nil means "not informed".
type Fees struct {
	Contractual *float64
	Expert      *float64
	Success     *float64
}

// Informed reports whether any fee amount was supplied.
func (f *Fees) Informed() bool {
	if f == nil {
		return false
	}
	return f.Contractual != nil || f.Expert != nil || f.Success != nil
}

// Process is a judicial process record. It is read-only for the duration of
// a verification pass.
type Process struct {
	Number            string
	CaseClass         string
	AdjudicatingBody  string
	LastDistribution  time.Time
	Subject           string
	Secrecy           bool
	FreeLegalAid      bool
	TribunalCode      string
	Sphere            Sphere
	CondemnationValue *float64
	CaseValue         *float64
	Documents         []Document
	Movements         []Movement
	Fees              *Fees
}

// Validate checks structural well-formedness only. Business rules live in the
// policy catalog.
func (p *Process) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeValidation, "process is required")
	}
	if strings.TrimSpace(p.Number) == "" {
		return dErrors.New(dErrors.CodeValidation, "process number is required")
	}
	if !p.Sphere.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown sphere %q", p.Sphere))
	}
	amounts := []namedAmount{
		{"condemnation value", p.CondemnationValue},
		{"case value", p.CaseValue},
	}
	if p.Fees != nil {
		amounts = append(amounts,
			namedAmount{"contractual fee", p.Fees.Contractual},
			namedAmount{"expert fee", p.Fees.Expert},
			namedAmount{"success fee", p.Fees.Success},
		)
	}
	for _, a := range amounts {
		if err := checkAmount(a.name, a.v); err != nil {
			return err
		}
	}
	for i, d := range p.Documents {
		if strings.TrimSpace(d.Name) == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("documents[%d].name is required", i))
		}
	}
	for i, m := range p.Movements {
		if m.At.IsZero() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("movements[%d].timestamp is required", i))
		}
	}
	return nil
}

type namedAmount struct {
	name string
	v    *float64
}

func checkAmount(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return dErrors.New(dErrors.CodeValidation, name+" must be a finite number")
	}
	if *v < 0 {
		return dErrors.New(dErrors.CodeValidation, name+" must not be negative")
	}
	return nil
}

// Float is a helper for building optional amounts.
func Float(v float64) *float64 {
	return &v
}
