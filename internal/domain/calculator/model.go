// Package calculator wires the safety validator, unit converter, result
// store, audit ledger, and history buffer into the compute pipeline for
// one calculator page, and drives the Hidden/Visible results-panel state
// machine.
package calculator

import (
	"github.com/dosecalc/dosecalc/internal/domain/safety"
	"github.com/dosecalc/dosecalc/internal/domain/units"
)

// Field types.
const (
	FieldNumber = "number"
	FieldSelect = "select"
	FieldText   = "text"
)

// Field describes one form input. Number fields carry safety limits
// expressed in the canonical (metric) unit; fields with a unit Kind also
// support the per-field metric/regional toggle.
type Field struct {
	Name    string         `json:"name"`
	Label   string         `json:"label"`
	Type    string         `json:"type"`
	Kind    units.Kind     `json:"kind,omitempty"`
	Options []string       `json:"options,omitempty"`
	Limits  *safety.Limits `json:"limits,omitempty"`
}

// LayoutFlags select which optional post-computation sections the page
// renders after the Visible transition.
type LayoutFlags struct {
	ShowChecklists   bool `json:"show_checklists"`
	ShowAuditBlock   bool `json:"show_audit_block"`
	ShowRelatedTools bool `json:"show_related_tools"`
}

// TabContent is the static explanatory content of a calculator page.
type TabContent struct {
	Description string `json:"description"`
	Formula     string `json:"formula"`
	References  string `json:"references"`
}

// RelatedTool points at another calculator.
type RelatedTool struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// ComputeOutput is what a calculator formula produces from validated,
// metric-normalized inputs.
type ComputeOutput struct {
	Value          float64
	MainResult     string
	Interpretation string
}

// Config is the immutable per-page configuration, created once at startup
// and never mutated.
type Config struct {
	Name           string        `json:"name"`
	Title          string        `json:"title"`
	ExportFilename string        `json:"export_filename"`
	Layout         LayoutFlags   `json:"layout"`
	Breadcrumbs    []string      `json:"breadcrumbs"`
	Tabs           TabContent    `json:"tabs"`
	RelatedTools   []RelatedTool `json:"related_tools"`
	PatientFields  []Field       `json:"patient_fields"`
	InputFields    []Field       `json:"input_fields"`

	// Compute runs the domain formula. Inputs are keyed by field name:
	// numbers in canonical units, selects as the chosen option string.
	Compute func(numbers map[string]float64, selects map[string]string) (ComputeOutput, error) `json:"-"`
}

// Find returns the named input field.
func (c *Config) Find(name string) (Field, bool) {
	for _, f := range c.InputFields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
