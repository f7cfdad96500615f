// Package report assembles a result bundle into a clipboard text summary
// or a paginated PDF command stream. Composition is a pure function of the
// bundle, the user's preferences, and static calculator metadata; it never
// re-triggers computation.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/dosecalc/dosecalc/internal/domain/audit"
	"github.com/dosecalc/dosecalc/internal/domain/prefs"
	"github.com/dosecalc/dosecalc/internal/domain/result"
)

// Meta carries the static calculator identity printed on the report.
type Meta struct {
	CalculatorName  string
	CalculatorTitle string
	Filename        string
}

// Input is the full snapshot a composition works from. AuditRecord is the
// ledger entry of the calculation being exported; when nil the audit block
// is skipped even if toggled on (the collaborator is unavailable, which
// degrades that section rather than failing the report).
type Input struct {
	Bundle      result.Bundle
	Prefs       prefs.Preferences
	Meta        Meta
	AuditRecord *audit.Record
	Now         time.Time
}

type sectionKind int

const (
	kindBody sectionKind = iota
	kindNotes
	kindQR
	kindFooter
)

// section is one report building block. Mandatory sections ignore
// preference toggles entirely.
type section struct {
	title string
	lines []string
	kind  sectionKind
	qr    string
}

const disclaimerText = "This report is a calculation aid only and does not replace clinical " +
	"judgement. Verify all doses against current prescribing information before " +
	"administration. The prescriber remains responsible for the final order."

const acknowledgementLine = "Acknowledged by: ______________________    Date: ______________"

var safetyGoalItems = []string{
	"Patient identity confirmed with two identifiers",
	"Weight and height re-checked against the chart",
	"Allergy status reviewed",
	"Renal and hepatic function considered",
}

var medicationSafetyItems = []string{
	"Right patient",
	"Right medication",
	"Right dose",
	"Right route",
	"Right time",
}

// sections builds the ordered building blocks. The order is fixed by
// contract and is not reorderable by preferences; the main result, the
// legal disclaimer, and the footer timestamp are always present.
func sections(in Input) []section {
	var out []section
	p := in.Prefs

	if p.IncludeIdentity && (p.ProfessionalName != "" || p.LicenseNumber != "") {
		lines := []string{fmt.Sprintf("Prepared by: %s", p.ProfessionalName)}
		if p.LicenseNumber != "" {
			lines = append(lines, fmt.Sprintf("License: %s", p.LicenseNumber))
		}
		out = append(out, section{title: "Professional", lines: lines})
	}

	if p.IncludePatient && len(in.Bundle.PatientFields) > 0 {
		out = append(out, section{title: "Patient", lines: fieldLines(in.Bundle.PatientFields)})
	}

	if p.IncludeParameters && len(in.Bundle.InputFields) > 0 {
		out = append(out, section{title: "Parameters", lines: fieldLines(in.Bundle.InputFields)})
	}

	// Mandatory.
	out = append(out, section{
		title: "Result",
		lines: []string{in.Bundle.MainResult},
	})

	if p.IncludeInterpretation && in.Bundle.Interpretation != "" {
		out = append(out, section{title: "Interpretation", lines: []string{in.Bundle.Interpretation}})
	}

	if p.IncludeSafetyGoals {
		out = append(out, section{title: "Safety Goals", lines: checklist(safetyGoalItems)})
	}

	if p.IncludeMedicationSafety {
		out = append(out, section{title: "Medication Safety", lines: checklist(medicationSafetyItems)})
	}

	if p.IncludeAuditBlock && in.AuditRecord != nil {
		out = append(out, section{title: "Audit", lines: []string{
			fmt.Sprintf("Record ID: %s", in.AuditRecord.ID),
			fmt.Sprintf("Recorded: %s", in.AuditRecord.TimestampFormatted),
			fmt.Sprintf("Calculation: %s", in.AuditRecord.CalculationType),
		}})
	}

	if p.IncludeNotes {
		out = append(out, section{title: "Notes", kind: kindNotes, lines: []string{"", "", ""}})
	}

	// Mandatory.
	out = append(out, section{
		title: "Legal Disclaimer",
		lines: []string{disclaimerText, "", acknowledgementLine},
	})

	if p.IncludeQR {
		out = append(out, section{title: "Verification", kind: kindQR, qr: qrPayload(in)})
	}

	// Mandatory.
	out = append(out, section{
		kind:  kindFooter,
		lines: []string{fmt.Sprintf("Generated %s - %s", in.Now.Format("02 Jan 2006 15:04:05"), in.Meta.CalculatorTitle)},
	})

	return out
}

func qrPayload(in Input) string {
	if in.AuditRecord != nil {
		return fmt.Sprintf("dosecalc:%s:%s", in.Meta.CalculatorName, in.AuditRecord.ID)
	}
	return fmt.Sprintf("dosecalc:%s:%d", in.Meta.CalculatorName, in.Bundle.Timestamp.UnixMilli())
}

func fieldLines(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", labelize(k), fields[k]))
	}
	return lines
}

func checklist(items []string) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "[ ] "+item)
	}
	return lines
}

// labelize turns a snake_case field name into a display label.
func labelize(name string) string {
	out := []rune{}
	upper := true
	for _, r := range name {
		if r == '_' {
			out = append(out, ' ')
			upper = true
			continue
		}
		if upper {
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			upper = false
		}
		out = append(out, r)
	}
	return string(out)
}
