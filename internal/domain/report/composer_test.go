package report

import (
	"strings"
	"testing"
	"time"

	"github.com/dosecalc/dosecalc/internal/domain/audit"
	"github.com/dosecalc/dosecalc/internal/domain/prefs"
	"github.com/dosecalc/dosecalc/internal/domain/result"
	"github.com/dosecalc/dosecalc/internal/platform/export"
)

func sampleInput() Input {
	return Input{
		Bundle: result.Bundle{
			PatientFields:  map[string]string{"patient_name": "Jane Roe"},
			InputFields:    map[string]string{"weight": "70 kg", "height": "170 cm"},
			MainResult:     "182.0 mg",
			Interpretation: "BSA 1.82 m² at 100 mg/m²",
			Timestamp:      time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC),
		},
		Prefs: prefs.Defaults(),
		Meta: Meta{
			CalculatorName:  "bsa-dose",
			CalculatorTitle: "Body Surface Area Dose Calculator",
			Filename:        "bsa-dose-report.pdf",
		},
		AuditRecord: &audit.Record{
			ID:                 "1756380600000-abc123",
			TimestampFormatted: "28 Aug 2026 10:30:00",
			CalculationType:    "bsa-dose",
		},
		Now: time.Date(2026, 8, 28, 10, 31, 0, 0, time.UTC),
	}
}

func TestComposeText_MandatorySectionsAlwaysPresent(t *testing.T) {
	in := sampleInput()
	// Toggle everything optional off.
	in.Prefs = prefs.Preferences{SchemaVersion: prefs.SchemaVersion}

	text, err := ComposeText(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, mandatory := range []string{"182.0 mg", "Legal Disclaimer", "Generated 28 Aug 2026"} {
		if !strings.Contains(text, mandatory) {
			t.Errorf("mandatory content %q missing from report", mandatory)
		}
	}
	// Optional sections stay out when toggled off.
	for _, optional := range []string{"Jane Roe", "Parameters", "Safety Goals", "Record ID"} {
		if strings.Contains(text, optional) {
			t.Errorf("optional content %q present despite toggle off", optional)
		}
	}
}

func TestComposeText_OptionalSectionsFollowToggles(t *testing.T) {
	in := sampleInput()
	in.Prefs.IncludeSafetyGoals = true
	in.Prefs.IncludeMedicationSafety = true
	in.Prefs.IncludeNotes = true
	in.Prefs.ProfessionalName = "Dr. Chen"
	in.Prefs.LicenseNumber = "RX-4471"

	text, err := ComposeText(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, want := range []string{
		"Dr. Chen", "RX-4471",
		"Patient Name: Jane Roe",
		"Weight: 70 kg",
		"[ ] Right dose",
		"[ ] Allergy status reviewed",
		"Record ID: 1756380600000-abc123",
		"Notes",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in report:\n%s", want, text)
		}
	}
}

func TestComposeText_FooterUsesASCIIPunctuation(t *testing.T) {
	text, err := ComposeText(sampleInput())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	want := "Generated 28 Aug 2026 10:31:00 - Body Surface Area Dose Calculator"
	if !strings.Contains(text, want) {
		t.Errorf("footer line %q missing from report:\n%s", want, text)
	}
}

func TestComposeText_FixedSectionOrder(t *testing.T) {
	in := sampleInput()
	in.Prefs.IncludeSafetyGoals = true
	in.Prefs.IncludeMedicationSafety = true
	in.Prefs.ProfessionalName = "Dr. Chen"

	text, _ := ComposeText(in)
	order := []string{
		"Professional", "Patient", "Parameters", "Result", "Interpretation",
		"Safety Goals", "Medication Safety", "Audit", "Legal Disclaimer",
		"Verification", "Generated ",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(text, marker)
		if idx < 0 {
			t.Fatalf("marker %q missing", marker)
		}
		if idx < last {
			t.Errorf("section %q out of order", marker)
		}
		last = idx
	}
}

func TestComposeText_EmptyBundle(t *testing.T) {
	in := sampleInput()
	in.Bundle = result.Empty()
	if _, err := ComposeText(in); err != ErrNoResult {
		t.Errorf("err = %v, want ErrNoResult", err)
	}
}

func TestComposeDocument_CommandStream(t *testing.T) {
	in := sampleInput()
	doc, err := ComposeDocument(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if doc.Filename != "bsa-dose-report.pdf" {
		t.Errorf("filename = %q", doc.Filename)
	}
	var hasQR, hasResult bool
	for _, cmd := range doc.Commands {
		if cmd.Kind == export.KindQR && cmd.Payload == "dosecalc:bsa-dose:1756380600000-abc123" {
			hasQR = true
		}
		if cmd.Kind == export.KindText && strings.Contains(cmd.Text, "182.0 mg") {
			hasResult = true
		}
	}
	if !hasQR {
		t.Error("QR command missing or wrong payload")
	}
	if !hasResult {
		t.Error("main result missing from command stream")
	}
}

func TestComposeDocument_PageBreakBeforeDisclaimerOnOverflow(t *testing.T) {
	in := sampleInput()
	// Inflate the parameters section until the disclaimer would overflow.
	in.Bundle.InputFields = map[string]string{}
	for i := 0; i < 60; i++ {
		in.Bundle.InputFields[strings.Repeat("x", 2)+string(rune('a'+i%26))+string(rune('a'+i/26))] = "value"
	}
	in.Bundle.Interpretation = strings.Repeat("A long interpretation paragraph. ", 40)

	doc, err := ComposeDocument(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	breakIdx, disclaimerIdx := -1, -1
	for i, cmd := range doc.Commands {
		if cmd.Kind == export.KindPageBreak {
			breakIdx = i
		}
		if cmd.Kind == export.KindText && strings.Contains(cmd.Text, "calculation aid only") {
			disclaimerIdx = i
		}
	}
	if breakIdx < 0 {
		t.Fatal("expected a page break for overflowing content")
	}
	if disclaimerIdx < breakIdx {
		t.Error("disclaimer rendered before its page break")
	}
}

func TestComposeDocument_NoAuditRecordSkipsBlockAndQRStillWorks(t *testing.T) {
	in := sampleInput()
	in.AuditRecord = nil

	text, err := ComposeText(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(text, "Record ID") {
		t.Error("audit block must be skipped without a record")
	}
	if !strings.Contains(text, "dosecalc:bsa-dose:") {
		t.Error("QR payload should fall back to the bundle timestamp")
	}
}
