package calculator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dosecalc/dosecalc/internal/domain/audit"
	"github.com/dosecalc/dosecalc/internal/platform/bus"
	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

func newTestService(t *testing.T, store storage.Store) (*Service, *bus.Bus) {
	t.Helper()
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	b := bus.New()
	auditSvc := audit.NewService(store, zerolog.Nop())
	return NewService(reg, store, auditSvc, b, 3, zerolog.Nop()), b
}

func bsaRequest() ComputeRequest {
	return ComputeRequest{
		Patient: map[string]string{"patient_name": "Jane Roe"},
		Inputs: map[string]string{
			"weight":      "70",
			"height":      "170",
			"dose_per_m2": "100",
		},
	}
}

func TestCompute_BSADosePipeline(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, err := svc.Session(ctx, "bsa-dose")
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	resp, err := sess.Compute(ctx, bsaRequest())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// Mosteller: sqrt(70*170/3600) = 1.818 m², at 100 mg/m².
	if resp.Bundle.MainResult != "181.8 mg" {
		t.Errorf("main result = %q, want %q", resp.Bundle.MainResult, "181.8 mg")
	}
	if !strings.Contains(resp.Bundle.Interpretation, "BSA 1.82 m²") {
		t.Errorf("interpretation = %q", resp.Bundle.Interpretation)
	}
	if resp.Bundle.InputFields["weight"] != "70 kg" {
		t.Errorf("formatted weight = %q", resp.Bundle.InputFields["weight"])
	}
	if !resp.PanelVisible || !sess.Visible() {
		t.Error("panel must become visible after a validated compute")
	}
	if resp.Record.ID == "" || resp.Record.CalculationType != "bsa-dose" {
		t.Errorf("audit record = %+v", resp.Record)
	}
	if sess.History().Len() != 1 {
		t.Errorf("history length = %d, want 1", sess.History().Len())
	}
	if resp.PersistDegraded {
		t.Error("memory store must not degrade persistence")
	}
}

func TestCompute_MissingValueBlocks(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	req := bsaRequest()
	delete(req.Inputs, "height")
	_, err := sess.Compute(ctx, req)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !vErr.Outcomes["height"].Missing {
		t.Error("missing field must be flagged, never coerced to zero")
	}
	if !sess.Bundle().IsEmpty() {
		t.Error("blocked compute must not store a result")
	}
	if sess.Visible() {
		t.Error("panel must stay hidden after a blocked compute")
	}
	if sess.History().Len() != 0 || sess.LastRecord() != nil {
		t.Error("blocked compute must not write history or audit entries")
	}
}

func TestCompute_OutOfRangeBlocks(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	req := bsaRequest()
	req.Inputs["weight"] = "0.1" // below the 0.5 kg hard minimum
	_, err := sess.Compute(ctx, req)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	out := vErr.Outcomes["weight"]
	if out.Valid || out.Level != "error" {
		t.Errorf("weight outcome = %+v", out)
	}
}

func TestCompute_WarningRequiresConfirmation(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	req := bsaRequest()
	req.Inputs["weight"] = "250" // inside [0.5,300], outside warn band [2,200]
	_, err := sess.Compute(ctx, req)

	var confErr *ConfirmationError
	if !errors.As(err, &confErr) {
		t.Fatalf("err = %v, want ConfirmationError", err)
	}
	if !sess.Bundle().IsEmpty() {
		t.Error("unconfirmed warning must not store a result")
	}

	req.ConfirmWarnings = true
	resp, err := sess.Compute(ctx, req)
	if err != nil {
		t.Fatalf("confirmed compute: %v", err)
	}
	if resp.Outcomes["weight"].Level != "warning" {
		t.Errorf("confirmed outcome level = %q, want warning", resp.Outcomes["weight"].Level)
	}
	if resp.Bundle.IsEmpty() {
		t.Error("confirmed compute must store a result")
	}
}

func TestCompute_AlternateUnitInput(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	unit, err := sess.ToggleUnit("weight")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if unit != "lb" {
		t.Fatalf("unit after toggle = %q, want lb", unit)
	}

	req := bsaRequest()
	req.Inputs["weight"] = "154.324" // 70 kg
	resp, err := sess.Compute(ctx, req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if resp.Bundle.MainResult != "181.8 mg" {
		t.Errorf("main result = %q, want 181.8 mg from 154.324 lb", resp.Bundle.MainResult)
	}
	if resp.Bundle.InputFields["weight"] != "154.324 lb" {
		t.Errorf("formatted weight = %q", resp.Bundle.InputFields["weight"])
	}
}

func TestToggleUnit_RoundTripsAndRejectsUnitlessFields(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	if u, _ := sess.ToggleUnit("height"); u != "in" {
		t.Errorf("first toggle = %q, want in", u)
	}
	if u, _ := sess.ToggleUnit("height"); u != "cm" {
		t.Errorf("second toggle = %q, want cm", u)
	}
	if _, err := sess.ToggleUnit("dose_per_m2"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("err = %v, want ErrUnknownField", err)
	}
}

func TestConvert_DisplayRounding(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	v, err := sess.Convert("weight", 70, "kg", "lb")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if v != 154.3 {
		t.Errorf("70 kg = %g lb, want 154.3", v)
	}
}

func TestReset_ClearsStateButKeepsLedgerAndHistory(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	if _, err := sess.Compute(ctx, bsaRequest()); err != nil {
		t.Fatalf("compute: %v", err)
	}
	sess.ToggleUnit("weight")

	sess.Reset(ctx)

	if !sess.Bundle().IsEmpty() {
		t.Error("reset must clear the result bundle")
	}
	if sess.Visible() {
		t.Error("reset must hide the panel")
	}
	if sess.Outcomes() != nil {
		t.Error("reset must clear validation annotations")
	}
	if u := sess.Unit(Field{Name: "weight", Kind: "weight"}); u != "kg" {
		t.Errorf("reset must restore canonical units, got %q", u)
	}
	if sess.History().Len() != 1 {
		t.Error("reset must not discard history")
	}
	if sess.ledger.Len() != 1 {
		t.Error("reset must not discard the audit ledger")
	}
}

func TestCompute_PublishesEventsOnTransitions(t *testing.T) {
	svc, b := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	var panels []PanelEvent
	var computes []ComputeEvent
	var resets []string
	b.Subscribe(bus.TopicPanelVisibility, func(p interface{}) { panels = append(panels, p.(PanelEvent)) })
	b.Subscribe(bus.TopicComputeCompleted, func(p interface{}) { computes = append(computes, p.(ComputeEvent)) })
	b.Subscribe(bus.TopicFormReset, func(p interface{}) { resets = append(resets, p.(string)) })

	sess, _ := svc.Session(ctx, "bsa-dose")
	sess.Compute(ctx, bsaRequest())
	sess.Compute(ctx, bsaRequest())

	if len(panels) != 1 || !panels[0].Visible {
		t.Errorf("panel events = %+v, want one visible transition", panels)
	}
	if len(computes) != 2 {
		t.Errorf("compute events = %d, want 2", len(computes))
	}

	sess.Reset(ctx)
	if len(panels) != 2 || panels[1].Visible {
		t.Errorf("panel events after reset = %+v", panels)
	}
	if len(resets) != 1 || resets[0] != "bsa-dose" {
		t.Errorf("reset events = %v", resets)
	}
}

type failingStore struct{ storage.Store }

func (f failingStore) Set(ctx context.Context, key, value string) error {
	return fmt.Errorf("disk full")
}

func TestCompute_PersistFailureDegradesWithoutBlocking(t *testing.T) {
	svc, _ := newTestService(t, failingStore{storage.NewMemory()})
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "bsa-dose")

	resp, err := sess.Compute(ctx, bsaRequest())
	if err != nil {
		t.Fatalf("compute must not fail on persistence errors: %v", err)
	}
	if !resp.PersistDegraded {
		t.Error("expected persist_degraded flag")
	}
	if resp.Bundle.IsEmpty() || sess.History().Len() != 1 {
		t.Error("in-memory state must remain authoritative")
	}
}

func TestCompute_CrClAppliesFemaleFactor(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()
	sess, _ := svc.Session(ctx, "crcl")

	req := ComputeRequest{
		Patient: map[string]string{"patient_name": "Jane Roe"},
		Inputs: map[string]string{
			"age":              "60",
			"weight":           "72",
			"serum_creatinine": "1",
			"sex":              "female",
		},
	}
	resp, err := sess.Compute(ctx, req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// (140-60)*72/(72*1) = 80, x0.85 = 68.
	if resp.Bundle.MainResult != "68.0 mL/min" {
		t.Errorf("main result = %q, want 68.0 mL/min", resp.Bundle.MainResult)
	}

	req.Inputs["sex"] = "other"
	_, err = sess.Compute(ctx, req)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError for bad select option", err)
	}
}

func TestService_UnknownCalculator(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	if _, err := svc.Session(context.Background(), "nope"); !errors.Is(err, ErrUnknownCalculator) {
		t.Errorf("err = %v, want ErrUnknownCalculator", err)
	}
}

func TestService_SessionsAreIsolatedPerCalculator(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	a, _ := svc.Session(ctx, "bsa-dose")
	b, _ := svc.Session(ctx, "bmi")
	a.Compute(ctx, bsaRequest())

	if !b.Bundle().IsEmpty() || b.Visible() {
		t.Error("computation must not leak across calculator sessions")
	}
	again, _ := svc.Session(ctx, "bsa-dose")
	if again != a {
		t.Error("sessions must be reused per calculator")
	}
}
