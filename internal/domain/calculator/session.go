package calculator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dosecalc/dosecalc/internal/domain/audit"
	"github.com/dosecalc/dosecalc/internal/domain/history"
	"github.com/dosecalc/dosecalc/internal/domain/result"
	"github.com/dosecalc/dosecalc/internal/domain/safety"
	"github.com/dosecalc/dosecalc/internal/domain/units"
	"github.com/dosecalc/dosecalc/internal/platform/bus"
)

// ValidationError carries the per-field outcomes of a blocked computation.
// At least one field is at error level; nothing was computed or stored.
type ValidationError struct {
	Outcomes map[string]safety.Outcome
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("calculator: %d field(s) failed validation", len(e.Outcomes))
}

// ConfirmationError is returned when every field is inside the hard range
// but at least one sits in a warning band and the request did not confirm.
type ConfirmationError struct {
	Outcomes map[string]safety.Outcome
}

func (e *ConfirmationError) Error() string {
	return "calculator: warning-level values require explicit confirmation"
}

var ErrUnknownField = errors.New("calculator: unknown field")

// ComputeEvent is the TopicComputeCompleted payload.
type ComputeEvent struct {
	Calculator string
	RecordID   string
	MainResult string
}

// PanelEvent is the TopicPanelVisibility payload.
type PanelEvent struct {
	Calculator string
	Visible    bool
}

type ComputeRequest struct {
	Patient         map[string]string `json:"patient"`
	Inputs          map[string]string `json:"inputs"`
	ConfirmWarnings bool              `json:"confirm_warnings"`
}

// ComputeResponse is the successful pipeline result. PersistDegraded is set
// when the ledger or history write failed; the in-memory state is still
// authoritative and the caller surfaces a non-blocking notice.
type ComputeResponse struct {
	Bundle          result.Bundle             `json:"bundle"`
	Record          audit.Record              `json:"record"`
	Outcomes        map[string]safety.Outcome `json:"outcomes"`
	PanelVisible    bool                      `json:"panel_visible"`
	PersistDegraded bool                      `json:"persist_degraded,omitempty"`
}

// Session is the orchestrator for one calculator: it owns the results-panel
// visibility state, the per-field validation annotations, and the per-field
// unit toggles, and coordinates the stores on compute and reset. The panel
// is Visible only while the result store holds a bundle.
type Session struct {
	cfg     *Config
	results *result.Store
	ledger  *audit.Ledger
	history *history.Buffer
	bus     *bus.Bus
	logger  zerolog.Logger

	mu         sync.Mutex
	visible    bool
	outcomes   map[string]safety.Outcome
	unitState  map[string]units.Unit
	lastRecord *audit.Record
}

func newSession(cfg *Config, ledger *audit.Ledger, hist *history.Buffer, b *bus.Bus, logger zerolog.Logger) *Session {
	return &Session{
		cfg:       cfg,
		results:   result.NewStore(),
		ledger:    ledger,
		history:   hist,
		bus:       b,
		logger:    logger.With().Str("calculator", cfg.Name).Logger(),
		unitState: make(map[string]units.Unit),
	}
}

func (s *Session) Config() *Config { return s.cfg }

// Unit returns the currently selected display unit for a field, defaulting
// to the canonical unit of its kind.
func (s *Session) Unit(field Field) units.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unitLocked(field)
}

func (s *Session) unitLocked(field Field) units.Unit {
	if u, ok := s.unitState[field.Name]; ok {
		return u
	}
	return units.Default(field.Kind)
}

// ToggleUnit flips the display unit of a unit-bearing field and returns the
// now-selected unit. Stored raw inputs are untouched; the caller converts
// any displayed value through Convert.
func (s *Session) ToggleUnit(name string) (units.Unit, error) {
	f, ok := s.cfg.Find(name)
	if !ok || f.Kind == "" {
		return "", fmt.Errorf("%w: %q has no unit toggle", ErrUnknownField, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := units.Alternate(f.Kind)
	if s.unitLocked(f) == next {
		next = units.Default(f.Kind)
	}
	s.unitState[name] = next
	return next, nil
}

// Convert converts a displayed value of the named field between its two
// units and applies display rounding.
func (s *Session) Convert(name string, value float64, from, to units.Unit) (float64, error) {
	f, ok := s.cfg.Find(name)
	if !ok || f.Kind == "" {
		return 0, fmt.Errorf("%w: %q is not convertible", ErrUnknownField, name)
	}
	if !units.Valid(f.Kind, from) || !units.Valid(f.Kind, to) {
		return 0, fmt.Errorf("units: %q and %q are not units of %s", from, to, f.Kind)
	}
	v, err := units.Convert(value, f.Kind, from, to)
	if err != nil {
		return 0, err
	}
	return units.Round1(v), nil
}

// Compute runs the full pipeline: validate every field in its selected
// display unit, block on errors, require confirmation for warnings,
// normalize to canonical units, run the formula, replace the result bundle,
// append the audit record, push a history entry, and flip the panel to
// Visible. Persistence failures degrade, never block.
func (s *Session) Compute(ctx context.Context, req ComputeRequest) (ComputeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make(map[string]safety.Outcome, len(s.cfg.InputFields))
	numbers := make(map[string]float64)
	selects := make(map[string]string)
	formatted := make(map[string]string, len(s.cfg.InputFields))

	blocking := false
	warned := false

	for _, f := range s.cfg.InputFields {
		raw := req.Inputs[f.Name]
		switch f.Type {
		case FieldSelect:
			if !contains(f.Options, raw) {
				outcomes[f.Name] = safety.Outcome{
					Valid:   false,
					Level:   safety.LevelError,
					Message: fmt.Sprintf("%q is not one of the allowed options", raw),
					Missing: raw == "",
				}
				blocking = true
				continue
			}
			selects[f.Name] = raw
			formatted[f.Name] = raw
			outcomes[f.Name] = safety.Outcome{Valid: true, Level: safety.LevelOK}

		case FieldNumber:
			unit := s.unitLocked(f)
			out := safety.Validate(raw, s.displayLimits(f, unit))
			outcomes[f.Name] = out
			switch out.Level {
			case safety.LevelError:
				blocking = true
				continue
			case safety.LevelWarning:
				warned = true
			}
			canonical, err := toCanonical(f, unit, out.Value)
			if err != nil {
				return ComputeResponse{}, err
			}
			numbers[f.Name] = canonical
			if unit != "" {
				formatted[f.Name] = fmt.Sprintf("%g %s", out.Value, unit)
			} else {
				formatted[f.Name] = fmt.Sprintf("%g", out.Value)
			}

		default:
			formatted[f.Name] = raw
			selects[f.Name] = raw
		}
	}

	// Annotations from the failed attempt stay on the session so the form
	// can render them; the previous result bundle is left intact.
	s.outcomes = outcomes

	if blocking {
		return ComputeResponse{}, &ValidationError{Outcomes: outcomes}
	}
	if warned && !req.ConfirmWarnings {
		return ComputeResponse{}, &ConfirmationError{Outcomes: outcomes}
	}

	out, err := s.cfg.Compute(numbers, selects)
	if err != nil {
		return ComputeResponse{}, fmt.Errorf("compute %s: %w", s.cfg.Name, err)
	}

	bundle := s.results.SetResult(result.Bundle{
		PatientFields:  req.Patient,
		InputFields:    formatted,
		MainResult:     out.MainResult,
		Interpretation: out.Interpretation,
	})

	degraded := false
	rec, err := s.ledger.Append(ctx, audit.Record{
		CalculationType: s.cfg.Name,
		Patient:         req.Patient,
		Inputs:          formatted,
		ResultSummary:   out.MainResult,
	})
	if err != nil {
		degraded = true
	}
	s.lastRecord = &rec

	if err := s.history.Push(ctx, history.Entry{
		PatientName:     req.Patient["patient_name"],
		RawInputs:       req.Inputs,
		FormattedInputs: formatted,
		ComputedValue:   out.MainResult,
		DateLabel:       bundle.Timestamp.Format("02 Jan 2006"),
	}); err != nil {
		degraded = true
	}
	if degraded {
		s.logger.Warn().Str("record_id", rec.ID).Msg("compute persisted in memory only")
	}

	if !s.visible {
		s.visible = true
		s.bus.Publish(bus.TopicPanelVisibility, PanelEvent{Calculator: s.cfg.Name, Visible: true})
	}
	s.bus.Publish(bus.TopicComputeCompleted, ComputeEvent{
		Calculator: s.cfg.Name,
		RecordID:   rec.ID,
		MainResult: out.MainResult,
	})

	return ComputeResponse{
		Bundle:          bundle,
		Record:          rec,
		Outcomes:        outcomes,
		PanelVisible:    true,
		PersistDegraded: degraded,
	}, nil
}

// Reset clears the result bundle, the validation annotations, and the unit
// toggles, and hides the panel. The audit ledger and history buffer are
// deliberately untouched.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results.Clear()
	s.outcomes = nil
	s.unitState = make(map[string]units.Unit)
	s.lastRecord = nil
	if s.visible {
		s.visible = false
		s.bus.Publish(bus.TopicPanelVisibility, PanelEvent{Calculator: s.cfg.Name, Visible: false})
	}
	s.bus.Publish(bus.TopicFormReset, s.cfg.Name)
}

// Bundle returns the current result bundle (empty sentinel when none).
func (s *Session) Bundle() result.Bundle { return s.results.GetResult() }

// Visible reports the results-panel state.
func (s *Session) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Outcomes returns the annotations of the most recent compute attempt.
func (s *Session) Outcomes() map[string]safety.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes
}

// LastRecord returns the audit record of the current bundle, if any.
func (s *Session) LastRecord() *audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRecord
}

// History returns the recall buffer for this calculator.
func (s *Session) History() *history.Buffer { return s.history }

// displayLimits expresses a field's canonical limits in the selected
// display unit so messages quote values the way the user typed them. All
// supported conversions are monotonic increasing, preserving bound order.
func (s *Session) displayLimits(f Field, unit units.Unit) safety.Limits {
	if f.Limits == nil {
		return safety.Limits{Min: -1e308, Max: 1e308, WarnMin: -1e308, WarnMax: 1e308}
	}
	if f.Kind == "" || unit == units.Default(f.Kind) {
		return *f.Limits
	}
	conv := func(v float64) float64 {
		c, err := units.Convert(v, f.Kind, units.Default(f.Kind), unit)
		if err != nil {
			return v
		}
		return c
	}
	return safety.Limits{
		Min:     conv(f.Limits.Min),
		Max:     conv(f.Limits.Max),
		WarnMin: conv(f.Limits.WarnMin),
		WarnMax: conv(f.Limits.WarnMax),
	}
}

func toCanonical(f Field, unit units.Unit, v float64) (float64, error) {
	if f.Kind == "" || unit == "" || unit == units.Default(f.Kind) {
		return v, nil
	}
	return units.Convert(v, f.Kind, unit, units.Default(f.Kind))
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
