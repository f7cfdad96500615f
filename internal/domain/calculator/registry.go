package calculator

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dosecalc/dosecalc/internal/domain/safety"
	"github.com/dosecalc/dosecalc/internal/domain/units"
)

// Registry holds the immutable calculator configurations keyed by name.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]*Config)}
}

// Register validates the config's safety limits and installs it. A config
// with out-of-order limits is a programming error surfaced at startup.
func (r *Registry) Register(cfg *Config) error {
	for _, f := range cfg.InputFields {
		if f.Limits == nil {
			continue
		}
		if err := f.Limits.Validate(); err != nil {
			return fmt.Errorf("calculator %q field %q: %w", cfg.Name, f.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	return nil
}

// Get returns the named config.
func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// List returns all configs sorted by name.
func (r *Registry) List() []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered calculator names sorted.
func (r *Registry) Names() []string {
	configs := r.List()
	out := make([]string, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, cfg.Name)
	}
	return out
}

// DefaultRegistry returns a registry with the built-in calculators.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, cfg := range []*Config{bsaDose(), bmi(), creatinineClearance()} {
		if err := r.Register(cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var patientFields = []Field{
	{Name: "patient_name", Label: "Patient name", Type: FieldText},
	{Name: "patient_id", Label: "Patient ID", Type: FieldText},
}

// bsaDose computes a body-surface-area normalized dose with the Mosteller
// formula.
func bsaDose() *Config {
	return &Config{
		Name:           "bsa-dose",
		Title:          "Body Surface Area Dose Calculator",
		ExportFilename: "bsa-dose-report.pdf",
		Layout:         LayoutFlags{ShowChecklists: true, ShowAuditBlock: true, ShowRelatedTools: true},
		Breadcrumbs:    []string{"Calculators", "Dosing", "BSA Dose"},
		Tabs: TabContent{
			Description: "Normalizes a prescribed dose to the patient's body surface area.",
			Formula:     "BSA = sqrt(weight x height / 3600); dose = BSA x dose per m2",
			References:  "Mosteller RD. Simplified calculation of body-surface area. N Engl J Med 1987.",
		},
		RelatedTools: []RelatedTool{
			{Name: "bmi", Title: "Body Mass Index"},
			{Name: "crcl", Title: "Creatinine Clearance"},
		},
		PatientFields: patientFields,
		InputFields: []Field{
			{Name: "weight", Label: "Weight", Type: FieldNumber, Kind: units.Weight,
				Limits: &safety.Limits{Min: 0.5, Max: 300, WarnMin: 2, WarnMax: 200}},
			{Name: "height", Label: "Height", Type: FieldNumber, Kind: units.Height,
				Limits: &safety.Limits{Min: 20, Max: 250, WarnMin: 45, WarnMax: 220}},
			{Name: "dose_per_m2", Label: "Dose per m²", Type: FieldNumber,
				Limits: &safety.Limits{Min: 0.1, Max: 10000, WarnMin: 1, WarnMax: 5000}},
		},
		Compute: func(numbers map[string]float64, _ map[string]string) (ComputeOutput, error) {
			bsa := math.Sqrt(numbers["weight"] * numbers["height"] / 3600)
			dose := bsa * numbers["dose_per_m2"]
			return ComputeOutput{
				Value:          dose,
				MainResult:     fmt.Sprintf("%.1f mg", dose),
				Interpretation: fmt.Sprintf("BSA %.2f m² at %g mg/m²", bsa, numbers["dose_per_m2"]),
			}, nil
		},
	}
}

func bmi() *Config {
	return &Config{
		Name:           "bmi",
		Title:          "Body Mass Index Calculator",
		ExportFilename: "bmi-report.pdf",
		Layout:         LayoutFlags{ShowRelatedTools: true},
		Breadcrumbs:    []string{"Calculators", "Assessment", "BMI"},
		Tabs: TabContent{
			Description: "Weight-for-height index used to classify nutritional status in adults.",
			Formula:     "BMI = weight / (height in meters)^2",
			References:  "WHO Technical Report Series 894, 2000.",
		},
		RelatedTools: []RelatedTool{
			{Name: "bsa-dose", Title: "Body Surface Area Dose"},
		},
		PatientFields: patientFields,
		InputFields: []Field{
			{Name: "weight", Label: "Weight", Type: FieldNumber, Kind: units.Weight,
				Limits: &safety.Limits{Min: 0.5, Max: 300, WarnMin: 25, WarnMax: 250}},
			{Name: "height", Label: "Height", Type: FieldNumber, Kind: units.Height,
				Limits: &safety.Limits{Min: 50, Max: 250, WarnMin: 120, WarnMax: 220}},
		},
		Compute: func(numbers map[string]float64, _ map[string]string) (ComputeOutput, error) {
			meters := numbers["height"] / 100
			v := numbers["weight"] / (meters * meters)
			var class string
			switch {
			case v < 18.5:
				class = "underweight"
			case v < 25:
				class = "normal weight"
			case v < 30:
				class = "overweight"
			default:
				class = "obese"
			}
			return ComputeOutput{
				Value:          v,
				MainResult:     fmt.Sprintf("%.1f kg/m²", v),
				Interpretation: fmt.Sprintf("BMI %.1f, classified as %s", v, class),
			}, nil
		},
	}
}

// creatinineClearance estimates renal function with Cockcroft-Gault.
func creatinineClearance() *Config {
	return &Config{
		Name:           "crcl",
		Title:          "Creatinine Clearance Calculator",
		ExportFilename: "crcl-report.pdf",
		Layout:         LayoutFlags{ShowChecklists: true, ShowAuditBlock: true},
		Breadcrumbs:    []string{"Calculators", "Renal", "Creatinine Clearance"},
		Tabs: TabContent{
			Description: "Estimates creatinine clearance for renal dose adjustment.",
			Formula:     "CrCl = (140 - age) x weight / (72 x SCr), x 0.85 if female",
			References:  "Cockcroft DW, Gault MH. Prediction of creatinine clearance from serum creatinine. Nephron 1976.",
		},
		PatientFields: patientFields,
		InputFields: []Field{
			{Name: "age", Label: "Age", Type: FieldNumber,
				Limits: &safety.Limits{Min: 1, Max: 120, WarnMin: 18, WarnMax: 100}},
			{Name: "weight", Label: "Weight", Type: FieldNumber, Kind: units.Weight,
				Limits: &safety.Limits{Min: 0.5, Max: 300, WarnMin: 35, WarnMax: 200}},
			{Name: "serum_creatinine", Label: "Serum creatinine (mg/dL)", Type: FieldNumber,
				Limits: &safety.Limits{Min: 0.1, Max: 20, WarnMin: 0.4, WarnMax: 10}},
			{Name: "sex", Label: "Sex", Type: FieldSelect, Options: []string{"male", "female"}},
		},
		Compute: func(numbers map[string]float64, selects map[string]string) (ComputeOutput, error) {
			v := (140 - numbers["age"]) * numbers["weight"] / (72 * numbers["serum_creatinine"])
			if selects["sex"] == "female" {
				v *= 0.85
			}
			var band string
			switch {
			case v >= 90:
				band = "normal renal function"
			case v >= 60:
				band = "mildly reduced clearance"
			case v >= 30:
				band = "moderately reduced clearance"
			case v >= 15:
				band = "severely reduced clearance"
			default:
				band = "kidney failure range"
			}
			return ComputeOutput{
				Value:          v,
				MainResult:     fmt.Sprintf("%.1f mL/min", v),
				Interpretation: fmt.Sprintf("Estimated clearance %.1f mL/min, %s", v, band),
			}, nil
		},
	}
}
