// Package safety classifies clinical inputs against tiered range limits:
// a hard [Min,Max] band that blocks computation, and an inner
// [WarnMin,WarnMax] band outside of which the value is accepted only with
// explicit user confirmation.
package safety

import "fmt"

type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Limits defines the tiered safety range for one quantity, expressed in
// that quantity's canonical (metric) unit.
type Limits struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	WarnMin float64 `json:"warn_min"`
	WarnMax float64 `json:"warn_max"`
}

// Validate enforces the ordering invariant Min <= WarnMin <= WarnMax <= Max.
func (l Limits) Validate() error {
	if l.Min > l.WarnMin || l.WarnMin > l.WarnMax || l.WarnMax > l.Max {
		return fmt.Errorf("safety limits out of order: min=%g warnMin=%g warnMax=%g max=%g",
			l.Min, l.WarnMin, l.WarnMax, l.Max)
	}
	return nil
}

// Outcome is the result of one validation call, produced fresh every time.
type Outcome struct {
	Valid   bool    `json:"valid"`
	Level   Level   `json:"level"`
	Message string  `json:"message,omitempty"`
	Missing bool    `json:"missing,omitempty"`
	Value   float64 `json:"value"`
}
