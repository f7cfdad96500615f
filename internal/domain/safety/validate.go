package safety

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate parses raw with standard decimal parsing and classifies it
// against limits. Missing or non-numeric input is a distinct blocking
// error and is never coerced to zero.
func Validate(raw string, limits Limits) Outcome {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Outcome{
			Valid:   false,
			Level:   LevelError,
			Message: "value is required",
			Missing: true,
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Outcome{
			Valid:   false,
			Level:   LevelError,
			Message: fmt.Sprintf("%q is not a number", raw),
			Missing: true,
		}
	}
	return ValidateValue(v, limits)
}

// ValidateValue classifies an already-parsed value. Exactly one of
// ok/warning/error is returned:
//
//	value < Min or value > Max            -> error (computation must not proceed)
//	inside [Min,Max], outside warn band   -> warning (requires confirmation)
//	otherwise                             -> ok
func ValidateValue(v float64, limits Limits) Outcome {
	if v < limits.Min || v > limits.Max {
		return Outcome{
			Valid: false,
			Level: LevelError,
			Message: fmt.Sprintf("value %g is outside the allowed range %g–%g",
				v, limits.Min, limits.Max),
			Value: v,
		}
	}
	if v < limits.WarnMin || v > limits.WarnMax {
		return Outcome{
			Valid: true,
			Level: LevelWarning,
			Message: fmt.Sprintf("value %g is outside the typical range %g–%g; confirm to proceed",
				v, limits.WarnMin, limits.WarnMax),
			Value: v,
		}
	}
	return Outcome{Valid: true, Level: LevelOK, Value: v}
}
