// Package units converts clinical quantities between metric and
// imperial/regional units. Conversions are pure functions over a fixed
// factor table; display rounding to one decimal is a deliberate lossy step,
// so round-trips are exact only within 0.1 of the displayed value.
package units

import (
	"fmt"
	"math"
)

type Kind string

const (
	Weight      Kind = "weight"
	Height      Kind = "height"
	Temperature Kind = "temperature"
	Volume      Kind = "volume"
)

type Unit string

const (
	Kilogram   Unit = "kg"
	Pound      Unit = "lb"
	Centimeter Unit = "cm"
	Inch       Unit = "in"
	Celsius    Unit = "c"
	Fahrenheit Unit = "f"
	Milliliter Unit = "ml"
	FluidOunce Unit = "floz"
)

// Linear conversion factors, metric unit per regional unit.
const (
	kgPerLb = 1.0 / 2.20462
	cmPerIn = 2.54
	mlPerOz = 29.5735
)

// Default returns the canonical (metric) unit for a quantity kind.
func Default(kind Kind) Unit {
	switch kind {
	case Weight:
		return Kilogram
	case Height:
		return Centimeter
	case Temperature:
		return Celsius
	case Volume:
		return Milliliter
	}
	return ""
}

// Alternate returns the regional counterpart of the canonical unit.
func Alternate(kind Kind) Unit {
	switch kind {
	case Weight:
		return Pound
	case Height:
		return Inch
	case Temperature:
		return Fahrenheit
	case Volume:
		return FluidOunce
	}
	return ""
}

// Convert converts value between the two units of kind. Converting a unit
// to itself returns the value unchanged.
func Convert(value float64, kind Kind, from, to Unit) (float64, error) {
	if from == to {
		return value, nil
	}
	switch kind {
	case Weight:
		if from == Kilogram && to == Pound {
			return value / kgPerLb, nil
		}
		if from == Pound && to == Kilogram {
			return value * kgPerLb, nil
		}
	case Height:
		if from == Centimeter && to == Inch {
			return value / cmPerIn, nil
		}
		if from == Inch && to == Centimeter {
			return value * cmPerIn, nil
		}
	case Temperature:
		if from == Celsius && to == Fahrenheit {
			return value*9/5 + 32, nil
		}
		if from == Fahrenheit && to == Celsius {
			return (value - 32) * 5 / 9, nil
		}
	case Volume:
		if from == Milliliter && to == FluidOunce {
			return value / mlPerOz, nil
		}
		if from == FluidOunce && to == Milliliter {
			return value * mlPerOz, nil
		}
	}
	return 0, fmt.Errorf("units: no conversion for %s from %q to %q", kind, from, to)
}

// Round1 applies display rounding at one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Valid reports whether u is one of the two units of kind.
func Valid(kind Kind, u Unit) bool {
	return u == Default(kind) || u == Alternate(kind)
}
