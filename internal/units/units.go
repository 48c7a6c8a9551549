// Package units converts speeds from metres per second into display units.
package units

import "strings"

// Unit constants
const (
	MPS   = "mps"
	MPH   = "mph"
	KMPH  = "kmph"
	KPH   = "kph"
	Knots = "knots"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH, Knots}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ValidUnitsString returns a comma-separated list of valid units for error messages.
func ValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed in metres per second to the target units.
// Unknown units return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	case Knots:
		return speedMPS * 1.9438444924406
	default:
		return speedMPS
	}
}

// Suffix returns the label printed after a converted speed.
func Suffix(unit string) string {
	switch unit {
	case MPH:
		return "miles per hour"
	case KMPH, KPH:
		return "kilometers per hour"
	case Knots:
		return "knots"
	default:
		return "meters per second"
	}
}
