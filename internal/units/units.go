// Package units provides shared constants and conversion for length units
package units

import "fmt"

// Unit constants
const (
	CM = "cm"
	IN = "in"
	M  = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{CM, IN, M}

// CMPerInch is the exact definition of the international inch.
const CMPerInch = 2.54

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "cm, in, m"
}

// ConvertLength converts a length from centimeters to the target units.
// The pipeline and the database store lengths in centimeters.
func ConvertLength(lengthCM float64, targetUnits string) float64 {
	switch targetUnits {
	case IN:
		return lengthCM / CMPerInch
	case M:
		return lengthCM / 100
	case CM:
		return lengthCM // no conversion needed
	default:
		return lengthCM // default to cm if unknown unit
	}
}

// CMToInches converts centimeters to inches.
func CMToInches(cm float64) float64 { return cm / CMPerInch }

// InchesToCM converts inches to centimeters.
func InchesToCM(in float64) float64 { return in * CMPerInch }

// MetersToCM converts meters to centimeters.
func MetersToCM(m float64) float64 { return m * 100 }

// CMToMeters converts centimeters to meters.
func CMToMeters(cm float64) float64 { return cm / 100 }

// FormatLength renders a length with one decimal and its unit suffix,
// e.g. "94.5 cm".
func FormatLength(value float64, unit string) string {
	return fmt.Sprintf("%.1f %s", value, unit)
}
