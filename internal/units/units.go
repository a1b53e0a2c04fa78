// Package units provides length units for marker coordinates. Everything
// downstream of loading (thresholds, errors, the database) is in metres.
package units

import "strings"

// Unit constants
const (
	Metres      = "m"
	Centimetres = "cm"
	Millimetres = "mm"
	Inches      = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Metres, Centimetres, Millimetres, Inches}

var metresPer = map[string]float64{
	Metres:      1,
	Centimetres: 0.01,
	Millimetres: 0.001,
	Inches:      0.0254,
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	_, ok := metresPer[unit]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToMetresFactor returns the factor converting a length in unit to metres.
// Unknown units are treated as metres.
func ToMetresFactor(unit string) float64 {
	if f, ok := metresPer[unit]; ok {
		return f
	}
	return 1
}

// ToMetres converts a length in unit to metres.
func ToMetres(v float64, unit string) float64 {
	return v * ToMetresFactor(unit)
}

// FromMetres converts a length in metres to unit.
func FromMetres(v float64, unit string) float64 {
	return v / ToMetresFactor(unit)
}
