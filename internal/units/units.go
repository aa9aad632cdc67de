// Package units provides shared constants and conversion factors for scan
// coordinate units.
package units

import "strings"

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
	IN = "in"
	FT = "ft"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M, IN, FT}

// factors maps each unit to its size in millimetres. Normalized meshes and the
// cache blobs always use millimetres.
var factors = map[string]float64{
	MM: 1.0,
	CM: 10.0,
	M:  1000.0,
	IN: 25.4,
	FT: 304.8,
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	_, ok := factors[strings.ToLower(unit)]
	return ok
}

// ValidUnitsString returns a comma-separated string of valid units for error messages
func ValidUnitsString() string {
	return "mm, cm, m, in, ft"
}

// Factor returns the size of one unit in millimetres. Unknown units fall back
// to 1.0 (treated as millimetres) rather than failing.
func Factor(unit string) float64 {
	if f, ok := factors[strings.ToLower(unit)]; ok {
		return f
	}
	return 1.0
}

// ScaleFactor returns the multiplier that converts coordinates expressed in
// from-units into to-units.
func ScaleFactor(from, to string) float64 {
	return Factor(from) / Factor(to)
}
