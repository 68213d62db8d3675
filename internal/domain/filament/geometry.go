// Package filament holds the geometry shared by every weight/length
// conversion: a spool is a cylinder of filament, so weight and length are
// interchangeable given the material density and filament diameter.
package filament

import "math"

// DefaultDiameter is the standard filament diameter in mm.
const DefaultDiameter = 1.75

// CrossSectionMM2 returns the filament cross-section area in mm² for a
// diameter in mm.
func CrossSectionMM2(diameterMM float64) float64 {
	r := diameterMM / 2
	return math.Pi * r * r
}

// WeightG converts a filament length in mm to grams.
// Volume in mm³ is divided by 1000 to get cm³ before applying the density
// (g/cm³).
func WeightG(lengthMM, diameterMM, density float64) float64 {
	volumeCM3 := CrossSectionMM2(diameterMM) * lengthMM / 1000
	return volumeCM3 * density
}

// LengthMM converts a filament weight in grams to mm.
// Inverse of WeightG: length = weight / (density × area × 1e-3).
func LengthMM(weightG, diameterMM, density float64) float64 {
	if density <= 0 || diameterMM <= 0 {
		return 0
	}
	volumeMM3 := weightG / density * 1000
	return volumeMM3 / CrossSectionMM2(diameterMM)
}
