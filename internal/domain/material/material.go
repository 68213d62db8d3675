package material

import "fmt"

// Material is a filament material type.
type Material string

// Supported materials.
const (
	Custom Material = "Custom"
	PLA    Material = "PLA"
	PETG   Material = "PETG"
	ABS    Material = "ABS"
	TPU    Material = "TPU"
	Nylon  Material = "Nylon"
	ASA    Material = "ASA"
)

// densities in g/cm³ per material.
var densities = map[Material]float64{
	Custom: 1.24,
	PLA:    1.24,
	PETG:   1.27,
	ABS:    1.04,
	TPU:    1.21,
	Nylon:  1.14,
	ASA:    1.05,
}

// All returns the supported materials in a stable order.
func All() []Material {
	return []Material{Custom, PLA, PETG, ABS, TPU, Nylon, ASA}
}

// Parse validates a material name.
func Parse(name string) (Material, error) {
	m := Material(name)
	if _, ok := densities[m]; !ok {
		return "", fmt.Errorf("unknown material %q", name)
	}
	return m, nil
}

// IsValid checks if the material is supported.
func (m Material) IsValid() bool {
	_, ok := densities[m]
	return ok
}

// Density returns the standard density of the material in g/cm³.
func (m Material) Density() float64 {
	if d, ok := densities[m]; ok {
		return d
	}
	return densities[Custom]
}
