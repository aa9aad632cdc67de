package mesh

import "github.com/scanforge-data/scanforge/internal/units"

// Normalizer converts a mesh to canonical units and pose: coordinates in
// TargetUnits, center of mass at the origin, and the largest bounding-box
// dimension scaled to TargetScale.
type Normalizer struct {
	TargetScale float64
	TargetUnits string
}

// NewNormalizer creates a Normalizer. Zero values default to scale 1.0 and
// millimetres.
func NewNormalizer(targetScale float64, targetUnits string) *Normalizer {
	if targetScale <= 0 {
		targetScale = 1.0
	}
	if targetUnits == "" {
		targetUnits = units.MM
	}
	return &Normalizer{TargetScale: targetScale, TargetUnits: targetUnits}
}

// Normalize returns a new mesh in canonical pose. sourceUnits names the units
// of the input coordinates; pass "" when the input is already in the target
// units. A mesh with zero extent is centered but not scaled, avoiding a
// division by zero.
func (n *Normalizer) Normalize(m *Mesh, sourceUnits string) *Mesh {
	out := m.Clone()

	if sourceUnits != "" && sourceUnits != n.TargetUnits {
		out.Scale(units.ScaleFactor(sourceUnits, n.TargetUnits))
	}

	com := out.CenterOfMass()
	out.Translate([3]float64{-com[0], -com[1], -com[2]})

	if extent := out.MaxExtent(); extent > 0 {
		out.Scale(n.TargetScale / extent)
	}
	return out
}
