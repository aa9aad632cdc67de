package mesh

import (
	"math"
	"testing"
)

func TestNormalizeCentersAtOrigin(t *testing.T) {
	m := tetrahedron()
	m.Translate([3]float64{10, -5, 3})

	out := NewNormalizer(1.0, "mm").Normalize(m, "mm")
	com := out.CenterOfMass()
	for k := 0; k < 3; k++ {
		if math.Abs(com[k]) > 1e-6 {
			t.Errorf("center of mass axis %d = %v, want ~0", k, com[k])
		}
	}
	if m.Vertices[0] != [3]float64{10, -5, 3} {
		t.Error("Normalize mutated the input mesh")
	}
}

func TestNormalizeScalesMaxExtentToTarget(t *testing.T) {
	m := tetrahedron()
	m.Scale(40)

	out := NewNormalizer(1.0, "mm").Normalize(m, "mm")
	if got := out.MaxExtent(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("MaxExtent = %v, want 1", got)
	}

	out = NewNormalizer(100.0, "mm").Normalize(m, "mm")
	if got := out.MaxExtent(); math.Abs(got-100.0) > 1e-9 {
		t.Errorf("MaxExtent = %v, want 100", got)
	}
}

func TestNormalizeConvertsUnits(t *testing.T) {
	// Identical geometry labeled cm vs mm must land in the same canonical
	// pose, because unit scaling happens before extent normalization.
	a := NewNormalizer(1.0, "mm").Normalize(tetrahedron(), "cm")
	b := NewNormalizer(1.0, "mm").Normalize(tetrahedron(), "mm")
	for i := range a.Vertices {
		for k := 0; k < 3; k++ {
			if math.Abs(a.Vertices[i][k]-b.Vertices[i][k]) > 1e-9 {
				t.Fatalf("vertex %d differs between unit labelings: %v vs %v", i, a.Vertices[i], b.Vertices[i])
			}
		}
	}
}

func TestNormalizeZeroExtentMesh(t *testing.T) {
	// All vertices coincident: centering applies, scaling is skipped.
	m := &Mesh{
		Vertices: [][3]float64{{5, 5, 5}, {5, 5, 5}, {5, 5, 5}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	out := NewNormalizer(1.0, "mm").Normalize(m, "mm")
	for _, v := range out.Vertices {
		for k := 0; k < 3; k++ {
			if math.Abs(v[k]) > 1e-9 {
				t.Errorf("vertex %v not centered", v)
			}
		}
	}
}
