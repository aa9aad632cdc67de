package mesh

import (
	"fmt"
	"time"

	"github.com/scanforge-data/scanforge/internal/monitoring"
)

// ValidationLevel selects how much structural checking Validate performs.
type ValidationLevel string

const (
	// LevelBasic performs no structural checks.
	LevelBasic ValidationLevel = "basic"
	// LevelStandard checks emptiness, degenerate faces, duplicate vertices,
	// normals, manifoldness and watertightness.
	LevelStandard ValidationLevel = "standard"
	// LevelStrict adds self-intersection and inverted-face detection, and
	// repairs what it finds on a working copy.
	LevelStrict ValidationLevel = "strict"
)

// DegenerateAreaEpsilon is the face-area threshold below which a triangle is
// considered degenerate, in squared mesh units.
const DegenerateAreaEpsilon = 1e-10

// selfIntersectionFaceCap bounds the best-effort self-intersection scan; the
// check is quadratic and skipped entirely above this face count.
const selfIntersectionFaceCap = 5000

// Report is the outcome of one Validate call. Issues are hard failures,
// warnings are soft. Repaired always holds the mesh the report describes: the
// caller's mesh when nothing was repaired, otherwise a repaired copy. The
// caller's mesh is never mutated.
type Report struct {
	IsValid        bool            `json:"is_valid"`
	Issues         []string        `json:"issues"`
	Warnings       []string        `json:"warnings"`
	RepairsApplied []string        `json:"repairs_applied"`
	Level          ValidationLevel `json:"validation_level"`
	MeshInfo       Info            `json:"mesh_info"`
	ValidationTime time.Duration   `json:"validation_time"`
	Repaired       *Mesh           `json:"-"`
}

// Validator performs structural and topological mesh validation at a fixed
// level. It is state-free and safe for reuse.
type Validator struct {
	Level ValidationLevel
}

// NewValidator creates a validator. An empty level defaults to standard.
func NewValidator(level ValidationLevel) *Validator {
	if level == "" {
		level = LevelStandard
	}
	return &Validator{Level: level}
}

// Validate checks the mesh and returns a report. At the strict level repairs
// are applied to an internal working copy, which becomes both Report.Repaired
// and the basis for Report.MeshInfo.
func (v *Validator) Validate(m *Mesh) *Report {
	start := time.Now()
	r := &Report{Level: v.Level, Repaired: m}

	working := m
	strict := v.Level == LevelStrict

	if v.Level == LevelStandard || strict {
		if working.IsEmpty() {
			r.Issues = append(r.Issues, "Mesh is empty (no vertices or faces)")
		}

		degenerate := findDegenerateFaces(working)
		if len(degenerate) > 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("Found %d degenerate faces", len(degenerate)))
			if strict {
				working = removeFaces(working, degenerate)
				r.RepairsApplied = append(r.RepairsApplied, "Removed degenerate faces")
			}
		}

		duplicates := findDuplicateVertices(working)
		if len(duplicates) > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("Found %d duplicate vertices", len(duplicates)))
			if strict {
				merged, ok := mergeDuplicateVertices(working)
				if ok {
					working = merged
					r.RepairsApplied = append(r.RepairsApplied, "Merged duplicate vertices")
				} else {
					monitoring.Logf("[Validator] Vertex merge unavailable, mesh left unchanged")
					r.Warnings = append(r.Warnings, "Duplicate vertices could not be merged")
				}
			}
		}

		if !working.HasNormals() {
			r.Warnings = append(r.Warnings, "Mesh has no normals")
			if strict {
				working = working.Clone()
				working.ComputeFaceNormals()
				r.RepairsApplied = append(r.RepairsApplied, "Generated face normals")
			}
		}

		if !working.IsManifold() {
			r.Issues = append(r.Issues, "Mesh is not manifold")
		}
		if !working.IsWatertight() {
			r.Warnings = append(r.Warnings, "Mesh is not watertight")
		}
	}

	if strict {
		if hasSelfIntersections(working) {
			r.Issues = append(r.Issues, "Mesh has self-intersections")
		}

		inverted := findInvertedFaces(working)
		if len(inverted) > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("Found %d inverted faces", len(inverted)))
			working = fixInvertedFaces(working, inverted)
			r.RepairsApplied = append(r.RepairsApplied, "Fixed inverted faces")
		}
	}

	r.Repaired = working
	r.MeshInfo = Snapshot(working)
	r.ValidationTime = time.Since(start)
	r.IsValid = len(r.Issues) == 0
	return r
}

// findDegenerateFaces returns indices of faces with area below the epsilon.
func findDegenerateFaces(m *Mesh) []int {
	var out []int
	for i := range m.Faces {
		if m.FaceArea(i) < DegenerateAreaEpsilon {
			out = append(out, i)
		}
	}
	return out
}

// removeFaces returns a copy of the mesh without the listed faces. Face
// normals are recomputed rather than filtered.
func removeFaces(m *Mesh, remove []int) *Mesh {
	drop := make(map[int]bool, len(remove))
	for _, i := range remove {
		drop[i] = true
	}
	out := &Mesh{Vertices: append([][3]float64(nil), m.Vertices...)}
	if len(m.VertexNormals) > 0 {
		out.VertexNormals = append([][3]float64(nil), m.VertexNormals...)
	}
	for i, f := range m.Faces {
		if !drop[i] {
			out.Faces = append(out.Faces, f)
		}
	}
	if len(m.FaceNormals) > 0 && len(out.Faces) > 0 {
		out.ComputeFaceNormals()
	}
	return out
}

// findDuplicateVertices returns indices of vertices whose coordinates exactly
// match an earlier vertex. Grouping is by floating-point identity, not
// tolerance.
func findDuplicateVertices(m *Mesh) []int {
	seen := make(map[[3]float64]int, len(m.Vertices))
	var out []int
	for i, v := range m.Vertices {
		if _, ok := seen[v]; ok {
			out = append(out, i)
		} else {
			seen[v] = i
		}
	}
	return out
}

// mergeDuplicateVertices welds exactly coincident vertices and remaps faces.
// Faces collapsing onto fewer than three distinct vertices are dropped.
func mergeDuplicateVertices(m *Mesh) (*Mesh, bool) {
	if err := m.CheckIndices(); err != nil {
		return nil, false
	}
	w := newVertexWelder(len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	for i, v := range m.Vertices {
		remap[i] = w.add(v)
	}
	out := &Mesh{Vertices: w.vertices}
	for _, f := range m.Faces {
		nf := [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
		if nf[0] == nf[1] || nf[1] == nf[2] || nf[2] == nf[0] {
			continue
		}
		out.Faces = append(out.Faces, nf)
	}
	return out, true
}

// findInvertedFaces returns faces whose normal points inward: negative dot
// product with the vector from the mesh's center of mass to the face centroid.
func findInvertedFaces(m *Mesh) []int {
	if m.IsEmpty() {
		return nil
	}
	com := m.CenterOfMass()
	var out []int
	for i := range m.Faces {
		c := m.FaceCentroid(i)
		outward := [3]float64{c[0] - com[0], c[1] - com[1], c[2] - com[2]}
		if dot(m.FaceNormal(i), outward) < 0 {
			out = append(out, i)
		}
	}
	return out
}

// fixInvertedFaces returns a copy with the winding order of the listed faces
// reversed.
func fixInvertedFaces(m *Mesh, inverted []int) *Mesh {
	out := m.Clone()
	for _, i := range inverted {
		out.Faces[i][1], out.Faces[i][2] = out.Faces[i][2], out.Faces[i][1]
	}
	if len(out.FaceNormals) > 0 {
		out.ComputeFaceNormals()
	}
	return out
}

// hasSelfIntersections runs a best-effort triangle intersection scan. Pairs
// are prefiltered by bounding-box overlap; meshes above the face cap skip the
// check entirely. Coplanar overlaps are not detected.
func hasSelfIntersections(m *Mesh) bool {
	n := len(m.Faces)
	if n == 0 || n > selfIntersectionFaceCap {
		return false
	}

	type box struct{ min, max [3]float64 }
	boxes := make([]box, n)
	for i, f := range m.Faces {
		b := box{m.Vertices[f[0]], m.Vertices[f[0]]}
		for _, vi := range f[1:] {
			v := m.Vertices[vi]
			for k := 0; k < 3; k++ {
				if v[k] < b.min[k] {
					b.min[k] = v[k]
				}
				if v[k] > b.max[k] {
					b.max[k] = v[k]
				}
			}
		}
		boxes[i] = b
	}

	overlap := func(a, b box) bool {
		for k := 0; k < 3; k++ {
			if a.max[k] < b.min[k] || b.max[k] < a.min[k] {
				return false
			}
		}
		return true
	}

	sharesVertex := func(a, b [3]int) bool {
		for _, x := range a {
			for _, y := range b {
				if x == y {
					return true
				}
			}
		}
		return false
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !overlap(boxes[i], boxes[j]) || sharesVertex(m.Faces[i], m.Faces[j]) {
				continue
			}
			if trianglesIntersect(m, i, j) || trianglesIntersect(m, j, i) {
				return true
			}
		}
	}
	return false
}

// trianglesIntersect tests whether any edge of face i crosses face j.
func trianglesIntersect(m *Mesh, i, j int) bool {
	fi := m.Faces[i]
	for e := 0; e < 3; e++ {
		p := m.Vertices[fi[e]]
		q := m.Vertices[fi[(e+1)%3]]
		if segmentCrossesTriangle(p, q, m, j) {
			return true
		}
	}
	return false
}

// segmentCrossesTriangle tests the segment p-q against face j using the
// Möller–Trumbore construction.
func segmentCrossesTriangle(p, q [3]float64, m *Mesh, j int) bool {
	f := m.Faces[j]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	dir := sub(q, p)

	e1 := sub(b, a)
	e2 := sub(c, a)
	h := cross(dir, e2)
	det := dot(e1, h)
	if det > -1e-12 && det < 1e-12 {
		return false // parallel or coplanar
	}
	inv := 1.0 / det
	s := sub(p, a)
	u := inv * dot(s, h)
	if u < 0 || u > 1 {
		return false
	}
	qv := cross(s, e1)
	w := inv * dot(dir, qv)
	if w < 0 || u+w > 1 {
		return false
	}
	t := inv * dot(e2, qv)
	return t > 1e-9 && t < 1-1e-9
}
