// Package mesh provides the in-memory triangle mesh model used across the scan
// processing core, together with format-aware loading and saving, structural
// validation and normalization.
package mesh

import (
	"fmt"
	"math"
)

// Mesh is the in-memory representation of a triangle surface: vertex
// positions, face index triples, and optional normals. Geometric properties
// (bounds, area, volume, topology flags) are derived on demand and never
// stored.
//
// Meshes are copy-on-write between pipeline steps: a step never mutates its
// input, it produces a new Mesh via Clone. The in-place mutators (Translate,
// Scale) are intended for freshly cloned meshes only.
type Mesh struct {
	Vertices      [][3]float64
	Faces         [][3]int
	VertexNormals [][3]float64 // optional, len 0 or len(Vertices)
	FaceNormals   [][3]float64 // optional, len 0 or len(Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// IsEmpty reports whether the mesh has no vertices or no faces.
func (m *Mesh) IsEmpty() bool { return len(m.Vertices) == 0 || len(m.Faces) == 0 }

// HasNormals reports whether the mesh carries vertex or face normals.
func (m *Mesh) HasNormals() bool {
	return len(m.VertexNormals) > 0 || len(m.FaceNormals) > 0
}

// CheckIndices verifies that every face references existing vertices.
func (m *Mesh) CheckIndices() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return fmt.Errorf("face %d references vertex %d outside [0,%d)", i, v, n)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([][3]float64, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	if len(m.VertexNormals) > 0 {
		out.VertexNormals = make([][3]float64, len(m.VertexNormals))
		copy(out.VertexNormals, m.VertexNormals)
	}
	if len(m.FaceNormals) > 0 {
		out.FaceNormals = make([][3]float64, len(m.FaceNormals))
		copy(out.FaceNormals, m.FaceNormals)
	}
	return out
}

// Bounds returns the axis-aligned bounding box corners (min, max). A mesh with
// no vertices returns zero corners.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if len(m.Vertices) == 0 {
		return min, max
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			if v[k] < min[k] {
				min[k] = v[k]
			}
			if v[k] > max[k] {
				max[k] = v[k]
			}
		}
	}
	return min, max
}

// MaxExtent returns the largest bounding-box dimension.
func (m *Mesh) MaxExtent() float64 {
	min, max := m.Bounds()
	ext := 0.0
	for k := 0; k < 3; k++ {
		if d := max[k] - min[k]; d > ext {
			ext = d
		}
	}
	return ext
}

// FaceArea returns the area of face i.
func (m *Mesh) FaceArea(i int) float64 {
	f := m.Faces[i]
	c := cross(sub(m.Vertices[f[1]], m.Vertices[f[0]]), sub(m.Vertices[f[2]], m.Vertices[f[0]]))
	return 0.5 * norm(c)
}

// FaceNormal returns the unit normal of face i following its winding order.
// Degenerate faces yield a zero vector.
func (m *Mesh) FaceNormal(i int) [3]float64 {
	f := m.Faces[i]
	c := cross(sub(m.Vertices[f[1]], m.Vertices[f[0]]), sub(m.Vertices[f[2]], m.Vertices[f[0]]))
	n := norm(c)
	if n == 0 {
		return [3]float64{}
	}
	return [3]float64{c[0] / n, c[1] / n, c[2] / n}
}

// FaceCentroid returns the centroid of face i.
func (m *Mesh) FaceCentroid(i int) [3]float64 {
	f := m.Faces[i]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	return [3]float64{
		(a[0] + b[0] + c[0]) / 3.0,
		(a[1] + b[1] + c[1]) / 3.0,
		(a[2] + b[2] + c[2]) / 3.0,
	}
}

// SurfaceArea returns the total triangle area.
func (m *Mesh) SurfaceArea() float64 {
	total := 0.0
	for i := range m.Faces {
		total += m.FaceArea(i)
	}
	return total
}

// CenterOfMass returns the area-weighted centroid of the surface. When the
// total area vanishes it falls back to the plain vertex mean.
func (m *Mesh) CenterOfMass() [3]float64 {
	var com [3]float64
	totalArea := 0.0
	for i := range m.Faces {
		a := m.FaceArea(i)
		c := m.FaceCentroid(i)
		com[0] += a * c[0]
		com[1] += a * c[1]
		com[2] += a * c[2]
		totalArea += a
	}
	if totalArea > 0 {
		return [3]float64{com[0] / totalArea, com[1] / totalArea, com[2] / totalArea}
	}
	if len(m.Vertices) == 0 {
		return [3]float64{}
	}
	var mean [3]float64
	for _, v := range m.Vertices {
		mean[0] += v[0]
		mean[1] += v[1]
		mean[2] += v[2]
	}
	n := float64(len(m.Vertices))
	return [3]float64{mean[0] / n, mean[1] / n, mean[2] / n}
}

// edgeKey is an undirected edge identified by its sorted vertex pair.
type edgeKey struct{ a, b int }

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// edgeCounts returns the number of faces bordering each undirected edge.
func (m *Mesh) edgeCounts() map[edgeKey]int {
	counts := make(map[edgeKey]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		counts[newEdgeKey(f[0], f[1])]++
		counts[newEdgeKey(f[1], f[2])]++
		counts[newEdgeKey(f[2], f[0])]++
	}
	return counts
}

// IsWatertight reports whether every edge borders exactly two faces, which
// means the surface encloses a well-defined volume.
func (m *Mesh) IsWatertight() bool {
	if m.IsEmpty() {
		return false
	}
	for _, c := range m.edgeCounts() {
		if c != 2 {
			return false
		}
	}
	return true
}

// IsManifold reports whether the mesh is a 2-manifold with consistent winding:
// no edge borders more than two faces, and no directed edge is repeated.
func (m *Mesh) IsManifold() bool {
	if m.IsEmpty() {
		return false
	}
	directed := make(map[[2]int]int, len(m.Faces)*3)
	for _, f := range m.Faces {
		directed[[2]int{f[0], f[1]}]++
		directed[[2]int{f[1], f[2]}]++
		directed[[2]int{f[2], f[0]}]++
	}
	for e, c := range directed {
		if c > 1 {
			return false
		}
		if directed[e]+directed[[2]int{e[1], e[0]}] > 2 {
			return false
		}
	}
	for _, c := range m.edgeCounts() {
		if c > 2 {
			return false
		}
	}
	return true
}

// Volume returns the enclosed volume using the divergence theorem. Only valid
// for watertight meshes; non-watertight meshes report 0.
func (m *Mesh) Volume() float64 {
	if !m.IsWatertight() {
		return 0
	}
	vol := 0.0
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += dot(a, cross(b, c))
	}
	return math.Abs(vol) / 6.0
}

// Translate shifts every vertex by d in place.
func (m *Mesh) Translate(d [3]float64) {
	for i := range m.Vertices {
		m.Vertices[i][0] += d[0]
		m.Vertices[i][1] += d[1]
		m.Vertices[i][2] += d[2]
	}
}

// Scale multiplies every vertex by factor s in place. Normals are unaffected
// by uniform scaling.
func (m *Mesh) Scale(s float64) {
	for i := range m.Vertices {
		m.Vertices[i][0] *= s
		m.Vertices[i][1] *= s
		m.Vertices[i][2] *= s
	}
}

// ComputeFaceNormals recomputes and stores per-face normals from the current
// winding order.
func (m *Mesh) ComputeFaceNormals() {
	m.FaceNormals = make([][3]float64, len(m.Faces))
	for i := range m.Faces {
		m.FaceNormals[i] = m.FaceNormal(i)
	}
}

// ComputeVertexNormals recomputes per-vertex normals as the area-weighted
// average of adjacent face normals.
func (m *Mesh) ComputeVertexNormals() {
	normals := make([][3]float64, len(m.Vertices))
	for i, f := range m.Faces {
		fn := m.FaceNormal(i)
		w := m.FaceArea(i)
		for _, v := range f {
			normals[v][0] += w * fn[0]
			normals[v][1] += w * fn[1]
			normals[v][2] += w * fn[2]
		}
	}
	for i := range normals {
		if n := norm(normals[i]); n > 0 {
			normals[i][0] /= n
			normals[i][1] /= n
			normals[i][2] /= n
		}
	}
	m.VertexNormals = normals
}

// Vector helpers shared across the package.

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm(a [3]float64) float64 {
	return math.Sqrt(dot(a, a))
}
