package meshpipe

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/monitoring"
)

// engine is the strategy interface behind the denoise and decimate
// processors. The capability split is decided once, at construction: the full
// engine implements the advanced surface algorithms, the basic engine
// substitutes the cheap repairs the pipeline falls back to when advanced
// processing is disabled (very large scans, constrained workers). Call sites
// never branch on capability themselves.
type engine interface {
	Name() string
	SmoothGaussian(m *mesh.Mesh, sigma float64, iterations int) *mesh.Mesh
	SmoothBilateral(m *mesh.Mesh, sigmaS, sigmaR float64, iterations int) *mesh.Mesh
	RemoveStatisticalOutliers(m *mesh.Mesh, nbNeighbors int, stdRatio float64) *mesh.Mesh
	VoxelDownsample(m *mesh.Mesh, voxelSize float64) *mesh.Mesh
	StrideDecimate(m *mesh.Mesh, targetVertices int) *mesh.Mesh
	Cleanup(m *mesh.Mesh) *mesh.Mesh
}

// newEngine selects the engine implementation. advanced=false yields the
// fallback engine.
func newEngine(advanced bool) engine {
	if advanced {
		return &fullEngine{}
	}
	monitoring.Logf("[Engine] Advanced geometry disabled, using fallback algorithms")
	return &basicEngine{}
}

// ---------------------------------------------------------------------------
// Shared mesh helpers
// ---------------------------------------------------------------------------

// vertexAdjacency returns, per vertex, the sorted-unique set of vertices it
// shares an edge with.
func vertexAdjacency(m *mesh.Mesh) [][]int {
	adj := make([]map[int]bool, len(m.Vertices))
	link := func(a, b int) {
		if adj[a] == nil {
			adj[a] = make(map[int]bool, 6)
		}
		adj[a][b] = true
	}
	for _, f := range m.Faces {
		link(f[0], f[1])
		link(f[1], f[0])
		link(f[1], f[2])
		link(f[2], f[1])
		link(f[2], f[0])
		link(f[0], f[2])
	}
	out := make([][]int, len(m.Vertices))
	for i, set := range adj {
		for v := range set {
			out[i] = append(out[i], v)
		}
	}
	return out
}

// filterVertices keeps only the vertices the predicate accepts, drops every
// face referencing a removed vertex, and reindexes. Normals follow their
// vertices.
func filterVertices(m *mesh.Mesh, keep func(i int, v [3]float64) bool) *mesh.Mesh {
	remap := make([]int, len(m.Vertices))
	out := &mesh.Mesh{}
	hasVN := len(m.VertexNormals) == len(m.Vertices)
	for i, v := range m.Vertices {
		if keep(i, v) {
			remap[i] = len(out.Vertices)
			out.Vertices = append(out.Vertices, v)
			if hasVN {
				out.VertexNormals = append(out.VertexNormals, m.VertexNormals[i])
			}
		} else {
			remap[i] = -1
		}
	}
	for _, f := range m.Faces {
		a, b, c := remap[f[0]], remap[f[1]], remap[f[2]]
		if a >= 0 && b >= 0 && c >= 0 {
			out.Faces = append(out.Faces, [3]int{a, b, c})
		}
	}
	return out
}

func gaussianWeight(d2, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	return math.Exp(-d2 / (2 * sigma * sigma))
}

func dist2(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}

// ---------------------------------------------------------------------------
// Full engine
// ---------------------------------------------------------------------------

// fullEngine implements the advanced surface algorithms directly on the
// indexed mesh connectivity.
type fullEngine struct{}

func (e *fullEngine) Name() string { return "full" }

// SmoothGaussian applies iterative Laplacian smoothing with a Gaussian
// distance kernel over one-ring neighborhoods.
func (e *fullEngine) SmoothGaussian(m *mesh.Mesh, sigma float64, iterations int) *mesh.Mesh {
	if iterations < 1 {
		iterations = 1
	}
	out := m.Clone()
	adj := vertexAdjacency(out)
	for it := 0; it < iterations; it++ {
		next := make([][3]float64, len(out.Vertices))
		for i, v := range out.Vertices {
			if len(adj[i]) == 0 {
				next[i] = v
				continue
			}
			var sum [3]float64
			var wsum float64
			for _, j := range adj[i] {
				n := out.Vertices[j]
				w := gaussianWeight(dist2(v, n), sigma)
				sum[0] += w * n[0]
				sum[1] += w * n[1]
				sum[2] += w * n[2]
				wsum += w
			}
			if wsum == 0 {
				next[i] = v
				continue
			}
			// Blend halfway toward the weighted neighborhood mean.
			next[i] = [3]float64{
				0.5*v[0] + 0.5*sum[0]/wsum,
				0.5*v[1] + 0.5*sum[1]/wsum,
				0.5*v[2] + 0.5*sum[2]/wsum,
			}
		}
		out.Vertices = next
	}
	out.ComputeVertexNormals()
	return out
}

// SmoothBilateral applies normal-aware bilateral smoothing: vertices move
// along their normal by a displacement weighted both by spatial distance
// (sigmaS) and by the normal-projected offset (sigmaR), which preserves
// cusps and margins better than plain Laplacian smoothing.
func (e *fullEngine) SmoothBilateral(m *mesh.Mesh, sigmaS, sigmaR float64, iterations int) *mesh.Mesh {
	if iterations < 1 {
		iterations = 1
	}
	out := m.Clone()
	adj := vertexAdjacency(out)
	for it := 0; it < iterations; it++ {
		out.ComputeVertexNormals()
		next := make([][3]float64, len(out.Vertices))
		for i, v := range out.Vertices {
			n := out.VertexNormals[i]
			if len(adj[i]) == 0 {
				next[i] = v
				continue
			}
			var dsum, wsum float64
			for _, j := range adj[i] {
				p := out.Vertices[j]
				offset := [3]float64{p[0] - v[0], p[1] - v[1], p[2] - v[2]}
				h := offset[0]*n[0] + offset[1]*n[1] + offset[2]*n[2]
				w := gaussianWeight(dist2(v, p), sigmaS) * gaussianWeight(h*h, sigmaR)
				dsum += w * h
				wsum += w
			}
			if wsum == 0 {
				next[i] = v
				continue
			}
			d := dsum / wsum
			next[i] = [3]float64{v[0] + d*n[0], v[1] + d*n[1], v[2] + d*n[2]}
		}
		out.Vertices = next
	}
	out.ComputeVertexNormals()
	return out
}

// RemoveStatisticalOutliers drops vertices whose mean neighbor distance
// exceeds mean + stdRatio*std over the whole mesh, then drops the faces that
// referenced them.
func (e *fullEngine) RemoveStatisticalOutliers(m *mesh.Mesh, nbNeighbors int, stdRatio float64) *mesh.Mesh {
	if nbNeighbors < 1 {
		nbNeighbors = 1
	}
	adj := vertexAdjacency(m)
	meanDist := make([]float64, len(m.Vertices))
	for i, v := range m.Vertices {
		neighbors := adj[i]
		if len(neighbors) == 0 {
			continue
		}
		if len(neighbors) > nbNeighbors {
			neighbors = neighbors[:nbNeighbors]
		}
		sum := 0.0
		for _, j := range neighbors {
			sum += math.Sqrt(dist2(v, m.Vertices[j]))
		}
		meanDist[i] = sum / float64(len(neighbors))
	}

	mu := stat.Mean(meanDist, nil)
	sigma := stat.StdDev(meanDist, nil)
	threshold := mu + stdRatio*sigma

	out := filterVertices(m, func(i int, _ [3]float64) bool {
		return meanDist[i] <= threshold
	})
	if out.IsEmpty() {
		return m.Clone()
	}
	return out
}

// VoxelDownsample quantizes vertices onto a regular grid of voxelSize,
// merges each cell to its centroid, and rebuilds the face list. Faces that
// collapse within a cell are dropped. A result with no faces returns the
// input unchanged.
func (e *fullEngine) VoxelDownsample(m *mesh.Mesh, voxelSize float64) *mesh.Mesh {
	if voxelSize <= 0 || m.IsEmpty() {
		return m.Clone()
	}
	min, _ := m.Bounds()

	type cell struct {
		sum   [3]float64
		count int
		index int
	}
	cells := make(map[[3]int]*cell)
	cellFor := make([]*cell, len(m.Vertices))
	for i, v := range m.Vertices {
		key := [3]int{
			int(math.Floor((v[0] - min[0]) / voxelSize)),
			int(math.Floor((v[1] - min[1]) / voxelSize)),
			int(math.Floor((v[2] - min[2]) / voxelSize)),
		}
		c, ok := cells[key]
		if !ok {
			c = &cell{index: -1}
			cells[key] = c
		}
		c.sum[0] += v[0]
		c.sum[1] += v[1]
		c.sum[2] += v[2]
		c.count++
		cellFor[i] = c
	}

	out := &mesh.Mesh{}
	vertexFor := func(c *cell) int {
		if c.index < 0 {
			c.index = len(out.Vertices)
			n := float64(c.count)
			out.Vertices = append(out.Vertices, [3]float64{c.sum[0] / n, c.sum[1] / n, c.sum[2] / n})
		}
		return c.index
	}
	for _, f := range m.Faces {
		a := vertexFor(cellFor[f[0]])
		b := vertexFor(cellFor[f[1]])
		c := vertexFor(cellFor[f[2]])
		if a == b || b == c || c == a {
			continue
		}
		out.Faces = append(out.Faces, [3]int{a, b, c})
	}
	if len(out.Faces) == 0 {
		return m.Clone()
	}
	return out
}

// StrideDecimate keeps every Nth vertex and drops faces that referenced a
// removed vertex, approximating quadric decimation at a fraction of the cost.
// A reduction that degenerates to zero faces returns the input unchanged.
func (e *fullEngine) StrideDecimate(m *mesh.Mesh, targetVertices int) *mesh.Mesh {
	return strideDecimate(m, targetVertices)
}

// Cleanup welds duplicate vertices, drops degenerate faces and recomputes
// normals.
func (e *fullEngine) Cleanup(m *mesh.Mesh) *mesh.Mesh {
	return cleanupMesh(m)
}

// ---------------------------------------------------------------------------
// Basic engine
// ---------------------------------------------------------------------------

// basicEngine approximates every advanced operation with the cheap fallbacks:
// smoothing and outlier removal degrade to structural cleanup, and voxel
// downsampling degrades to index striding. Every output is still a valid,
// non-empty mesh.
type basicEngine struct{}

func (e *basicEngine) Name() string { return "basic" }

func (e *basicEngine) SmoothGaussian(m *mesh.Mesh, _ float64, _ int) *mesh.Mesh {
	return cleanupMesh(m)
}

func (e *basicEngine) SmoothBilateral(m *mesh.Mesh, _, _ float64, _ int) *mesh.Mesh {
	return cleanupMesh(m)
}

func (e *basicEngine) RemoveStatisticalOutliers(m *mesh.Mesh, _ int, _ float64) *mesh.Mesh {
	return cleanupMesh(m)
}

func (e *basicEngine) VoxelDownsample(m *mesh.Mesh, _ float64) *mesh.Mesh {
	return strideDecimate(m, len(m.Vertices)/2)
}

func (e *basicEngine) StrideDecimate(m *mesh.Mesh, targetVertices int) *mesh.Mesh {
	return strideDecimate(m, targetVertices)
}

func (e *basicEngine) Cleanup(m *mesh.Mesh) *mesh.Mesh {
	return cleanupMesh(m)
}

// strideDecimate is the shared keep-every-Nth-vertex reduction.
func strideDecimate(m *mesh.Mesh, targetVertices int) *mesh.Mesh {
	if targetVertices <= 0 {
		targetVertices = len(m.Vertices) / 2
	}
	if targetVertices >= len(m.Vertices) || len(m.Vertices) == 0 {
		return m.Clone()
	}
	step := len(m.Vertices) / targetVertices
	if step < 1 {
		step = 1
	}
	out := filterVertices(m, func(i int, _ [3]float64) bool {
		return i%step == 0
	})
	if out.IsEmpty() {
		return m.Clone()
	}
	return out
}

// cleanupMesh is the shared structural repair: weld exact duplicates, drop
// degenerate faces, recompute normals.
func cleanupMesh(m *mesh.Mesh) *mesh.Mesh {
	out := m.Clone()

	// Weld exact duplicates.
	remap := make([]int, len(out.Vertices))
	seen := make(map[[3]float64]int, len(out.Vertices))
	var verts [][3]float64
	for i, v := range out.Vertices {
		if j, ok := seen[v]; ok {
			remap[i] = j
			continue
		}
		seen[v] = len(verts)
		remap[i] = len(verts)
		verts = append(verts, v)
	}

	welded := &mesh.Mesh{Vertices: verts}
	for _, f := range out.Faces {
		nf := [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
		if nf[0] == nf[1] || nf[1] == nf[2] || nf[2] == nf[0] {
			continue
		}
		welded.Faces = append(welded.Faces, nf)
	}

	// Drop degenerate faces.
	var faces [][3]int
	for i := range welded.Faces {
		if welded.FaceArea(i) >= mesh.DegenerateAreaEpsilon {
			faces = append(faces, welded.Faces[i])
		}
	}
	if len(faces) == 0 {
		return m.Clone()
	}
	welded.Faces = faces
	welded.ComputeVertexNormals()
	return welded
}
