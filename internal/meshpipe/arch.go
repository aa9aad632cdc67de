package meshpipe

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/monitoring"
)

// Default clustering parameters for arch isolation. Eps scales with the mesh
// when not given explicitly.
const (
	archDefaultMinPoints   = 10
	archDefaultEpsFraction = 0.05 // of the max bounding-box extent
)

// ArchIsolateProcessor separates the tooth arch from gum and scan artifacts.
// Curvature-based segmentation keeps the largest connected high-curvature
// region; clustering segmentation keeps the dominant spatial cluster.
// Machine-learning segmentation is declared but not supported.
type ArchIsolateProcessor struct {
	cfg StepConfig
}

// Step returns StepArchIsolate.
func (p *ArchIsolateProcessor) Step() Step { return StepArchIsolate }

// Process applies the configured segmentation algorithm.
func (p *ArchIsolateProcessor) Process(m *mesh.Mesh) (*mesh.Mesh, Metrics, error) {
	start := time.Now()

	var out *mesh.Mesh
	var curvatureStats map[string]float64
	switch p.cfg.Algorithm {
	case AlgoCurvatureSegmentation:
		out, curvatureStats = curvatureSegment(m, p.cfg.Parameters)
	case AlgoClusteringSegmentation:
		out = clusterSegment(m, p.cfg.Parameters)
	case AlgoMLSegmentation:
		return nil, Metrics{}, &UnsupportedAlgorithmError{Step: StepArchIsolate, Algorithm: p.cfg.Algorithm}
	default:
		return nil, Metrics{}, &UnsupportedAlgorithmError{Step: StepArchIsolate, Algorithm: p.cfg.Algorithm}
	}

	metrics := stepMetrics(m, out, time.Since(start).Seconds())
	metrics.CurvatureStats = curvatureStats
	if m.FaceCount() > 0 {
		q := float64(out.FaceCount()) / float64(m.FaceCount())
		metrics.QualityScore = &q
	}
	return out, metrics, nil
}

// CacheKey derives the content key for this step against the input mesh.
func (p *ArchIsolateProcessor) CacheKey(m *mesh.Mesh) string {
	return cacheKey(m, p.cfg.Algorithm, p.cfg.Parameters)
}

// vertexCurvature approximates per-vertex curvature as the mean normal
// deviation from one-ring neighbors, in [0,1].
func vertexCurvature(m *mesh.Mesh, adj [][]int) []float64 {
	work := m.Clone()
	work.ComputeVertexNormals()
	curv := make([]float64, len(work.Vertices))
	for i := range work.Vertices {
		if len(adj[i]) == 0 {
			continue
		}
		ni := work.VertexNormals[i]
		sum := 0.0
		for _, j := range adj[i] {
			nj := work.VertexNormals[j]
			d := ni[0]*nj[0] + ni[1]*nj[1] + ni[2]*nj[2]
			sum += (1 - d) / 2
		}
		curv[i] = sum / float64(len(adj[i]))
	}
	return curv
}

// curvatureSegment keeps the largest connected component of vertices whose
// curvature is at or above the threshold (default: the mesh mean). Returns
// the input unchanged when nothing qualifies.
func curvatureSegment(m *mesh.Mesh, params map[string]any) (*mesh.Mesh, map[string]float64) {
	adj := vertexAdjacency(m)
	curv := vertexCurvature(m, adj)

	mean := stat.Mean(curv, nil)
	std := stat.StdDev(curv, nil)
	minC, maxC := math.Inf(1), math.Inf(-1)
	for _, c := range curv {
		if c < minC {
			minC = c
		}
		if c > maxC {
			maxC = c
		}
	}
	stats := map[string]float64{"mean": mean, "std": std, "min": minC, "max": maxC}

	threshold := floatParam(params, "curvature_threshold", mean)
	selected := make([]bool, len(curv))
	any := false
	for i, c := range curv {
		if c >= threshold {
			selected[i] = true
			any = true
		}
	}
	if !any {
		monitoring.Logf("[ArchIsolate] No vertices above curvature threshold %.4f, keeping full mesh", threshold)
		return m.Clone(), stats
	}

	component := largestComponent(len(curv), selected, adj)
	out := filterVertices(m, func(i int, _ [3]float64) bool { return component[i] })
	if out.IsEmpty() {
		return m.Clone(), stats
	}
	return out, stats
}

// largestComponent finds the biggest connected component of selected
// vertices under the adjacency relation.
func largestComponent(n int, selected []bool, adj [][]int) []bool {
	visited := make([]bool, n)
	best := make([]bool, n)
	bestSize := 0
	queue := make([]int, 0, n)

	for s := 0; s < n; s++ {
		if !selected[s] || visited[s] {
			continue
		}
		current := make([]int, 0, 64)
		queue = append(queue[:0], s)
		visited[s] = true
		for len(queue) > 0 {
			v := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			current = append(current, v)
			for _, w := range adj[v] {
				if selected[w] && !visited[w] {
					visited[w] = true
					queue = append(queue, w)
				}
			}
		}
		if len(current) > bestSize {
			bestSize = len(current)
			for i := range best {
				best[i] = false
			}
			for _, v := range current {
				best[v] = true
			}
		}
	}
	return best
}

// clusterSegment runs density-based clustering over the vertices and keeps
// the dominant cluster. Returns the input unchanged when no cluster forms.
func clusterSegment(m *mesh.Mesh, params map[string]any) *mesh.Mesh {
	eps := floatParam(params, "eps", m.MaxExtent()*archDefaultEpsFraction)
	minPts := intParam(params, "min_points", archDefaultMinPoints)
	if eps <= 0 || m.VertexCount() == 0 {
		return m.Clone()
	}

	labels := dbscan(m.Vertices, eps, minPts)
	counts := map[int]int{}
	for _, l := range labels {
		if l > 0 {
			counts[l]++
		}
	}
	bestLabel, bestCount := 0, 0
	for l, c := range counts {
		if c > bestCount {
			bestLabel, bestCount = l, c
		}
	}
	if bestLabel == 0 {
		monitoring.Logf("[ArchIsolate] Clustering found no cluster (eps=%.3f minPts=%d), keeping full mesh", eps, minPts)
		return m.Clone()
	}

	out := filterVertices(m, func(i int, _ [3]float64) bool { return labels[i] == bestLabel })
	if out.IsEmpty() {
		return m.Clone()
	}
	return out
}

// voxelIndex provides neighbor queries over a regular 3D grid with cell size
// matching the DBSCAN eps.
type voxelIndex struct {
	cellSize float64
	grid     map[[3]int][]int
}

func newVoxelIndex(points [][3]float64, cellSize float64) *voxelIndex {
	vi := &voxelIndex{cellSize: cellSize, grid: make(map[[3]int][]int, len(points)/4)}
	for i, p := range points {
		vi.grid[vi.cellOf(p)] = append(vi.grid[vi.cellOf(p)], i)
	}
	return vi
}

func (vi *voxelIndex) cellOf(p [3]float64) [3]int {
	return [3]int{
		int(math.Floor(p[0] / vi.cellSize)),
		int(math.Floor(p[1] / vi.cellSize)),
		int(math.Floor(p[2] / vi.cellSize)),
	}
}

// regionQuery returns indices of all points within eps of points[idx],
// searching the 3x3x3 cell neighborhood.
func (vi *voxelIndex) regionQuery(points [][3]float64, idx int, eps float64) []int {
	p := points[idx]
	base := vi.cellOf(p)
	eps2 := eps * eps
	var neighbors []int
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				cell := [3]int{base[0] + dx, base[1] + dy, base[2] + dz}
				for _, ci := range vi.grid[cell] {
					if dist2(points[ci], p) <= eps2 {
						neighbors = append(neighbors, ci)
					}
				}
			}
		}
	}
	return neighbors
}

// dbscan labels points with cluster IDs: 0 unvisited is never returned, -1
// is noise, positive values are cluster IDs.
func dbscan(points [][3]float64, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n) // 0=unvisited, -1=noise, >0=clusterID
	clusterID := 0

	index := newVoxelIndex(points, eps)
	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}
		neighbors := index.regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = -1
			continue
		}
		clusterID++
		labels[i] = clusterID
		// Queue-based expansion from the core point.
		for j := 0; j < len(neighbors); j++ {
			idx := neighbors[j]
			if labels[idx] == -1 {
				labels[idx] = clusterID // noise becomes border point
			}
			if labels[idx] != 0 {
				continue
			}
			labels[idx] = clusterID
			next := index.regionQuery(points, idx, eps)
			if len(next) >= minPts {
				neighbors = append(neighbors, next...)
			}
		}
	}
	return labels
}
