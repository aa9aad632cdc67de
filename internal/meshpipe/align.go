package meshpipe

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/monitoring"
)

// ICP defaults. Distances are in mesh units (millimetres after
// normalization).
const (
	icpDefaultMaxIterations = 50
	icpDefaultConvergence   = 1e-5
	icpDefaultMaxCorrespond = 10.0
	icpDefaultSamplePoints  = 1000
)

// AlignProcessor registers the scan into a reference pose. ICP aligns against
// a target mesh, landmark alignment solves the rigid transform between paired
// landmarks, and feature-based alignment canonicalizes the principal axes.
type AlignProcessor struct {
	cfg StepConfig
}

// Step returns StepAlignment.
func (p *AlignProcessor) Step() Step { return StepAlignment }

// Process applies the configured alignment algorithm.
func (p *AlignProcessor) Process(m *mesh.Mesh) (*mesh.Mesh, Metrics, error) {
	start := time.Now()
	params := p.cfg.Parameters

	var out *mesh.Mesh
	var err error
	switch p.cfg.Algorithm {
	case AlgoICPAlignment:
		out, err = p.icpAlign(m, params)
	case AlgoLandmarkAlignment:
		out, err = p.landmarkAlign(m, params)
	case AlgoFeatureBasedAlignment:
		out = pcaAlign(m)
	default:
		return nil, Metrics{}, &UnsupportedAlgorithmError{Step: StepAlignment, Algorithm: p.cfg.Algorithm}
	}
	if err != nil {
		return nil, Metrics{}, err
	}

	return out, stepMetrics(m, out, time.Since(start).Seconds()), nil
}

// CacheKey derives the content key for this step against the input mesh.
func (p *AlignProcessor) CacheKey(m *mesh.Mesh) string {
	return cacheKey(m, p.cfg.Algorithm, p.cfg.Parameters)
}

// rigid is a rotation + translation pair.
type rigid struct {
	r [3][3]float64
	t [3]float64
}

func identityRigid() rigid {
	return rigid{r: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

func (g rigid) apply(v [3]float64) [3]float64 {
	return [3]float64{
		g.r[0][0]*v[0] + g.r[0][1]*v[1] + g.r[0][2]*v[2] + g.t[0],
		g.r[1][0]*v[0] + g.r[1][1]*v[1] + g.r[1][2]*v[2] + g.t[1],
		g.r[2][0]*v[0] + g.r[2][1]*v[1] + g.r[2][2]*v[2] + g.t[2],
	}
}

// compose returns h∘g: apply g first, then h.
func (h rigid) compose(g rigid) rigid {
	var out rigid
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.r[i][j] += h.r[i][k] * g.r[k][j]
			}
		}
		out.t[i] = h.r[i][0]*g.t[0] + h.r[i][1]*g.t[1] + h.r[i][2]*g.t[2] + h.t[i]
	}
	return out
}

// applyRigid returns a copy of the mesh with the transform applied to
// vertices. Normals are recomputed.
func applyRigid(m *mesh.Mesh, g rigid) *mesh.Mesh {
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = g.apply(v)
	}
	if out.HasNormals() {
		out.ComputeVertexNormals()
		out.ComputeFaceNormals()
	}
	return out
}

// icpAlign runs point-to-point ICP against the target mesh named by the
// target_path parameter.
func (p *AlignProcessor) icpAlign(m *mesh.Mesh, params map[string]any) (*mesh.Mesh, error) {
	targetPath := stringParam(params, "target_path", "")
	if targetPath == "" {
		return nil, fmt.Errorf("icp_alignment requires a target_path parameter")
	}
	target, err := mesh.NewLoader(0).Load(targetPath)
	if err != nil {
		return nil, fmt.Errorf("loading icp target: %w", err)
	}

	maxIter := intParam(params, "max_iterations", icpDefaultMaxIterations)
	convergence := floatParam(params, "convergence_threshold", icpDefaultConvergence)
	maxDist := floatParam(params, "max_correspondence_distance", icpDefaultMaxCorrespond)
	samples := intParam(params, "sample_points", icpDefaultSamplePoints)

	src := samplePoints(m.Vertices, samples)
	tgt := samplePoints(target.Vertices, samples)
	if len(src) < 3 || len(tgt) < 3 {
		return nil, fmt.Errorf("icp_alignment needs at least 3 points on each side")
	}

	total := identityRigid()
	working := append([][3]float64(nil), src...)
	prevErr := math.MaxFloat64
	iterations := 0
	for ; iterations < maxIter; iterations++ {
		pairsSrc, pairsTgt, meanErr := correspond(working, tgt, maxDist)
		if len(pairsSrc) < 3 {
			break
		}
		step, ok := kabsch(pairsSrc, pairsTgt)
		if !ok {
			break
		}
		total = step.compose(total)
		for i, v := range working {
			working[i] = step.apply(v)
		}
		if math.Abs(prevErr-meanErr) < convergence {
			prevErr = meanErr
			iterations++
			break
		}
		prevErr = meanErr
	}

	if prevErr == math.MaxFloat64 {
		monitoring.Logf("[Align] ICP found no usable correspondences within %.2f, keeping input pose", maxDist)
	} else {
		monitoring.Logf("[Align] ICP finished after %d iterations, mean error %.4f", iterations, prevErr)
	}
	return applyRigid(m, total), nil
}

// landmarkAlign solves the rigid transform mapping source_landmarks onto
// target_landmarks and applies it to the mesh.
func (p *AlignProcessor) landmarkAlign(m *mesh.Mesh, params map[string]any) (*mesh.Mesh, error) {
	src := pointsParam(params, "source_landmarks")
	tgt := pointsParam(params, "target_landmarks")
	if len(src) < 3 || len(src) != len(tgt) {
		return nil, fmt.Errorf("landmark_alignment requires matching source_landmarks and target_landmarks with at least 3 pairs")
	}
	g, ok := kabsch(src, tgt)
	if !ok {
		return nil, fmt.Errorf("landmark_alignment: degenerate landmark configuration")
	}
	return applyRigid(m, g), nil
}

// pcaAlign rotates the mesh so its principal axes coincide with x/y/z
// (largest spread along x) and centers it at the origin.
func pcaAlign(m *mesh.Mesh) *mesh.Mesh {
	com := m.CenterOfMass()
	n := float64(len(m.Vertices))
	var cov [3][3]float64
	for _, v := range m.Vertices {
		d := [3]float64{v[0] - com[0], v[1] - com[1], v[2] - com[2]}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cov[i][j] += d[i] * d[j] / n
			}
		}
	}

	sym := mat.NewSymDense(3, []float64{
		cov[0][0], cov[0][1], cov[0][2],
		cov[1][0], cov[1][1], cov[1][2],
		cov[2][0], cov[2][1], cov[2][2],
	})
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return m.Clone()
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// EigenSym orders eigenvalues ascending; reverse so axis 0 carries the
	// largest spread.
	var g rigid
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			g.r[row][col] = vecs.At(col, 2-row)
		}
	}
	// Keep the rotation right-handed.
	if det3(g.r) < 0 {
		for col := 0; col < 3; col++ {
			g.r[2][col] = -g.r[2][col]
		}
	}
	rc := g.apply(com)
	g.t = [3]float64{-rc[0], -rc[1], -rc[2]}
	return applyRigid(m, g)
}

// samplePoints takes an evenly strided subset of at most n points.
func samplePoints(points [][3]float64, n int) [][3]float64 {
	if n <= 0 || len(points) <= n {
		return points
	}
	step := len(points) / n
	out := make([][3]float64, 0, n)
	for i := 0; i < len(points) && len(out) < n; i += step {
		out = append(out, points[i])
	}
	return out
}

// correspond pairs each source point with its nearest target point within
// maxDist and returns the mean pair distance.
func correspond(src, tgt [][3]float64, maxDist float64) (ps, pt [][3]float64, meanErr float64) {
	maxD2 := maxDist * maxDist
	sum := 0.0
	for _, s := range src {
		best := -1
		bestD2 := maxD2
		for j, t := range tgt {
			if d2 := dist2(s, t); d2 < bestD2 {
				bestD2 = d2
				best = j
			}
		}
		if best >= 0 {
			ps = append(ps, s)
			pt = append(pt, tgt[best])
			sum += math.Sqrt(bestD2)
		}
	}
	if len(ps) > 0 {
		meanErr = sum / float64(len(ps))
	}
	return ps, pt, meanErr
}

// kabsch solves the least-squares rigid transform mapping src onto tgt using
// the SVD of the cross-covariance matrix.
func kabsch(src, tgt [][3]float64) (rigid, bool) {
	n := float64(len(src))
	var cs, ct [3]float64
	for i := range src {
		for k := 0; k < 3; k++ {
			cs[k] += src[i][k] / n
			ct[k] += tgt[i][k] / n
		}
	}

	h := mat.NewDense(3, 3, nil)
	for i := range src {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+(src[i][r]-cs[r])*(tgt[i][c]-ct[c]))
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return rigid{}, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		// Reflection: flip the axis of the smallest singular value.
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var vd mat.Dense
		vd.Mul(&v, d)
		r.Mul(&vd, u.T())
	}

	var g rigid
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g.r[i][j] = r.At(i, j)
		}
	}
	rc := [3]float64{
		g.r[0][0]*cs[0] + g.r[0][1]*cs[1] + g.r[0][2]*cs[2],
		g.r[1][0]*cs[0] + g.r[1][1]*cs[1] + g.r[1][2]*cs[2],
		g.r[2][0]*cs[0] + g.r[2][1]*cs[1] + g.r[2][2]*cs[2],
	}
	g.t = [3]float64{ct[0] - rc[0], ct[1] - rc[1], ct[2] - rc[2]}
	return g, true
}

func det3(r [3][3]float64) float64 {
	return r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
}
