package meshpipe

import (
	"time"

	"github.com/scanforge-data/scanforge/internal/mesh"
)

// DecimateProcessor reduces vertex and face counts while approximating the
// original shape. Voxel downsampling merges vertices on a regular grid;
// uniform downsampling keeps every Nth vertex. Either way the result is
// guaranteed non-empty: a reduction that would drop every face returns the
// input unchanged.
type DecimateProcessor struct {
	cfg StepConfig
	eng engine
}

// Step returns StepDecimate.
func (p *DecimateProcessor) Step() Step { return StepDecimate }

// Process applies the configured decimation algorithm.
func (p *DecimateProcessor) Process(m *mesh.Mesh) (*mesh.Mesh, Metrics, error) {
	start := time.Now()
	params := p.cfg.Parameters

	var out *mesh.Mesh
	switch p.cfg.Algorithm {
	case AlgoVoxelDownSample:
		voxelSize := floatParam(params, "voxel_size", 0.05)
		out = p.eng.VoxelDownsample(m, voxelSize)
	case AlgoUniformDownSample:
		target := intParam(params, "target_vertices", m.VertexCount()/2)
		out = p.eng.StrideDecimate(m, target)
	default:
		return nil, Metrics{}, &UnsupportedAlgorithmError{Step: StepDecimate, Algorithm: p.cfg.Algorithm}
	}

	metrics := stepMetrics(m, out, time.Since(start).Seconds())
	// Quality: how much of the surface area survived the reduction.
	if inArea := m.SurfaceArea(); inArea > 0 {
		q := out.SurfaceArea() / inArea
		if q > 1 {
			q = 1
		}
		metrics.QualityScore = &q
	}
	return out, metrics, nil
}

// CacheKey derives the content key for this step against the input mesh.
func (p *DecimateProcessor) CacheKey(m *mesh.Mesh) string {
	return cacheKey(m, p.cfg.Algorithm, p.cfg.Parameters)
}
