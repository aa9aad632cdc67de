package meshpipe

import (
	"fmt"
	"time"

	"github.com/scanforge-data/scanforge/internal/mesh"
)

// RoiCropProcessor restricts the scan to a region of interest. Faces touching
// a removed vertex are dropped and the mesh is reindexed. A crop that removes
// all geometry is an error: downstream steps require a non-empty mesh.
type RoiCropProcessor struct {
	cfg StepConfig
}

// Step returns StepRoiCrop.
func (p *RoiCropProcessor) Step() Step { return StepRoiCrop }

// Process applies the configured crop.
func (p *RoiCropProcessor) Process(m *mesh.Mesh) (*mesh.Mesh, Metrics, error) {
	start := time.Now()
	params := p.cfg.Parameters

	var out *mesh.Mesh
	switch p.cfg.Algorithm {
	case AlgoBoundingBoxCrop:
		defMin, defMax := m.Bounds()
		lo := vec3Param(params, "min", defMin)
		hi := vec3Param(params, "max", defMax)
		out = filterVertices(m, func(_ int, v [3]float64) bool {
			return v[0] >= lo[0] && v[0] <= hi[0] &&
				v[1] >= lo[1] && v[1] <= hi[1] &&
				v[2] >= lo[2] && v[2] <= hi[2]
		})
	case AlgoSphericalCrop:
		center := vec3Param(params, "center", m.CenterOfMass())
		radius := floatParam(params, "radius", m.MaxExtent()/2)
		r2 := radius * radius
		out = filterVertices(m, func(_ int, v [3]float64) bool {
			return dist2(v, center) <= r2
		})
	case AlgoPlanarCrop:
		point := vec3Param(params, "point", m.CenterOfMass())
		normal := vec3Param(params, "normal", [3]float64{0, 0, 1})
		out = filterVertices(m, func(_ int, v [3]float64) bool {
			d := (v[0]-point[0])*normal[0] + (v[1]-point[1])*normal[1] + (v[2]-point[2])*normal[2]
			return d >= 0
		})
	default:
		return nil, Metrics{}, &UnsupportedAlgorithmError{Step: StepRoiCrop, Algorithm: p.cfg.Algorithm}
	}

	if out.IsEmpty() {
		return nil, Metrics{}, fmt.Errorf("roi_crop %s removed all geometry", p.cfg.Algorithm)
	}
	return out, stepMetrics(m, out, time.Since(start).Seconds()), nil
}

// CacheKey derives the content key for this step against the input mesh.
func (p *RoiCropProcessor) CacheKey(m *mesh.Mesh) string {
	return cacheKey(m, p.cfg.Algorithm, p.cfg.Parameters)
}
