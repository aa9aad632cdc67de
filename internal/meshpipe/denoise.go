package meshpipe

import (
	"time"

	"github.com/scanforge-data/scanforge/internal/mesh"
)

// DenoiseProcessor smooths scanner noise out of the surface. Three algorithms
// are supported: bilateral filtering (feature-preserving), Gaussian
// smoothing, and statistical outlier removal. On the fallback engine every
// algorithm degrades to structural cleanup.
type DenoiseProcessor struct {
	cfg StepConfig
	eng engine
}

// Step returns StepDenoise.
func (p *DenoiseProcessor) Step() Step { return StepDenoise }

// Process applies the configured denoising algorithm.
func (p *DenoiseProcessor) Process(m *mesh.Mesh) (*mesh.Mesh, Metrics, error) {
	start := time.Now()
	params := p.cfg.Parameters

	var out *mesh.Mesh
	switch p.cfg.Algorithm {
	case AlgoBilateralFilter:
		sigmaS := floatParam(params, "sigma_s", 1.0)
		sigmaR := floatParam(params, "sigma_r", 0.1)
		iterations := intParam(params, "iterations", 1)
		out = p.eng.SmoothBilateral(m, sigmaS, sigmaR, iterations)
	case AlgoGaussianFilter:
		sigma := floatParam(params, "sigma", 1.0)
		iterations := intParam(params, "iterations", 1)
		out = p.eng.SmoothGaussian(m, sigma, iterations)
	case AlgoStatisticalOutlierRemoval:
		nbNeighbors := intParam(params, "nb_neighbors", 20)
		stdRatio := floatParam(params, "std_ratio", 2.0)
		out = p.eng.RemoveStatisticalOutliers(m, nbNeighbors, stdRatio)
	default:
		return nil, Metrics{}, &UnsupportedAlgorithmError{Step: StepDenoise, Algorithm: p.cfg.Algorithm}
	}

	return out, stepMetrics(m, out, time.Since(start).Seconds()), nil
}

// CacheKey derives the content key for this step against the input mesh.
func (p *DenoiseProcessor) CacheKey(m *mesh.Mesh) string {
	return cacheKey(m, p.cfg.Algorithm, p.cfg.Parameters)
}
