package meshpipe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/sysmem"
)

// Processor is one pipeline step: a parameterized transformation producing a
// new mesh plus metrics. Implementations never mutate their input and never
// swallow errors; failures propagate to the orchestrator.
type Processor interface {
	// Step returns the step kind this processor implements.
	Step() Step

	// Process applies the configured algorithm and returns the output mesh
	// with metrics for the transformation.
	Process(m *mesh.Mesh) (*mesh.Mesh, Metrics, error)

	// CacheKey returns the deterministic content key for running this step's
	// configuration against the given input mesh.
	CacheKey(m *mesh.Mesh) string
}

// NewProcessor builds the processor for a step configuration. The second
// return is false for declared steps that have no implementation yet
// (hole_fill); the orchestrator logs and skips those rather than aborting.
func NewProcessor(cfg StepConfig, eng engine) (Processor, bool) {
	switch cfg.Step {
	case StepDenoise:
		return &DenoiseProcessor{cfg: cfg, eng: eng}, true
	case StepDecimate:
		return &DecimateProcessor{cfg: cfg, eng: eng}, true
	case StepAlignment:
		return &AlignProcessor{cfg: cfg}, true
	case StepRoiCrop:
		return &RoiCropProcessor{cfg: cfg}, true
	case StepArchIsolate:
		return &ArchIsolateProcessor{cfg: cfg}, true
	case StepHoleFill:
		// Declared step without a codec: poisson/ball-pivoting/alpha-shape
		// reconstruction is not implemented.
		return nil, false
	}
	return nil, false
}

// cacheKey derives the content hash for a step invocation from the input
// mesh's vertex and face counts, the algorithm, and the sorted-JSON
// parameters. The actual vertex data is deliberately not hashed: two meshes
// with matching counts and parameters share a key. See DESIGN.md.
func cacheKey(m *mesh.Mesh, algo Algorithm, params map[string]any) string {
	paramJSON, err := json.Marshal(params)
	if err != nil {
		paramJSON = []byte("{}")
	}
	content := fmt.Sprintf("%d_%d_%s_%s", m.VertexCount(), m.FaceCount(), algo, paramJSON)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// stepMetrics assembles the standard before/after metrics for a step.
func stepMetrics(in, out *mesh.Mesh, seconds float64) Metrics {
	return Metrics{
		InputVertices:  in.VertexCount(),
		InputFaces:     in.FaceCount(),
		OutputVertices: out.VertexCount(),
		OutputFaces:    out.FaceCount(),
		ProcessingTime: seconds,
		MemoryUsageMB:  sysmem.ProcessMB(),
	}
}
