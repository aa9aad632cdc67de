package meshpipe

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metrics captures the outcome of one pipeline step: size before and after,
// wall-clock time, and a memory snapshot taken at measurement time. The
// reduction ratios are derived, never stored.
type Metrics struct {
	InputVertices  int                `json:"input_vertices"`
	InputFaces     int                `json:"input_faces"`
	OutputVertices int                `json:"output_vertices"`
	OutputFaces    int                `json:"output_faces"`
	ProcessingTime float64            `json:"processing_time"` // seconds
	MemoryUsageMB  float64            `json:"memory_usage_mb"`
	QualityScore   *float64           `json:"quality_score"`
	CurvatureStats map[string]float64 `json:"curvature_stats"`
}

// VertexReductionRatio returns the fraction of vertices removed by the step,
// 0 when the input was empty.
func (m Metrics) VertexReductionRatio() float64 {
	if m.InputVertices == 0 {
		return 0
	}
	return float64(m.InputVertices-m.OutputVertices) / float64(m.InputVertices)
}

// FaceReductionRatio returns the fraction of faces removed by the step, 0
// when the input was empty.
func (m Metrics) FaceReductionRatio() float64 {
	if m.InputFaces == 0 {
		return 0
	}
	return float64(m.InputFaces-m.OutputFaces) / float64(m.InputFaces)
}

// RunReport is the sidecar document written next to each processed mesh:
// per-step metrics keyed by step name, plus the cache counters at the time
// the file was written when the run used a cache.
type RunReport struct {
	Steps map[string]Metrics `json:"steps"`
	Cache *CacheStats        `json:"cache,omitempty"`
}

// WriteRunReport writes a run report as indented JSON.
func WriteRunReport(path string, report RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}

// ReadRunReport reads a run report written by WriteRunReport.
func ReadRunReport(path string) (RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunReport{}, fmt.Errorf("reading metrics file: %w", err)
	}
	var out RunReport
	if err := json.Unmarshal(data, &out); err != nil {
		return RunReport{}, fmt.Errorf("decoding metrics file: %w", err)
	}
	return out, nil
}
