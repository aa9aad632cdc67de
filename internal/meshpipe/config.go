// Package meshpipe implements the configurable mesh pre-processing pipeline:
// step processors, content-addressed caching and orchestration.
package meshpipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Step identifies one pre-processing pipeline stage.
type Step string

// Pipeline steps, in the order a full clinical pipeline applies them.
const (
	StepDenoise     Step = "denoise"
	StepDecimate    Step = "decimate"
	StepHoleFill    Step = "hole_fill"
	StepAlignment   Step = "alignment"
	StepRoiCrop     Step = "roi_crop"
	StepArchIsolate Step = "tooth_arch_isolation"
)

// Algorithm identifies a concrete algorithm within a step.
type Algorithm string

// Algorithms, grouped by the step they belong to.
const (
	// Denoising
	AlgoBilateralFilter           Algorithm = "bilateral_filter"
	AlgoGaussianFilter            Algorithm = "gaussian_filter"
	AlgoStatisticalOutlierRemoval Algorithm = "statistical_outlier_removal"

	// Decimation
	AlgoVoxelDownSample   Algorithm = "voxel_down_sample"
	AlgoUniformDownSample Algorithm = "uniform_down_sample"

	// Hole filling
	AlgoPoissonReconstruction Algorithm = "poisson_reconstruction"
	AlgoBallPivoting          Algorithm = "ball_pivoting"
	AlgoAlphaShape            Algorithm = "alpha_shape"

	// Alignment
	AlgoICPAlignment          Algorithm = "icp_alignment"
	AlgoLandmarkAlignment     Algorithm = "landmark_alignment"
	AlgoFeatureBasedAlignment Algorithm = "feature_based_alignment"

	// ROI cropping
	AlgoBoundingBoxCrop Algorithm = "bounding_box_crop"
	AlgoSphericalCrop   Algorithm = "spherical_crop"
	AlgoPlanarCrop      Algorithm = "planar_crop"

	// Tooth arch isolation
	AlgoCurvatureSegmentation  Algorithm = "curvature_based_segmentation"
	AlgoClusteringSegmentation Algorithm = "clustering_segmentation"
	AlgoMLSegmentation         Algorithm = "machine_learning_segmentation"
)

// stepAlgorithms declares which algorithms are valid for each step.
var stepAlgorithms = map[Step][]Algorithm{
	StepDenoise:     {AlgoBilateralFilter, AlgoGaussianFilter, AlgoStatisticalOutlierRemoval},
	StepDecimate:    {AlgoVoxelDownSample, AlgoUniformDownSample},
	StepHoleFill:    {AlgoPoissonReconstruction, AlgoBallPivoting, AlgoAlphaShape},
	StepAlignment:   {AlgoICPAlignment, AlgoLandmarkAlignment, AlgoFeatureBasedAlignment},
	StepRoiCrop:     {AlgoBoundingBoxCrop, AlgoSphericalCrop, AlgoPlanarCrop},
	StepArchIsolate: {AlgoCurvatureSegmentation, AlgoClusteringSegmentation, AlgoMLSegmentation},
}

// AlgorithmsForStep returns the declared algorithm set for a step.
func AlgorithmsForStep(s Step) []Algorithm {
	return stepAlgorithms[s]
}

// algorithmValidForStep reports whether algo belongs to the step's declared set.
func algorithmValidForStep(s Step, algo Algorithm) bool {
	for _, a := range stepAlgorithms[s] {
		if a == algo {
			return true
		}
	}
	return false
}

// StepConfig configures a single pipeline step.
type StepConfig struct {
	Step         Step           `json:"step" yaml:"step"`
	Algorithm    Algorithm      `json:"algorithm" yaml:"algorithm"`
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	Parameters   map[string]any `json:"parameters" yaml:"parameters"`
	CacheEnabled bool           `json:"cache_enabled" yaml:"cache_enabled"`
}

// Config describes a named, versioned transformation pipeline.
type Config struct {
	Name          string       `json:"name" yaml:"name"`
	Version       string       `json:"version" yaml:"version"`
	Description   string       `json:"description,omitempty" yaml:"description,omitempty"`
	Steps         []StepConfig `json:"steps" yaml:"steps"`
	CacheEnabled  bool         `json:"cache_enabled" yaml:"cache_enabled"`
	CacheTTLHours int          `json:"cache_ttl_hours" yaml:"cache_ttl_hours"`
}

// Validate checks the cross-field invariants: at least one step, no duplicate
// step kinds, and every algorithm valid for its step.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("pipeline must have at least one step")
	}
	seen := make(map[Step]bool, len(c.Steps))
	for i, sc := range c.Steps {
		if _, ok := stepAlgorithms[sc.Step]; !ok {
			return fmt.Errorf("step[%d]: unknown step %q", i, sc.Step)
		}
		if seen[sc.Step] {
			return fmt.Errorf("duplicate pipeline step %q", sc.Step)
		}
		seen[sc.Step] = true
		if !algorithmValidForStep(sc.Step, sc.Algorithm) {
			return fmt.Errorf("step[%d]: algorithm %q is not valid for step %q", i, sc.Algorithm, sc.Step)
		}
	}
	if c.CacheTTLHours < 0 {
		return fmt.Errorf("cache_ttl_hours must not be negative")
	}
	return nil
}

// StepFor returns the configuration for a specific step kind, if present.
func (c *Config) StepFor(s Step) (StepConfig, bool) {
	for _, sc := range c.Steps {
		if sc.Step == s {
			return sc, true
		}
	}
	return StepConfig{}, false
}

// ToMap converts the config to its plain mapping representation, the only
// exchange format the core's callers need.
func (c *Config) ToMap() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding pipeline config: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding pipeline config map: %w", err)
	}
	return out, nil
}

// FromMap builds and validates a Config from a plain mapping.
func FromMap(data map[string]any) (*Config, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding pipeline config map: %w", err)
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decoding pipeline config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// maxConfigFileSize caps pipeline config files for safety (1MB).
const maxConfigFileSize = 1 * 1024 * 1024

// LoadConfig loads a pipeline configuration from a JSON or YAML file, chosen
// by extension. Files over the size cap are rejected before parsing.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var c Config
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	return &c, nil
}

// SaveConfig writes a pipeline configuration to a JSON or YAML file, chosen
// by extension.
func SaveConfig(c *Config, path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	var data []byte
	var err error
	switch ext := filepath.Ext(path); ext {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}
	if err != nil {
		return fmt.Errorf("encoding pipeline config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// DefaultConfig returns the standard dental pre-processing pipeline: outlier
// denoising followed by voxel decimation, with caching on.
func DefaultConfig() *Config {
	return &Config{
		Name:        "Default Dental Preprocessing",
		Version:     "1.0.0",
		Description: "Standard preprocessing pipeline for dental scans",
		Steps: []StepConfig{
			{
				Step:         StepDenoise,
				Algorithm:    AlgoStatisticalOutlierRemoval,
				Enabled:      true,
				Parameters:   map[string]any{"nb_neighbors": 20, "std_ratio": 2.0},
				CacheEnabled: true,
			},
			{
				Step:         StepDecimate,
				Algorithm:    AlgoVoxelDownSample,
				Enabled:      true,
				Parameters:   map[string]any{"voxel_size": 0.05},
				CacheEnabled: true,
			},
		},
		CacheEnabled:  true,
		CacheTTLHours: 24,
	}
}
