package mesh

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/scanforge-data/scanforge/internal/monitoring"
)

// Processor bundles loader, validator and normalizer behind the entry points
// the job layer calls outside of pipeline runs.
type Processor struct {
	Loader     *Loader
	Validator  *Validator
	Normalizer *Normalizer
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	MemoryLimitMB int
	Level         ValidationLevel
	TargetScale   float64
	TargetUnits   string
}

// NewProcessor creates a Processor from options; zero fields take defaults.
func NewProcessor(opts ProcessorOptions) *Processor {
	return &Processor{
		Loader:     NewLoader(opts.MemoryLimitMB),
		Validator:  NewValidator(opts.Level),
		Normalizer: NewNormalizer(opts.TargetScale, opts.TargetUnits),
	}
}

// LoadOptions controls LoadMesh behaviour.
type LoadOptions struct {
	Validate  bool
	Normalize bool
	Units     string
}

// LoadMesh loads a mesh and optionally validates and normalizes it. The
// returned report is nil when validation was not requested. When validation
// applied repairs, the repaired mesh is what flows onward.
func (p *Processor) LoadMesh(path string, opts LoadOptions) (*Mesh, *Report, error) {
	m, info, err := p.Loader.LoadInfo(path, opts.Units)
	if err != nil {
		return nil, nil, err
	}

	var report *Report
	if opts.Validate {
		report = p.Validator.Validate(m)
		m = report.Repaired
		// The validator snapshots the repaired mesh; the load provenance
		// comes from the loader.
		report.MeshInfo.Units = info.Units
		report.MeshInfo.Format = info.Format
		report.MeshInfo.FileSize = info.FileSize
		report.MeshInfo.LoadTime = info.LoadTime
	}

	if opts.Normalize {
		m = p.Normalizer.Normalize(m, opts.Units)
	}
	return m, report, nil
}

// SaveMesh saves a mesh, optionally forcing the output format by rewriting
// the path extension.
func (p *Processor) SaveMesh(m *Mesh, path string, format Format) bool {
	if format != "" {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "." + string(format)
	}
	return p.Loader.Save(m, path)
}

// ProcessMesh runs the load → validate → normalize → save sequence and
// returns the validation report. A save failure is an error here: the caller
// asked for a persisted result.
func (p *Processor) ProcessMesh(inputPath, outputPath string, opts LoadOptions, outputFormat Format) (*Report, error) {
	m, report, err := p.LoadMesh(inputPath, opts)
	if err != nil {
		return nil, err
	}
	if !p.SaveMesh(m, outputPath, outputFormat) {
		return report, fmt.Errorf("failed to save processed mesh to %s", outputPath)
	}
	monitoring.Logf("[Processor] Processed %s -> %s", inputPath, outputPath)
	return report, nil
}

// SupportedFormats reports the loader's format capability.
func (p *Processor) SupportedFormats() []Format {
	return SupportedFormats()
}
