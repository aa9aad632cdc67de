package meshpipe

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/monitoring"
)

// PipelineOptions tunes pipeline construction.
type PipelineOptions struct {
	// CacheDir is where intermediate results are stored. Empty disables
	// caching regardless of the configuration.
	CacheDir string

	// BasicEngine forces the structural-cleanup fallback engine instead of
	// the full numeric one.
	BasicEngine bool
}

// stepSlot pairs a step's configuration with its processor. The processor is
// nil for declared steps that have no implementation.
type stepSlot struct {
	cfg  StepConfig
	proc Processor
}

// Pipeline executes a configured sequence of mesh transformations, threading
// each step's output into the next and consulting the cache per step.
type Pipeline struct {
	cfg   *Config
	steps []stepSlot
	cache *PipelineCache
	eng   engine
}

// NewPipeline builds a pipeline from a validated configuration. Steps without
// an implementation are kept in the sequence and skipped with a warning at
// run time, so a configuration written for a fuller build still executes.
func NewPipeline(cfg *Config, opts PipelineOptions) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	eng := newEngine(!opts.BasicEngine)
	p := &Pipeline{cfg: cfg, eng: eng}
	for _, sc := range cfg.Steps {
		proc, ok := NewProcessor(sc, eng)
		if !ok {
			proc = nil
		}
		p.steps = append(p.steps, stepSlot{cfg: sc, proc: proc})
	}

	if cfg.CacheEnabled && opts.CacheDir != "" {
		ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
		cache, err := NewPipelineCache(opts.CacheDir, ttl)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}

	monitoring.Logf("[Pipeline] Built pipeline %q v%s with %d steps (engine=%s, cache=%t)",
		cfg.Name, cfg.Version, len(p.steps), eng.Name(), p.cache != nil)
	return p, nil
}

// Run executes the pipeline on a mesh and returns the final mesh plus
// per-step metrics keyed by step name. The input mesh is never mutated. A
// step failure aborts the run; disabled and unimplemented steps are skipped.
func (p *Pipeline) Run(m *mesh.Mesh) (*mesh.Mesh, map[string]Metrics, error) {
	runID := uuid.NewString()
	start := time.Now()
	monitoring.Logf("[Pipeline] Run %s: pipeline %q on mesh (%d vertices, %d faces)",
		runID, p.cfg.Name, m.VertexCount(), m.FaceCount())

	current := m
	results := make(map[string]Metrics, len(p.steps))
	for _, slot := range p.steps {
		name := string(slot.cfg.Step)
		if !slot.cfg.Enabled {
			monitoring.Logf("[Pipeline] Run %s: step %s disabled, skipping", runID, name)
			continue
		}
		if slot.proc == nil {
			monitoring.Logf("[Pipeline] Run %s: step %s has no implementation, skipping", runID, name)
			continue
		}

		useCache := p.cache != nil && slot.cfg.CacheEnabled
		var key string
		if useCache {
			key = slot.proc.CacheKey(current)
			if cached, metrics, ok := p.cache.Get(key); ok {
				monitoring.Logf("[Pipeline] Run %s: step %s cache hit (%s)", runID, name, key[:12])
				current = cached
				results[name] = metrics
				continue
			}
		}

		out, metrics, err := slot.proc.Process(current)
		if err != nil {
			return nil, results, fmt.Errorf("pipeline step %s failed: %w", name, err)
		}
		monitoring.Logf("[Pipeline] Run %s: step %s %s done in %.2fs (%d -> %d vertices)",
			runID, name, slot.cfg.Algorithm, metrics.ProcessingTime, metrics.InputVertices, metrics.OutputVertices)

		if useCache {
			if err := p.cache.Put(key, slot.cfg.Step, slot.cfg.Parameters, out, metrics); err != nil {
				monitoring.Logf("[Pipeline] Run %s: caching step %s failed: %v", runID, name, err)
			}
		}
		current = out
		results[name] = metrics
	}

	monitoring.Logf("[Pipeline] Run %s: finished in %.2fs (%d vertices, %d faces)",
		runID, time.Since(start).Seconds(), current.VertexCount(), current.FaceCount())
	return current, results, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() *Config { return p.cfg }

// CacheStats reports the cache counters for this pipeline, or zeros when
// caching is disabled.
func (p *Pipeline) CacheStats() CacheStats {
	if p.cache == nil {
		return CacheStats{}
	}
	return p.cache.Stats()
}
