// Command meshpipe runs the dental scan pre-processing pipeline over one or
// more mesh files.
//
// Usage:
//
//	meshpipe -config pipeline.yaml -out processed/ scan1.stl scan2.ply
//
// With no -config the default denoise+decimate pipeline is used. Multiple
// inputs are processed concurrently, bounded by -jobs.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/meshpipe"
	"github.com/scanforge-data/scanforge/internal/units"
)

func main() {
	var (
		configPath = flag.String("config", "", "pipeline config file (.json/.yaml), default pipeline if empty")
		outPath    = flag.String("out", "", "output file (single input) or directory (multiple inputs)")
		format     = flag.String("format", "", "output format override (stl, ply, obj)")
		unitsFlag  = flag.String("units", "mm", "source units of the input scans ("+units.ValidUnitsString()+")")
		validate   = flag.Bool("validate", true, "validate meshes after loading")
		strict     = flag.Bool("strict", false, "use strict validation with repairs")
		normalize  = flag.Bool("normalize", false, "normalize meshes before the pipeline")
		cacheDir   = flag.String("cache-dir", "", "cache directory for intermediate results (empty disables caching)")
		memLimit   = flag.Int("mem-limit", mesh.DefaultMemoryLimitMB, "per-file memory limit in MB")
		jobs       = flag.Int("jobs", 4, "maximum concurrent files")
		showStats  = flag.Bool("stats", false, "print cache statistics after the run")
	)
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: meshpipe [flags] <mesh-file>...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if !units.IsValid(*unitsFlag) {
		log.Fatalf("Invalid units %q, must be one of: %s", *unitsFlag, units.ValidUnitsString())
	}
	if *outPath == "" {
		log.Fatalf("-out is required")
	}

	cfg := meshpipe.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = meshpipe.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load pipeline config: %v", err)
		}
	}

	pipeline, err := meshpipe.NewPipeline(cfg, meshpipe.PipelineOptions{CacheDir: *cacheDir})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	level := mesh.LevelStandard
	if *strict {
		level = mesh.LevelStrict
	}
	proc := mesh.NewProcessor(mesh.ProcessorOptions{
		MemoryLimitMB: *memLimit,
		Level:         level,
	})

	loadOpts := mesh.LoadOptions{
		Validate:  *validate,
		Normalize: *normalize,
		Units:     *unitsFlag,
	}

	var g errgroup.Group
	g.SetLimit(*jobs)
	for _, input := range inputs {
		input := input
		g.Go(func() error {
			return processFile(proc, pipeline, input, outputFor(input, *outPath, *format, len(inputs) > 1), loadOpts, *cacheDir != "")
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Pipeline run failed: %v", err)
	}

	if *showStats {
		stats := pipeline.CacheStats()
		fmt.Printf("cache: %d hits, %d misses, %.0f%% hit rate, %d entries\n",
			stats.Hits, stats.Misses, stats.HitRate*100, stats.Entries)
	}
}

// outputFor picks the output path for an input file. With multiple inputs the
// -out flag names a directory and each result keeps its base name.
func outputFor(input, out, format string, multi bool) string {
	if !multi && filepath.Ext(out) != "" {
		if format != "" {
			out = strings.TrimSuffix(out, filepath.Ext(out)) + "." + format
		}
		return out
	}
	base := filepath.Base(input)
	if format != "" {
		base = strings.TrimSuffix(base, filepath.Ext(base)) + "." + format
	}
	return filepath.Join(out, base)
}

func processFile(proc *mesh.Processor, pipeline *meshpipe.Pipeline, input, output string, opts mesh.LoadOptions, withCacheStats bool) error {
	m, report, err := proc.LoadMesh(input, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	if report != nil && !report.IsValid {
		return fmt.Errorf("%s: validation failed: %s", input, strings.Join(report.Issues, "; "))
	}

	result, metrics, err := pipeline.Run(m)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	if !proc.SaveMesh(result, output, "") {
		return fmt.Errorf("%s: saving result to %s failed", input, output)
	}

	runReport := meshpipe.RunReport{Steps: metrics}
	if withCacheStats {
		stats := pipeline.CacheStats()
		runReport.Cache = &stats
	}
	if err := writeMetrics(output, runReport); err != nil {
		return err
	}
	log.Printf("Processed %s -> %s (%d steps)", input, output, len(metrics))
	return nil
}

// writeMetrics records the run report next to the output mesh.
func writeMetrics(output string, report meshpipe.RunReport) error {
	path := strings.TrimSuffix(output, filepath.Ext(output)) + ".metrics.json"
	return meshpipe.WriteRunReport(path, report)
}
