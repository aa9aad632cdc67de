package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge-data/scanforge/internal/meshpipe"
)

func writeReport(t *testing.T, report meshpipe.RunReport) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.metrics.json")
	require.NoError(t, meshpipe.WriteRunReport(path, report))
	return path
}

func TestRenderReportIncludesCacheChart(t *testing.T) {
	metricsPath := writeReport(t, meshpipe.RunReport{
		Steps: map[string]meshpipe.Metrics{
			"denoise":  {InputVertices: 100, OutputVertices: 90, ProcessingTime: 0.2},
			"decimate": {InputVertices: 90, OutputVertices: 45, ProcessingTime: 0.1},
		},
		Cache: &meshpipe.CacheStats{Hits: 3, Misses: 1, HitRate: 0.75, Entries: 2},
	})

	outPath := filepath.Join(filepath.Dir(metricsPath), "report.html")
	require.NoError(t, renderReport(metricsPath, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Mesh Size per Step")
	assert.Contains(t, html, "Processing Time per Step")
	assert.Contains(t, html, "Cache Hits and Misses")
	assert.Contains(t, html, "75% hit rate")
}

func TestRenderReportWithoutCacheStats(t *testing.T) {
	metricsPath := writeReport(t, meshpipe.RunReport{
		Steps: map[string]meshpipe.Metrics{
			"denoise": {InputVertices: 100, OutputVertices: 90},
		},
	})

	outPath := filepath.Join(filepath.Dir(metricsPath), "report.html")
	require.NoError(t, renderReport(metricsPath, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Cache Hits and Misses")
}

func TestRenderReportRejectsEmptyMetrics(t *testing.T) {
	metricsPath := writeReport(t, meshpipe.RunReport{})
	err := renderReport(metricsPath, filepath.Join(filepath.Dir(metricsPath), "report.html"))
	assert.ErrorContains(t, err, "no step metrics")
}
