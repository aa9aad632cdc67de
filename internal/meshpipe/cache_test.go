package meshpipe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *PipelineCache {
	t.Helper()
	c, err := NewPipelineCache(t.TempDir(), ttl)
	require.NoError(t, err)
	return c
}

func TestCachePutGet(t *testing.T) {
	c := newTestCache(t, 0)
	m := testTetra()
	metrics := Metrics{InputVertices: 4, OutputVertices: 4, ProcessingTime: 0.5}

	require.NoError(t, c.Put("key1", StepDenoise, map[string]any{"sigma": 1.0}, m, metrics))

	got, gotMetrics, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, 4, got.VertexCount())
	assert.Equal(t, 4, got.FaceCount())
	// Cached metrics are returned verbatim, including the original timing.
	assert.Equal(t, 0.5, gotMetrics.ProcessingTime)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 0, stats.Misses)
	assert.Equal(t, 1.0, stats.HitRate)
	assert.Equal(t, 1, stats.Entries)
}

func TestCacheHitRestoresFaceNormals(t *testing.T) {
	c := newTestCache(t, 0)
	m := testTetra()
	m.ComputeFaceNormals()
	require.Len(t, m.FaceNormals, m.FaceCount())

	require.NoError(t, c.Put("fn", StepDenoise, nil, m, Metrics{}))
	got, _, ok := c.Get("fn")
	require.True(t, ok)
	require.Len(t, got.FaceNormals, got.FaceCount())
	for i := range m.FaceNormals {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, m.FaceNormals[i][k], got.FaceNormals[i][k], 1e-9)
		}
	}
}

func TestCacheHitWithoutFaceNormalsStaysBare(t *testing.T) {
	c := newTestCache(t, 0)
	require.NoError(t, c.Put("bare", StepDenoise, nil, testTetra(), Metrics{}))
	got, _, ok := c.Get("bare")
	require.True(t, ok)
	assert.Empty(t, got.FaceNormals)
}

func TestCacheMiss(t *testing.T) {
	c := newTestCache(t, 0)
	_, _, ok := c.Get("absent")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 0, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 0.0, stats.HitRate)
}

func TestCacheStatsZeroWhenUntouched(t *testing.T) {
	c := newTestCache(t, 0)
	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.HitRate)
}

func TestCacheHitRefreshesAccessMetadata(t *testing.T) {
	c := newTestCache(t, 0)
	require.NoError(t, c.Put("key", StepDecimate, nil, testTetra(), Metrics{}))

	for i := 0; i < 3; i++ {
		_, _, ok := c.Get("key")
		require.True(t, ok)
	}

	data, err := os.ReadFile(c.metaPath("key"))
	require.NoError(t, err)
	var meta cacheEntryMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, 3, meta.AccessCount)
	assert.Equal(t, StepDecimate, meta.StepName)
	assert.False(t, meta.AccessedAt.Before(meta.CreatedAt))
}

func TestCacheExpiry(t *testing.T) {
	c := newTestCache(t, time.Hour)
	require.NoError(t, c.Put("key", StepDenoise, nil, testTetra(), Metrics{}))

	// Age the entry past the TTL by rewriting its creation time.
	data, err := os.ReadFile(c.metaPath("key"))
	require.NoError(t, err)
	var meta cacheEntryMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	meta.CreatedAt = time.Now().Add(-2 * time.Hour)
	aged, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.metaPath("key"), aged, 0o644))

	_, _, ok := c.Get("key")
	assert.False(t, ok, "expired entry must be a miss")
	assert.NoFileExists(t, c.blobPath("key"), "expired entry must be deleted")
	assert.NoFileExists(t, c.metaPath("key"))
}

func TestCacheTornEntryIsAMissAndCleanedUp(t *testing.T) {
	c := newTestCache(t, 0)
	require.NoError(t, c.Put("key", StepDenoise, nil, testTetra(), Metrics{}))

	// Blob present, metadata gone.
	require.NoError(t, os.Remove(c.metaPath("key")))
	_, _, ok := c.Get("key")
	assert.False(t, ok)
	assert.NoFileExists(t, c.blobPath("key"), "orphan blob must be removed")

	// Metadata present, blob gone.
	require.NoError(t, c.Put("key2", StepDenoise, nil, testTetra(), Metrics{}))
	require.NoError(t, os.Remove(c.blobPath("key2")))
	_, _, ok = c.Get("key2")
	assert.False(t, ok)
	assert.NoFileExists(t, c.metaPath("key2"), "orphan metadata must be removed")
}

func TestCacheCorruptMetadataIsAMiss(t *testing.T) {
	c := newTestCache(t, 0)
	require.NoError(t, c.Put("key", StepDenoise, nil, testTetra(), Metrics{}))
	require.NoError(t, os.WriteFile(c.metaPath("key"), []byte("{not json"), 0o644))

	_, _, ok := c.Get("key")
	assert.False(t, ok)
	assert.NoFileExists(t, c.blobPath("key"))
}

func TestCacheSweep(t *testing.T) {
	c := newTestCache(t, time.Hour)
	require.NoError(t, c.Put("fresh", StepDenoise, nil, testTetra(), Metrics{}))
	require.NoError(t, c.Put("stale", StepDenoise, nil, testTetra(), Metrics{}))

	data, err := os.ReadFile(c.metaPath("stale"))
	require.NoError(t, err)
	var meta cacheEntryMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	meta.CreatedAt = time.Now().Add(-48 * time.Hour)
	aged, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.metaPath("stale"), aged, 0o644))

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Stats().Entries)
	assert.FileExists(t, filepath.Join(c.dir, "fresh.ply"))
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(t, 0)
	require.NoError(t, c.Put("a", StepDenoise, nil, testTetra(), Metrics{}))
	require.NoError(t, c.Put("b", StepDenoise, nil, testTetra(), Metrics{}))
	c.Clear()
	assert.Equal(t, 0, c.Stats().Entries)
}
