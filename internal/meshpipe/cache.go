package meshpipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/monitoring"
)

// cacheEntryMeta is the sidecar record written next to each cached mesh.
// HasFaceNormals records an attribute the PLY blob cannot carry, so a hit
// can restore it.
type cacheEntryMeta struct {
	StepName       Step           `json:"step_name"`
	Parameters     map[string]any `json:"parameters"`
	Metrics        Metrics        `json:"metrics"`
	CreatedAt      time.Time      `json:"created_at"`
	AccessedAt     time.Time      `json:"accessed_at"`
	AccessCount    int            `json:"access_count"`
	HasFaceNormals bool           `json:"has_face_normals,omitempty"`
}

// CacheStats summarizes cache effectiveness since the cache was created.
type CacheStats struct {
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// PipelineCache stores intermediate step results on disk, addressed by the
// step's content key. Each entry is a pair of files: <key>.ply holding the
// mesh and <key>.json holding metadata and metrics. An entry with either
// file missing is treated as a miss and cleaned up. Safe for concurrent use
// across pipeline runs.
type PipelineCache struct {
	dir    string
	ttl    time.Duration
	loader *mesh.Loader

	mu     sync.Mutex
	hits   int
	misses int
}

// NewPipelineCache opens (creating if needed) a cache directory. A zero TTL
// means entries never expire.
func NewPipelineCache(dir string, ttl time.Duration) (*PipelineCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &PipelineCache{dir: dir, ttl: ttl, loader: mesh.NewLoader(0)}, nil
}

// blobPath names the mesh blob for a key. Blobs are ASCII PLY, which keeps
// vertex normals but not face normals; Get regenerates those from the
// metadata flag.
func (c *PipelineCache) blobPath(key string) string {
	return filepath.Join(c.dir, key+".ply")
}

func (c *PipelineCache) metaPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get looks up a cached step result. On a hit it returns the cached mesh and
// the metrics recorded when the entry was computed, and refreshes the entry's
// access metadata. Expired or torn entries are removed and reported as misses.
func (c *PipelineCache) Get(key string) (*mesh.Mesh, Metrics, bool) {
	blobPath := c.blobPath(key)
	metaPath := c.metaPath(key)

	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		c.recordMiss()
		c.remove(key)
		return nil, Metrics{}, false
	}
	var meta cacheEntryMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		monitoring.Logf("[Cache] Corrupt metadata for %s, removing entry: %v", key, err)
		c.recordMiss()
		c.remove(key)
		return nil, Metrics{}, false
	}

	if c.ttl > 0 && time.Since(meta.CreatedAt) > c.ttl {
		monitoring.Logf("[Cache] Entry %s expired (created %s)", key, meta.CreatedAt.Format(time.RFC3339))
		c.recordMiss()
		c.remove(key)
		return nil, Metrics{}, false
	}

	m, err := c.loader.Load(blobPath)
	if err != nil {
		monitoring.Logf("[Cache] Unreadable blob for %s, removing entry: %v", key, err)
		c.recordMiss()
		c.remove(key)
		return nil, Metrics{}, false
	}

	if meta.HasFaceNormals && len(m.FaceNormals) == 0 {
		m.ComputeFaceNormals()
	}

	meta.AccessedAt = time.Now().UTC()
	meta.AccessCount++
	c.writeMeta(metaPath, meta)

	c.recordHit()
	return m, meta.Metrics, true
}

// Put stores a step result under its content key, overwriting any previous
// entry. The mesh blob is written first so a crash between the two writes
// leaves a torn entry that Get discards.
func (c *PipelineCache) Put(key string, step Step, params map[string]any, m *mesh.Mesh, metrics Metrics) error {
	if !c.loader.Save(m, c.blobPath(key)) {
		return fmt.Errorf("caching mesh for step %s failed", step)
	}
	now := time.Now().UTC()
	meta := cacheEntryMeta{
		StepName:       step,
		Parameters:     params,
		Metrics:        metrics,
		CreatedAt:      now,
		AccessedAt:     now,
		AccessCount:    0,
		HasFaceNormals: len(m.FaceNormals) > 0,
	}
	return c.writeMeta(c.metaPath(key), meta)
}

func (c *PipelineCache) writeMeta(path string, meta cacheEntryMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}
	return nil
}

func (c *PipelineCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *PipelineCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *PipelineCache) remove(key string) {
	os.Remove(c.blobPath(key))
	os.Remove(c.metaPath(key))
}

// Sweep removes all expired entries and returns how many were deleted. With a
// zero TTL it is a no-op.
func (c *PipelineCache) Sweep() int {
	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	for _, key := range c.keys() {
		data, err := os.ReadFile(c.metaPath(key))
		if err != nil {
			c.remove(key)
			removed++
			continue
		}
		var meta cacheEntryMeta
		if err := json.Unmarshal(data, &meta); err != nil || time.Since(meta.CreatedAt) > c.ttl {
			c.remove(key)
			removed++
		}
	}
	if removed > 0 {
		monitoring.Logf("[Cache] Swept %d expired entries from %s", removed, c.dir)
	}
	return removed
}

// Clear deletes every entry in the cache directory.
func (c *PipelineCache) Clear() {
	for _, key := range c.keys() {
		c.remove(key)
	}
	c.mu.Lock()
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
}

// keys lists the keys of all entries that have a metadata file.
func (c *PipelineCache) keys() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var keys []string
	for _, e := range entries {
		if name := e.Name(); strings.HasSuffix(name, ".json") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys
}

// Stats reports hit/miss counters for this cache instance. The hit rate is
// zero until the cache has been queried at least once.
func (c *PipelineCache) Stats() CacheStats {
	c.mu.Lock()
	hits, misses := c.hits, c.misses
	c.mu.Unlock()
	s := CacheStats{Hits: hits, Misses: misses, Entries: len(c.keys())}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
