package mesh

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/scanforge-data/scanforge/internal/monitoring"
	"github.com/scanforge-data/scanforge/internal/sysmem"
)

// DefaultMemoryLimitMB caps the size of mesh files the loader will parse.
const DefaultMemoryLimitMB = 1024

// Loader reads and writes mesh files with resource guards. The file-size cap
// and the available-memory check both run before any parse attempt, so an
// oversized scan fails fast instead of exhausting the process.
type Loader struct {
	MemoryLimitMB int
}

// NewLoader creates a Loader with the given memory limit in MB. Zero or
// negative limits fall back to DefaultMemoryLimitMB. The available-memory
// check runs once at construction so a starved worker logs early.
func NewLoader(memoryLimitMB int) *Loader {
	if memoryLimitMB <= 0 {
		memoryLimitMB = DefaultMemoryLimitMB
	}
	l := &Loader{MemoryLimitMB: memoryLimitMB}
	l.checkAvailableMemory()
	return l
}

func (l *Loader) checkAvailableMemory() {
	available, ok := sysmem.AvailableMB()
	if ok && available < float64(l.MemoryLimitMB) {
		monitoring.Logf("[Loader] Low memory available: %.1fMB < %dMB", available, l.MemoryLimitMB)
	}
}

// Load reads a mesh from path. It fails with an error wrapping fs.ErrNotExist
// for a missing file, a *ResourceLimitError when the file exceeds the memory
// limit, and a *FormatError when the parsed data lacks vertices or faces.
func (l *Loader) Load(path string) (*Mesh, error) {
	m, _, err := l.load(path)
	return m, err
}

// LoadInfo loads a mesh and returns an Info snapshot annotated with the load
// provenance: source format, file size, and load duration. units names the
// caller's declared source units and is recorded verbatim.
func (l *Loader) LoadInfo(path, units string) (*Mesh, Info, error) {
	m, st, err := l.load(path)
	if err != nil {
		return nil, Info{}, err
	}
	info := Snapshot(m)
	info.Units = units
	info.Format = st.format
	info.FileSize = st.fileSize
	info.LoadTime = st.elapsed
	return m, info, nil
}

// loadStat records the provenance of one successful load.
type loadStat struct {
	format   Format
	fileSize int64
	elapsed  time.Duration
}

func (l *Loader) load(path string) (*Mesh, loadStat, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, loadStat{}, fmt.Errorf("mesh file not found: %s: %w", path, fs.ErrNotExist)
		}
		return nil, loadStat{}, fmt.Errorf("stat %s: %w", path, err)
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(l.MemoryLimitMB) {
		return nil, loadStat{}, &ResourceLimitError{Path: path, SizeMB: sizeMB, LimitMB: float64(l.MemoryLimitMB)}
	}
	l.checkAvailableMemory()

	format, ok := FormatForPath(path)
	if !ok {
		return nil, loadStat{}, &FormatError{Path: path, Reason: "unrecognized file extension"}
	}
	if !IsSupported(format) {
		return nil, loadStat{}, &FormatError{Path: path, Reason: fmt.Sprintf("no codec for format %s", format)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadStat{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var m *Mesh
	switch format {
	case FormatSTL:
		m, err = decodeSTL(data)
	case FormatPLY:
		m, err = decodePLY(data)
	case FormatOBJ:
		m, err = decodeOBJ(data)
	}
	if err != nil {
		return nil, loadStat{}, &FormatError{Path: path, Reason: err.Error()}
	}
	if m.IsEmpty() {
		return nil, loadStat{}, &FormatError{Path: path, Reason: "mesh has no vertex or face data"}
	}
	if err := m.CheckIndices(); err != nil {
		return nil, loadStat{}, &FormatError{Path: path, Reason: err.Error()}
	}

	elapsed := time.Since(start)
	monitoring.Logf("[Loader] Loaded %s (%d vertices, %d faces) in %.2fs",
		path, m.VertexCount(), m.FaceCount(), elapsed.Seconds())
	return m, loadStat{format: format, fileSize: info.Size(), elapsed: elapsed}, nil
}

// Save writes a mesh to path in the format implied by its extension, creating
// parent directories as needed. It returns false and logs the cause on
// exporter failure rather than returning an error; only the capability
// contract is surfaced to callers.
func (l *Loader) Save(m *Mesh, path string) bool {
	format, ok := FormatForPath(path)
	if !ok || !IsSupported(format) {
		monitoring.Logf("[Loader] Cannot save %s: unsupported format", path)
		return false
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		monitoring.Logf("[Loader] Cannot create directory for %s: %v", path, err)
		return false
	}

	f, err := os.Create(path)
	if err != nil {
		monitoring.Logf("[Loader] Cannot create %s: %v", path, err)
		return false
	}
	defer f.Close()

	switch format {
	case FormatSTL:
		err = encodeSTL(f, m)
	case FormatPLY:
		err = encodePLY(f, m)
	case FormatOBJ:
		err = encodeOBJ(f, m)
	}
	if err != nil {
		monitoring.Logf("[Loader] Failed to save %s: %v", path, err)
		return false
	}
	monitoring.Logf("[Loader] Saved mesh to %s", path)
	return true
}
