package mesh

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTetra(t *testing.T, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tetra"+ext)
	require.True(t, NewLoader(0).Save(tetrahedron(), path))
	return path
}

func TestLoadMeshWithValidation(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	m, report, err := p.LoadMesh(writeTetra(t, ".ply"), LoadOptions{Validate: true})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.IsValid)
	assert.Equal(t, 4, m.VertexCount())
}

func TestLoadMeshReportCarriesLoadProvenance(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	_, report, err := p.LoadMesh(writeTetra(t, ".ply"), LoadOptions{Validate: true, Units: "mm"})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "mm", report.MeshInfo.Units)
	assert.Equal(t, FormatPLY, report.MeshInfo.Format)
	assert.Greater(t, report.MeshInfo.FileSize, int64(0))
	assert.Greater(t, report.MeshInfo.LoadTime, time.Duration(0))
}

func TestLoadMeshWithoutValidationHasNilReport(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	_, report, err := p.LoadMesh(writeTetra(t, ".stl"), LoadOptions{})
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestLoadMeshRepairedCopyFlowsOnward(t *testing.T) {
	// A mesh with a degenerate face: strict validation removes it, and the
	// mesh LoadMesh returns must be the repaired one.
	src := tetrahedron()
	src.Faces = append(src.Faces, [3]int{0, 0, 1})
	path := filepath.Join(t.TempDir(), "degen.ply")
	require.True(t, NewLoader(0).Save(src, path))

	p := NewProcessor(ProcessorOptions{Level: LevelStrict})
	m, report, err := p.LoadMesh(path, LoadOptions{Validate: true})
	require.NoError(t, err)
	assert.Contains(t, report.RepairsApplied, "Removed degenerate faces")
	assert.Equal(t, 4, m.FaceCount())
}

func TestLoadMeshNormalizes(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	m, _, err := p.LoadMesh(writeTetra(t, ".ply"), LoadOptions{Normalize: true, Units: "cm"})
	require.NoError(t, err)

	com := m.CenterOfMass()
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0, com[k], 1e-6)
	}
	assert.InDelta(t, 1.0, m.MaxExtent(), 1e-9)
}

func TestSaveMeshForcesFormatExtension(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	dir := t.TempDir()
	out := filepath.Join(dir, "result.stl")
	require.True(t, p.SaveMesh(tetrahedron(), out, FormatOBJ))

	if _, err := os.Stat(filepath.Join(dir, "result.obj")); err != nil {
		t.Errorf("expected result.obj to exist: %v", err)
	}
	if _, err := os.Stat(out); err == nil {
		t.Error("result.stl should not exist when format forces obj")
	}
}

func TestProcessMeshEndToEnd(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	out := filepath.Join(t.TempDir(), "out.ply")

	report, err := p.ProcessMesh(writeTetra(t, ".stl"), out, LoadOptions{Validate: true}, "")
	require.NoError(t, err)
	assert.True(t, report.IsValid)

	m, err := NewLoader(0).Load(out)
	require.NoError(t, err)
	assert.Equal(t, 4, m.VertexCount())
	assert.InDelta(t, tetrahedron().SurfaceArea(), m.SurfaceArea(), 1e-5)
}

func TestProcessMeshSaveFailureIsAnError(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	_, err := p.ProcessMesh(writeTetra(t, ".ply"), filepath.Join(t.TempDir(), "out.fbx"), LoadOptions{}, "")
	assert.Error(t, err)
}

func TestSupportedFormats(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	got := p.SupportedFormats()
	assert.ElementsMatch(t, []Format{FormatSTL, FormatPLY, FormatOBJ}, got)
}

func TestSnapshotFields(t *testing.T) {
	m := tetrahedron()
	info := Snapshot(m)
	assert.Equal(t, 4, info.Vertices)
	assert.Equal(t, 4, info.Faces)
	assert.True(t, info.IsWatertight)
	assert.True(t, info.IsManifold)
	assert.InDelta(t, 1.0/6.0, info.Volume, 1e-9)
	assert.False(t, math.IsNaN(info.SurfaceArea))
}
