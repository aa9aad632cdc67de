package meshpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge-data/scanforge/internal/mesh"
)

func archProcessor(algo Algorithm, params map[string]any) Processor {
	proc, _ := NewProcessor(StepConfig{Step: StepArchIsolate, Algorithm: algo, Parameters: params}, newEngine(true))
	return proc
}

// mergeMeshes concatenates two meshes into one with reindexed faces.
func mergeMeshes(a, b *mesh.Mesh) *mesh.Mesh {
	out := a.Clone()
	offset := len(out.Vertices)
	out.Vertices = append(out.Vertices, b.Vertices...)
	for _, f := range b.Faces {
		out.Faces = append(out.Faces, [3]int{f[0] + offset, f[1] + offset, f[2] + offset})
	}
	return out
}

func TestClusteringSegmentationKeepsDominantCluster(t *testing.T) {
	big := testGrid(8)   // 64 vertices around the origin
	small := testGrid(4) // 16 vertices, far away
	small.Translate([3]float64{100, 100, 0})
	m := mergeMeshes(big, small)

	out, metrics, err := archProcessor(AlgoClusteringSegmentation, map[string]any{
		"eps":        1.5,
		"min_points": 4,
	}).Process(m)
	require.NoError(t, err)

	assert.Equal(t, big.VertexCount(), out.VertexCount())
	for _, v := range out.Vertices {
		assert.Less(t, v[0], 50.0, "surviving vertices must belong to the dominant cluster")
	}
	require.NotNil(t, metrics.QualityScore)
	assert.InDelta(t, float64(big.FaceCount())/float64(m.FaceCount()), *metrics.QualityScore, 1e-9)
}

func TestClusteringSegmentationNoClusterKeepsFullMesh(t *testing.T) {
	m := testTetra()
	out, _, err := archProcessor(AlgoClusteringSegmentation, map[string]any{
		"eps":        0.001, // nothing within range
		"min_points": 10,
	}).Process(m)
	require.NoError(t, err)
	assert.Equal(t, m.VertexCount(), out.VertexCount())
}

func TestCurvatureSegmentationReportsStats(t *testing.T) {
	// A tent over a flat plane: the ridge vertices carry the curvature.
	m := testGrid(8)
	for x := 0; x < 8; x++ {
		m.Vertices[3*8+x][2] = 1.5
	}

	out, metrics, err := archProcessor(AlgoCurvatureSegmentation, nil).Process(m)
	require.NoError(t, err)
	assert.False(t, out.IsEmpty())
	assert.LessOrEqual(t, out.VertexCount(), m.VertexCount())

	require.NotNil(t, metrics.CurvatureStats)
	for _, key := range []string{"mean", "std", "min", "max"} {
		assert.Contains(t, metrics.CurvatureStats, key)
	}
	assert.GreaterOrEqual(t, metrics.CurvatureStats["max"], metrics.CurvatureStats["mean"])
	assert.LessOrEqual(t, metrics.CurvatureStats["min"], metrics.CurvatureStats["mean"])
}

func TestCurvatureSegmentationImpossibleThresholdKeepsFullMesh(t *testing.T) {
	m := testGrid(6)
	out, _, err := archProcessor(AlgoCurvatureSegmentation, map[string]any{
		"curvature_threshold": 2.0, // curvature is bounded by 1
	}).Process(m)
	require.NoError(t, err)
	assert.Equal(t, m.VertexCount(), out.VertexCount())
}

func TestDBSCANLabelsNoiseAndClusters(t *testing.T) {
	points := [][3]float64{
		{0, 0, 0}, {0.5, 0, 0}, {0, 0.5, 0}, {0.5, 0.5, 0}, // tight cluster
		{50, 50, 50}, // isolated
	}
	labels := dbscan(points, 1.0, 3)
	require.Len(t, labels, 5)
	for i := 0; i < 4; i++ {
		assert.Equal(t, labels[0], labels[i], "cluster points must share a label")
		assert.Greater(t, labels[i], 0)
	}
	assert.Equal(t, -1, labels[4], "isolated point must be noise")
}
