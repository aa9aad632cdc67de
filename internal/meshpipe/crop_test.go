package meshpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cropProcessor(algo Algorithm, params map[string]any) Processor {
	proc, _ := NewProcessor(StepConfig{Step: StepRoiCrop, Algorithm: algo, Parameters: params}, newEngine(true))
	return proc
}

func TestBoundingBoxCropDefaultsKeepEverything(t *testing.T) {
	m := testGrid(6)
	out, metrics, err := cropProcessor(AlgoBoundingBoxCrop, nil).Process(m)
	require.NoError(t, err)
	assert.Equal(t, m.VertexCount(), out.VertexCount())
	assert.Equal(t, m.VertexCount(), metrics.InputVertices)
	assert.Equal(t, out.VertexCount(), metrics.OutputVertices)
}

func TestBoundingBoxCropRestrictsRegion(t *testing.T) {
	m := testGrid(6) // x,y in [0,5]
	out, _, err := cropProcessor(AlgoBoundingBoxCrop, map[string]any{
		"min": []any{0.0, 0.0, -1.0},
		"max": []any{2.0, 5.0, 1.0},
	}).Process(m)
	require.NoError(t, err)
	assert.Less(t, out.VertexCount(), m.VertexCount())
	for _, v := range out.Vertices {
		assert.LessOrEqual(t, v[0], 2.0)
	}
}

func TestSphericalCrop(t *testing.T) {
	m := testGrid(7) // centered near (3,3,0)
	out, _, err := cropProcessor(AlgoSphericalCrop, map[string]any{
		"center": []any{3.0, 3.0, 0.0},
		"radius": 2.0,
	}).Process(m)
	require.NoError(t, err)
	assert.Less(t, out.VertexCount(), m.VertexCount())
	for _, v := range out.Vertices {
		assert.LessOrEqual(t, dist2(v, [3]float64{3, 3, 0}), 4.0+1e-9)
	}
}

func TestPlanarCropKeepsPositiveHalfSpace(t *testing.T) {
	m := testGrid(6)
	out, _, err := cropProcessor(AlgoPlanarCrop, map[string]any{
		"point":  []any{2.5, 0.0, 0.0},
		"normal": []any{1.0, 0.0, 0.0},
	}).Process(m)
	require.NoError(t, err)
	for _, v := range out.Vertices {
		assert.GreaterOrEqual(t, v[0], 2.5)
	}
}

func TestCropRemovingAllGeometryIsAnError(t *testing.T) {
	m := testGrid(5)
	_, _, err := cropProcessor(AlgoSphericalCrop, map[string]any{
		"center": []any{500.0, 500.0, 500.0},
		"radius": 1.0,
	}).Process(m)
	assert.ErrorContains(t, err, "removed all geometry")
}
