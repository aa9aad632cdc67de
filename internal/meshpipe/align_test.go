package meshpipe

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge-data/scanforge/internal/mesh"
	"github.com/scanforge-data/scanforge/internal/monitoring"
)

func alignProcessor(algo Algorithm, params map[string]any) Processor {
	proc, _ := NewProcessor(StepConfig{Step: StepAlignment, Algorithm: algo, Parameters: params}, newEngine(true))
	return proc
}

func TestLandmarkAlignmentRecoversTranslation(t *testing.T) {
	shift := [3]float64{1, 2, 3}
	src := []any{
		[]any{0.0, 0.0, 0.0},
		[]any{1.0, 0.0, 0.0},
		[]any{0.0, 1.0, 0.0},
		[]any{0.0, 0.0, 1.0},
	}
	tgt := []any{
		[]any{1.0, 2.0, 3.0},
		[]any{2.0, 2.0, 3.0},
		[]any{1.0, 3.0, 3.0},
		[]any{1.0, 2.0, 4.0},
	}

	in := testTetra()
	out, _, err := alignProcessor(AlgoLandmarkAlignment, map[string]any{
		"source_landmarks": src,
		"target_landmarks": tgt,
	}).Process(in)
	require.NoError(t, err)

	for i, v := range in.Vertices {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, v[k]+shift[k], out.Vertices[i][k], 1e-9)
		}
	}
}

func TestLandmarkAlignmentRequiresMatchingPairs(t *testing.T) {
	_, _, err := alignProcessor(AlgoLandmarkAlignment, map[string]any{
		"source_landmarks": []any{[]any{0.0, 0.0, 0.0}},
		"target_landmarks": []any{[]any{1.0, 0.0, 0.0}},
	}).Process(testTetra())
	assert.ErrorContains(t, err, "at least 3 pairs")
}

func TestICPAlignmentRecoversSmallTranslation(t *testing.T) {
	target := testGrid(8)
	targetPath := filepath.Join(t.TempDir(), "target.ply")
	require.True(t, mesh.NewLoader(0).Save(target, targetPath))

	src := target.Clone()
	src.Translate([3]float64{0.2, -0.15, 0.1})

	out, _, err := alignProcessor(AlgoICPAlignment, map[string]any{
		"target_path": targetPath,
	}).Process(src)
	require.NoError(t, err)

	// Residual offset after registration should be a small fraction of the
	// original displacement.
	var worst float64
	for i, v := range out.Vertices {
		d := math.Sqrt(dist2(v, target.Vertices[i]))
		if d > worst {
			worst = d
		}
	}
	assert.Less(t, worst, 0.15, "worst residual %v", worst)
}

func TestICPAlignmentWithoutCorrespondencesKeepsPose(t *testing.T) {
	var logs []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs = append(logs, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(log.Printf)

	// Target far beyond the default correspondence distance: the first
	// matching round finds nothing and the pose must stay put.
	target := testGrid(4)
	target.Translate([3]float64{500, 500, 500})
	targetPath := filepath.Join(t.TempDir(), "target.ply")
	require.True(t, mesh.NewLoader(0).Save(target, targetPath))

	src := testGrid(4)
	out, _, err := alignProcessor(AlgoICPAlignment, map[string]any{
		"target_path": targetPath,
	}).Process(src)
	require.NoError(t, err)

	for i, v := range src.Vertices {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, v[k], out.Vertices[i][k], 1e-12)
		}
	}

	joined := strings.Join(logs, "\n")
	assert.Contains(t, joined, "no usable correspondences")
	assert.NotContains(t, joined, "mean error")
}

func TestICPAlignmentRequiresTargetPath(t *testing.T) {
	_, _, err := alignProcessor(AlgoICPAlignment, nil).Process(testTetra())
	assert.ErrorContains(t, err, "target_path")
}

func TestFeatureBasedAlignmentCanonicalizesPose(t *testing.T) {
	// A grid stretched along y: after principal-axis alignment the largest
	// spread must lie along x and the mesh must be centered.
	m := testGrid(8)
	for i := range m.Vertices {
		m.Vertices[i][1] *= 5
	}

	out, _, err := alignProcessor(AlgoFeatureBasedAlignment, nil).Process(m)
	require.NoError(t, err)

	com := out.CenterOfMass()
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0, com[k], 1e-6)
	}

	min, max := out.Bounds()
	dx := max[0] - min[0]
	dy := max[1] - min[1]
	dz := max[2] - min[2]
	assert.Greater(t, dx, dy, "largest spread should rotate onto x")
	assert.Greater(t, dx, dz)
}

func TestKabschRecoversRotation(t *testing.T) {
	// 90 degree rotation about z.
	src := [][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}}
	tgt := make([][3]float64, len(src))
	for i, p := range src {
		tgt[i] = [3]float64{-p[1], p[0], p[2]}
	}

	g, ok := kabsch(src, tgt)
	require.True(t, ok)
	for i, p := range src {
		got := g.apply(p)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, tgt[i][k], got[k], 1e-9)
		}
	}
}
