package meshpipe

import (
	"github.com/scanforge-data/scanforge/internal/mesh"
)

// testTetra returns a closed tetrahedron.
func testTetra() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: [][3]float64{
			{0, 0, 0},
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		},
		Faces: [][3]int{
			{0, 2, 1},
			{0, 1, 3},
			{0, 3, 2},
			{1, 2, 3},
		},
	}
}

// testGrid returns an n by n triangulated plane with unit spacing, a stand-in
// for a dense scan surface.
func testGrid(n int) *mesh.Mesh {
	m := &mesh.Mesh{}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			m.Vertices = append(m.Vertices, [3]float64{float64(x), float64(y), 0})
		}
	}
	idx := func(x, y int) int { return y*n + x }
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			m.Faces = append(m.Faces,
				[3]int{idx(x, y), idx(x+1, y), idx(x, y+1)},
				[3]int{idx(x+1, y), idx(x+1, y+1), idx(x, y+1)},
			)
		}
	}
	return m
}
