package mesh

import "time"

// Info is a point-in-time snapshot of a mesh's structure and derived
// geometric properties.
type Info struct {
	Vertices     int           `json:"vertices"`
	Faces        int           `json:"faces"`
	BoundsMin    [3]float64    `json:"bounds_min"`
	BoundsMax    [3]float64    `json:"bounds_max"`
	Volume       float64       `json:"volume"`
	SurfaceArea  float64       `json:"surface_area"`
	IsWatertight bool          `json:"is_watertight"`
	IsManifold   bool          `json:"is_manifold"`
	HasNormals   bool          `json:"has_normals"`
	Units        string        `json:"units,omitempty"`
	Format       Format        `json:"format,omitempty"`
	FileSize     int64         `json:"file_size,omitempty"`
	LoadTime     time.Duration `json:"load_time,omitempty"`
}

// Snapshot derives an Info from the current mesh state.
func Snapshot(m *Mesh) Info {
	min, max := m.Bounds()
	return Info{
		Vertices:     m.VertexCount(),
		Faces:        m.FaceCount(),
		BoundsMin:    min,
		BoundsMax:    max,
		Volume:       m.Volume(),
		SurfaceArea:  m.SurfaceArea(),
		IsWatertight: m.IsWatertight(),
		IsManifold:   m.IsManifold(),
		HasNormals:   m.HasNormals(),
	}
}
