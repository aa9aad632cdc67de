package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// OBJ support reads v/vn/f statements and fan-triangulates polygon faces.
// Texture coordinates, groups and material statements are ignored.

func decodeOBJ(data []byte) (*Mesh, error) {
	m := &Mesh{}
	var normals [][3]float64
	normalForVertex := map[int]int{} // vertex index -> normal index from f statements

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: short vertex", lineNo)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
			}
			m.Vertices = append(m.Vertices, v)
		case "vn":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: short normal", lineNo)
			}
			n, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
			}
			normals = append(normals, n)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face with fewer than 3 vertices", lineNo)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				vi, ni, err := parseOBJRef(ref, len(m.Vertices), len(normals))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
				}
				idx = append(idx, vi)
				if ni >= 0 {
					normalForVertex[vi] = ni
				}
			}
			for j := 2; j < len(idx); j++ {
				m.Faces = append(m.Faces, [3]int{idx[0], idx[j-1], idx[j]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading obj: %w", err)
	}

	if len(normals) > 0 && len(normalForVertex) == len(m.Vertices) {
		m.VertexNormals = make([][3]float64, len(m.Vertices))
		for vi, ni := range normalForVertex {
			m.VertexNormals[vi] = normals[ni]
		}
	}
	return m, nil
}

// parseOBJRef parses a face vertex reference ("7", "7/2", "7//3", "7/2/3").
// OBJ indices are 1-based; negative indices count back from the current end.
// Returns the zero-based vertex index and normal index (-1 when absent).
func parseOBJRef(ref string, nVerts, nNormals int) (vi, ni int, err error) {
	parts := strings.Split(ref, "/")
	vi, err = resolveOBJIndex(parts[0], nVerts)
	if err != nil {
		return 0, -1, err
	}
	ni = -1
	if len(parts) == 3 && parts[2] != "" {
		ni, err = resolveOBJIndex(parts[2], nNormals)
		if err != nil {
			return 0, -1, err
		}
	}
	return vi, ni, nil
}

func resolveOBJIndex(s string, n int) (int, error) {
	raw, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q: %w", s, err)
	}
	switch {
	case raw > 0:
		if raw > n {
			return 0, fmt.Errorf("index %d out of range (%d declared)", raw, n)
		}
		return raw - 1, nil
	case raw < 0:
		if -raw > n {
			return 0, fmt.Errorf("relative index %d out of range (%d declared)", raw, n)
		}
		return n + raw, nil
	default:
		return 0, fmt.Errorf("obj indices are 1-based, got 0")
	}
}

// encodeOBJ writes the mesh as OBJ, emitting vertex normals when present.
func encodeOBJ(wr io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(wr)
	fmt.Fprintf(bw, "# scanforge obj export\n")
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v[0], v[1], v[2])
	}
	hasNormals := len(m.VertexNormals) == len(m.Vertices) && len(m.Vertices) > 0
	if hasNormals {
		for _, n := range m.VertexNormals {
			fmt.Fprintf(bw, "vn %g %g %g\n", n[0], n[1], n[2])
		}
	}
	for _, f := range m.Faces {
		if hasNormals {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n",
				f[0]+1, f[0]+1, f[1]+1, f[1]+1, f[2]+1, f[2]+1)
		} else {
			fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1)
		}
	}
	return bw.Flush()
}
