package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// STL stores one independent triangle per facet, so loading welds exactly
// coincident vertices back into an indexed mesh. Binary and ASCII variants are
// both read; writing always produces binary STL.

const stlBinaryHeaderSize = 84 // 80-byte header + uint32 triangle count

// decodeSTL parses STL data, auto-detecting the ASCII and binary variants.
func decodeSTL(data []byte) (*Mesh, error) {
	if looksLikeASCIISTL(data) {
		return decodeASCIISTL(data)
	}
	return decodeBinarySTL(data)
}

// looksLikeASCIISTL distinguishes the ASCII variant. The "solid" prefix alone
// is not enough: binary exporters commonly write it into the 80-byte header,
// so the facet keyword is required too.
func looksLikeASCIISTL(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("solid")) && bytes.Contains(head, []byte("facet"))
}

func decodeBinarySTL(data []byte) (*Mesh, error) {
	if len(data) < stlBinaryHeaderSize {
		return nil, fmt.Errorf("binary stl truncated: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	const triSize = 50 // 12 float32 + uint16 attribute
	need := stlBinaryHeaderSize + int(count)*triSize
	if len(data) < need {
		return nil, fmt.Errorf("binary stl truncated: have %d bytes, need %d for %d triangles", len(data), need, count)
	}

	w := newVertexWelder(int(count) * 3)
	faces := make([][3]int, 0, count)
	normals := make([][3]float64, 0, count)
	off := stlBinaryHeaderSize
	for i := uint32(0); i < count; i++ {
		var vals [12]float64
		for j := 0; j < 12; j++ {
			bits := binary.LittleEndian.Uint32(data[off : off+4])
			vals[j] = float64(math.Float32frombits(bits))
			off += 4
		}
		off += 2 // attribute byte count
		normals = append(normals, [3]float64{vals[0], vals[1], vals[2]})
		a := w.add([3]float64{vals[3], vals[4], vals[5]})
		b := w.add([3]float64{vals[6], vals[7], vals[8]})
		c := w.add([3]float64{vals[9], vals[10], vals[11]})
		faces = append(faces, [3]int{a, b, c})
	}

	return &Mesh{Vertices: w.vertices, Faces: faces, FaceNormals: normals}, nil
}

func decodeASCIISTL(data []byte) (*Mesh, error) {
	w := newVertexWelder(64)
	var faces [][3]int
	var normals [][3]float64
	var tri [3]int
	triFill := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			// "facet normal nx ny nz"
			if len(fields) >= 5 && fields[1] == "normal" {
				n, err := parseVec3(fields[2:5])
				if err != nil {
					return nil, fmt.Errorf("ascii stl line %d: %w", lineNo, err)
				}
				normals = append(normals, n)
			}
			triFill = 0
		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("ascii stl line %d: short vertex line", lineNo)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("ascii stl line %d: %w", lineNo, err)
			}
			if triFill < 3 {
				tri[triFill] = w.add(v)
				triFill++
			}
		case "endfacet":
			if triFill != 3 {
				return nil, fmt.Errorf("ascii stl line %d: facet with %d vertices", lineNo, triFill)
			}
			faces = append(faces, tri)
			triFill = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ascii stl: %w", err)
	}
	if len(normals) != len(faces) {
		normals = nil
	}
	return &Mesh{Vertices: w.vertices, Faces: faces, FaceNormals: normals}, nil
}

// encodeSTL writes the mesh as binary STL.
func encodeSTL(wr io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(wr)
	header := make([]byte, 80)
	copy(header, []byte("scanforge binary stl"))
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Faces))); err != nil {
		return err
	}
	buf := make([]byte, 50)
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		vals := [12]float64{
			n[0], n[1], n[2],
			m.Vertices[f[0]][0], m.Vertices[f[0]][1], m.Vertices[f[0]][2],
			m.Vertices[f[1]][0], m.Vertices[f[1]][1], m.Vertices[f[1]][2],
			m.Vertices[f[2]][0], m.Vertices[f[2]][1], m.Vertices[f[2]][2],
		}
		for j, v := range vals {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(float32(v)))
		}
		buf[48], buf[49] = 0, 0
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// vertexWelder merges exactly coincident vertices while preserving first-seen
// order, restoring an indexed mesh from per-facet soup.
type vertexWelder struct {
	vertices [][3]float64
	index    map[[3]float64]int
}

func newVertexWelder(capHint int) *vertexWelder {
	return &vertexWelder{index: make(map[[3]float64]int, capHint)}
}

func (w *vertexWelder) add(v [3]float64) int {
	if i, ok := w.index[v]; ok {
		return i
	}
	i := len(w.vertices)
	w.vertices = append(w.vertices, v)
	w.index[v] = i
	return i
}

func parseVec3(fields []string) ([3]float64, error) {
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, fmt.Errorf("bad coordinate %q: %w", fields[i], err)
		}
		v[i] = f
	}
	return v, nil
}
