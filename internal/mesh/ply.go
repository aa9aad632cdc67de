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

// PLY support covers ascii and binary_little_endian reading; writing emits
// ascii, which is also the serialization used for cache blobs.

type plyProperty struct {
	name      string
	isList    bool
	countType string
	valType   string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

var plyTypeSizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

func decodePLY(data []byte) (*Mesh, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	magic, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("missing ply magic")
	}

	var format string
	var elements []*plyElement
	var current *plyElement
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("unterminated ply header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
			continue
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("short format line")
			}
			format = fields[1]
			if format != "ascii" && format != "binary_little_endian" {
				return nil, fmt.Errorf("unsupported ply format %q", format)
			}
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("short element line")
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("bad element count %q: %w", fields[2], err)
			}
			current = &plyElement{name: fields[1], count: n}
			elements = append(elements, current)
		case "property":
			if current == nil {
				return nil, fmt.Errorf("property before element")
			}
			if len(fields) >= 5 && fields[1] == "list" {
				current.props = append(current.props, plyProperty{
					name: fields[4], isList: true, countType: fields[2], valType: fields[3],
				})
			} else if len(fields) >= 3 {
				current.props = append(current.props, plyProperty{name: fields[2], valType: fields[1]})
			} else {
				return nil, fmt.Errorf("short property line")
			}
		case "end_header":
			goto body
		default:
			return nil, fmt.Errorf("unexpected header keyword %q", fields[0])
		}
	}

body:
	m := &Mesh{}
	for _, el := range elements {
		switch format {
		case "ascii":
			if err := readPLYElementASCII(r, el, m); err != nil {
				return nil, err
			}
		case "binary_little_endian":
			if err := readPLYElementBinary(r, el, m); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func readPLYElementASCII(r *bufio.Reader, el *plyElement, m *Mesh) error {
	for i := 0; i < el.count; i++ {
		line, err := readNonEmptyLine(r)
		if err != nil {
			return fmt.Errorf("ply element %s row %d: %w", el.name, i, err)
		}
		fields := strings.Fields(line)
		vals := map[string]float64{}
		var list []int
		fi := 0
		for _, p := range el.props {
			if fi >= len(fields) {
				return fmt.Errorf("ply element %s row %d: short row", el.name, i)
			}
			if p.isList {
				n, err := strconv.Atoi(fields[fi])
				if err != nil {
					return fmt.Errorf("ply list count: %w", err)
				}
				fi++
				if fi+n > len(fields) {
					return fmt.Errorf("ply element %s row %d: short list", el.name, i)
				}
				list = make([]int, n)
				for j := 0; j < n; j++ {
					idx, err := strconv.Atoi(fields[fi])
					if err != nil {
						return fmt.Errorf("ply list index: %w", err)
					}
					list[j] = idx
					fi++
				}
			} else {
				v, err := strconv.ParseFloat(fields[fi], 64)
				if err != nil {
					return fmt.Errorf("ply value %q: %w", fields[fi], err)
				}
				vals[p.name] = v
				fi++
			}
		}
		storePLYRow(el, m, vals, list)
	}
	return nil
}

func readPLYElementBinary(r *bufio.Reader, el *plyElement, m *Mesh) error {
	for i := 0; i < el.count; i++ {
		vals := map[string]float64{}
		var list []int
		for _, p := range el.props {
			if p.isList {
				n, err := readPLYScalar(r, p.countType)
				if err != nil {
					return fmt.Errorf("ply element %s row %d: %w", el.name, i, err)
				}
				count := int(n)
				list = make([]int, count)
				for j := 0; j < count; j++ {
					v, err := readPLYScalar(r, p.valType)
					if err != nil {
						return fmt.Errorf("ply element %s row %d: %w", el.name, i, err)
					}
					list[j] = int(v)
				}
			} else {
				v, err := readPLYScalar(r, p.valType)
				if err != nil {
					return fmt.Errorf("ply element %s row %d: %w", el.name, i, err)
				}
				vals[p.name] = v
			}
		}
		storePLYRow(el, m, vals, list)
	}
	return nil
}

func readPLYScalar(r io.Reader, typ string) (float64, error) {
	size, ok := plyTypeSizes[typ]
	if !ok {
		return 0, fmt.Errorf("unknown ply type %q", typ)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	case "double", "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	}
	return 0, fmt.Errorf("unknown ply type %q", typ)
}

// storePLYRow folds one decoded element row into the mesh. Vertex rows take
// x/y/z and optional nx/ny/nz; face rows fan-triangulate their index list.
// Rows of other elements are consumed and dropped.
func storePLYRow(el *plyElement, m *Mesh, vals map[string]float64, list []int) {
	switch el.name {
	case "vertex":
		m.Vertices = append(m.Vertices, [3]float64{vals["x"], vals["y"], vals["z"]})
		if _, ok := vals["nx"]; ok {
			m.VertexNormals = append(m.VertexNormals, [3]float64{vals["nx"], vals["ny"], vals["nz"]})
		}
	case "face":
		for j := 2; j < len(list); j++ {
			m.Faces = append(m.Faces, [3]int{list[0], list[j-1], list[j]})
		}
	}
}

func readNonEmptyLine(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// encodePLY writes the mesh as ascii PLY, including vertex normals when
// present.
func encodePLY(wr io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(wr)
	hasNormals := len(m.VertexNormals) == len(m.Vertices) && len(m.Vertices) > 0

	fmt.Fprintf(bw, "ply\nformat ascii 1.0\ncomment scanforge\n")
	fmt.Fprintf(bw, "element vertex %d\n", len(m.Vertices))
	fmt.Fprintf(bw, "property double x\nproperty double y\nproperty double z\n")
	if hasNormals {
		fmt.Fprintf(bw, "property double nx\nproperty double ny\nproperty double nz\n")
	}
	fmt.Fprintf(bw, "element face %d\n", len(m.Faces))
	fmt.Fprintf(bw, "property list uchar int vertex_indices\nend_header\n")

	for i, v := range m.Vertices {
		if hasNormals {
			n := m.VertexNormals[i]
			fmt.Fprintf(bw, "%g %g %g %g %g %g\n", v[0], v[1], v[2], n[0], n[1], n[2])
		} else {
			fmt.Fprintf(bw, "%g %g %g\n", v[0], v[1], v[2])
		}
	}
	for _, f := range m.Faces {
		fmt.Fprintf(bw, "3 %d %d %d\n", f[0], f[1], f[2])
	}
	return bw.Flush()
}
