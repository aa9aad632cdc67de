package mesh

import (
	"path/filepath"
	"strings"
)

// Format identifies a mesh file format at the loader boundary.
type Format string

// Recognized formats. STL, PLY and OBJ have codecs; the remainder are declared
// identifiers without an implemented codec and must be treated as a capability
// query via SupportedFormats.
const (
	FormatSTL  Format = "stl"
	FormatPLY  Format = "ply"
	FormatOBJ  Format = "obj"
	FormatGLTF Format = "gltf"
	FormatGLB  Format = "glb"
	FormatFBX  Format = "fbx"
	FormatDAE  Format = "dae" // Collada
)

// KnownFormats lists every recognized format identifier.
var KnownFormats = []Format{
	FormatSTL, FormatPLY, FormatOBJ, FormatGLTF, FormatGLB, FormatFBX, FormatDAE,
}

// SupportedFormats returns the formats with a read/write codec.
func SupportedFormats() []Format {
	return []Format{FormatSTL, FormatPLY, FormatOBJ}
}

// IsSupported reports whether f has an implemented codec.
func IsSupported(f Format) bool {
	switch f {
	case FormatSTL, FormatPLY, FormatOBJ:
		return true
	}
	return false
}

// FormatForPath derives the format from the file extension. The boolean is
// false when the extension names no recognized format.
func FormatForPath(path string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, f := range KnownFormats {
		if string(f) == ext {
			return f, true
		}
	}
	return "", false
}
