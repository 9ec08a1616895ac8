package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atelier-data/bodyfit/internal/geom"
)

// DecodeOBJ reads a Wavefront OBJ stream. Only vertex and face records are
// used; texture coordinates, normals, groups and materials are skipped.
// Polygonal faces are fan-triangulated. Negative face indices are resolved
// relative to the vertices seen so far, per the OBJ convention.
func DecodeOBJ(r io.Reader) (*Mesh, error) {
	m := &Mesh{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: vertex needs 3 coordinates", lineNo)
			}
			var coords [3]float64
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: bad coordinate %q: %w", lineNo, fields[i+1], err)
				}
				coords[i] = f
			}
			m.Vertices = append(m.Vertices, geom.V(coords[0], coords[1], coords[2]))
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 vertices", lineNo)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				vi, err := parseOBJIndex(f, len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
				}
				idx = append(idx, vi)
			}
			for i := 1; i+1 < len(idx); i++ {
				m.Faces = append(m.Faces, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("obj read: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseOBJIndex handles the v, v/vt, v//vn and v/vt/vn face vertex forms
// and converts the 1-based (or negative relative) index to 0-based.
func parseOBJIndex(field string, nVerts int) (int, error) {
	if slash := strings.IndexByte(field, '/'); slash >= 0 {
		field = field[:slash]
	}
	vi, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("bad face index %q: %w", field, err)
	}
	if vi < 0 {
		vi = nVerts + vi
	} else {
		vi--
	}
	if vi < 0 || vi >= nVerts {
		return 0, fmt.Errorf("face index %d out of range (have %d vertices)", vi, nVerts)
	}
	return vi, nil
}

// EncodeOBJ writes the mesh as Wavefront OBJ.
func EncodeOBJ(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.Vertices {
		if _, err := fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z); err != nil {
			return err
		}
	}
	for _, f := range m.Faces {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a mesh file, dispatching on the extension (.obj or .stl).
func Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return DecodeOBJ(f)
	case ".stl":
		return DecodeSTL(f)
	default:
		return nil, fmt.Errorf("unsupported mesh format %q (want .obj or .stl)", filepath.Ext(path))
	}
}
