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

	"github.com/atelier-data/bodyfit/internal/geom"
)

// DecodeSTL reads a binary or ASCII STL stream, sniffing the variant from
// the content. Shared vertices are deduplicated on exact coordinates so the
// result is an indexed mesh rather than a triangle soup.
func DecodeSTL(r io.Reader) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("stl read: %w", err)
	}
	if isBinarySTL(data) {
		return decodeBinarySTL(data)
	}
	return decodeASCIISTL(data)
}

// isBinarySTL decides between the two variants. The header alone is not
// trustworthy (binary files may start with "solid"), so the declared
// triangle count is checked against the actual byte length.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	n := binary.LittleEndian.Uint32(data[80:84])
	return len(data) == 84+int(n)*50
}

func decodeBinarySTL(data []byte) (*Mesh, error) {
	n := int(binary.LittleEndian.Uint32(data[80:84]))
	m := &Mesh{}
	dedup := make(map[[3]float32]int, n)
	off := 84
	for i := 0; i < n; i++ {
		// 12 bytes normal (skipped), 3 vertices, 2 bytes attribute.
		off += 12
		var face [3]int
		for c := 0; c < 3; c++ {
			var key [3]float32
			for k := 0; k < 3; k++ {
				key[k] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
				off += 4
			}
			face[c] = internVertex(m, dedup, key)
		}
		off += 2
		m.Faces = append(m.Faces, face)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeASCIISTL(data []byte) (*Mesh, error) {
	m := &Mesh{}
	dedup := make(map[[3]float32]int)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	var face []int
	sawSolid := false
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			sawSolid = true
		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("stl line %d: vertex needs 3 coordinates", lineNo)
			}
			var key [3]float32
			for k := 0; k < 3; k++ {
				f, err := strconv.ParseFloat(fields[k+1], 32)
				if err != nil {
					return nil, fmt.Errorf("stl line %d: bad coordinate %q: %w", lineNo, fields[k+1], err)
				}
				key[k] = float32(f)
			}
			face = append(face, internVertex(m, dedup, key))
		case "endfacet":
			if len(face) != 3 {
				return nil, fmt.Errorf("stl line %d: facet has %d vertices, want 3", lineNo, len(face))
			}
			m.Faces = append(m.Faces, [3]int{face[0], face[1], face[2]})
			face = face[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("stl read: %w", err)
	}
	if !sawSolid {
		return nil, fmt.Errorf("stl: no solid record found")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func internVertex(m *Mesh, dedup map[[3]float32]int, key [3]float32) int {
	if vi, ok := dedup[key]; ok {
		return vi
	}
	vi := len(m.Vertices)
	m.Vertices = append(m.Vertices, geom.V(float64(key[0]), float64(key[1]), float64(key[2])))
	dedup[key] = vi
	return vi
}
