// Package mesh provides the triangle mesh type consumed by the fitting
// pipeline, codecs for the interchange formats the upstream reconstruction
// emits (OBJ, STL), cross-section analysis, and the preprocessing stage
// that brings a raw scan into the canonical body frame.
package mesh

import (
	"errors"
	"fmt"

	"github.com/atelier-data/bodyfit/internal/geom"
)

// Mesh is an indexed triangle mesh. Vertices are shared between faces;
// faces index into Vertices.
type Mesh struct {
	Vertices []geom.Vec
	Faces    [][3]int
}

// ErrEmptyMesh is returned for meshes with no vertices.
var ErrEmptyMesh = errors.New("mesh has no vertices")

// Validate checks structural integrity: at least one vertex and all face
// indices in range.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return ErrEmptyMesh
	}
	for fi, f := range m.Faces {
		for _, vi := range f {
			if vi < 0 || vi >= len(m.Vertices) {
				return fmt.Errorf("face %d references vertex %d, mesh has %d vertices", fi, vi, len(m.Vertices))
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([]geom.Vec, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	return out
}

// Bounds returns the axis-aligned bounding box. An empty mesh returns two
// zero vectors.
func (m *Mesh) Bounds() (min, max geom.Vec) {
	if len(m.Vertices) == 0 {
		return geom.Zero, geom.Zero
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		if v.X < min.X {
			min.X = v.X
		}
		if v.Y < min.Y {
			min.Y = v.Y
		}
		if v.Z < min.Z {
			min.Z = v.Z
		}
		if v.X > max.X {
			max.X = v.X
		}
		if v.Y > max.Y {
			max.Y = v.Y
		}
		if v.Z > max.Z {
			max.Z = v.Z
		}
	}
	return min, max
}

// Height returns the Z extent.
func (m *Mesh) Height() float64 {
	min, max := m.Bounds()
	return max.Z - min.Z
}

// Centroid returns the mean vertex position.
func (m *Mesh) Centroid() geom.Vec {
	if len(m.Vertices) == 0 {
		return geom.Zero
	}
	var sum geom.Vec
	for _, v := range m.Vertices {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(len(m.Vertices)))
}

// Translate moves every vertex by d.
func (m *Mesh) Translate(d geom.Vec) {
	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Add(d)
	}
}

// Scale multiplies every vertex by s about the origin.
func (m *Mesh) Scale(s float64) {
	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Mul(s)
	}
}

// TransformVerts applies f to every vertex in place.
func (m *Mesh) TransformVerts(f func(geom.Vec) geom.Vec) {
	for i := range m.Vertices {
		m.Vertices[i] = f(m.Vertices[i])
	}
}
