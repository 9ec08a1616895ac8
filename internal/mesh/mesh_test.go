package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/atelier-data/bodyfit/internal/geom"
)

func boxMesh() *Mesh {
	return &Mesh{
		Vertices: []geom.Vec{
			geom.V(-1, -2, 0), geom.V(1, -2, 0), geom.V(1, 2, 0), geom.V(-1, 2, 0),
			geom.V(-1, -2, 3), geom.V(1, -2, 3), geom.V(1, 2, 3), geom.V(-1, 2, 3),
		},
		Faces: [][3]int{{0, 1, 2}, {0, 2, 3}, {4, 5, 6}, {4, 6, 7}},
	}
}

func TestValidate(t *testing.T) {
	if err := boxMesh().Validate(); err != nil {
		t.Fatalf("valid mesh rejected: %v", err)
	}

	empty := &Mesh{}
	if err := empty.Validate(); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("empty mesh: got %v, want ErrEmptyMesh", err)
	}

	bad := boxMesh()
	bad.Faces = append(bad.Faces, [3]int{0, 1, 99})
	if err := bad.Validate(); err == nil {
		t.Error("out-of-range face index accepted")
	}
}

func TestBoundsAndHeight(t *testing.T) {
	m := boxMesh()
	lo, hi := m.Bounds()
	if lo != geom.V(-1, -2, 0) || hi != geom.V(1, 2, 3) {
		t.Errorf("bounds = %v, %v", lo, hi)
	}
	if h := m.Height(); h != 3 {
		t.Errorf("height = %v, want 3", h)
	}
}

func TestCentroid(t *testing.T) {
	c := boxMesh().Centroid()
	want := geom.V(0, 0, 1.5)
	if math.Abs(c.X-want.X) > 1e-12 || math.Abs(c.Y-want.Y) > 1e-12 || math.Abs(c.Z-want.Z) > 1e-12 {
		t.Errorf("centroid = %v, want %v", c, want)
	}
}

func TestTranslateScale(t *testing.T) {
	m := boxMesh()
	m.Translate(geom.V(1, 0, -1))
	m.Scale(2)
	lo, hi := m.Bounds()
	if lo != geom.V(0, -4, -2) || hi != geom.V(4, 4, 4) {
		t.Errorf("after translate+scale: bounds %v, %v", lo, hi)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := boxMesh()
	c := m.Clone()
	c.Vertices[0] = geom.V(99, 99, 99)
	c.Faces[0] = [3]int{1, 2, 3}
	if m.Vertices[0] == c.Vertices[0] {
		t.Error("clone shares vertex storage")
	}
	if m.Faces[0] == c.Faces[0] {
		t.Error("clone shares face storage")
	}
}

func TestTransformVerts(t *testing.T) {
	m := boxMesh()
	m.TransformVerts(func(v geom.Vec) geom.Vec { return geom.V(-v.X, v.Y, v.Z) })
	lo, hi := m.Bounds()
	if lo != geom.V(-1, -2, 0) || hi != geom.V(1, 2, 3) {
		t.Errorf("mirror changed bounds: %v, %v", lo, hi)
	}
}
