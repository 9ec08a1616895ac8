package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func vecClose(a, b Vec, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func TestAxisAngleQuarterTurn(t *testing.T) {
	r := AxisAngle(V(0, 0, 1), math.Pi/2)
	got := r.Apply(V(1, 0, 0))
	if !vecClose(got, V(0, 1, 0), eps) {
		t.Errorf("quarter turn about Z: got %v, want (0,1,0)", got)
	}
}

func TestBetweenAlignsVectors(t *testing.T) {
	cases := []struct {
		name     string
		from, to Vec
	}{
		{"orthogonal", V(1, 0, 0), V(0, 1, 0)},
		{"oblique", V(1, 2, 3), V(-2, 0.5, 1)},
		{"parallel", V(0, 0, 2), V(0, 0, 5)},
		{"antiparallel", V(0, 1, 0), V(0, -3, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Between(tc.from, tc.to)
			got := r.Apply(tc.from)
			want, _ := SafeNormalize(tc.to)
			gotN, _ := SafeNormalize(got)
			if !vecClose(gotN, want, 1e-9) {
				t.Errorf("Between(%v,%v).Apply = %v, want direction %v", tc.from, tc.to, gotN, want)
			}
		})
	}
}

func TestMulComposesLeftToRight(t *testing.T) {
	a := AxisAngle(V(0, 0, 1), math.Pi/2)
	b := AxisAngle(V(1, 0, 0), math.Pi/2)
	v := V(0, 1, 0)
	got := a.Mul(b).Apply(v)
	want := a.Apply(b.Apply(v))
	if !vecClose(got, want, eps) {
		t.Errorf("composition mismatch: got %v, want %v", got, want)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	r := AxisAngle(V(1, -2, 0.5), 1.1)
	v := V(0.3, -0.7, 2.2)
	got := r.Inverse().Apply(r.Apply(v))
	if !vecClose(got, v, eps) {
		t.Errorf("inverse round trip: got %v, want %v", got, v)
	}
}

func TestMatRoundTrip(t *testing.T) {
	angles := []float64{0.1, 1.0, 2.5, 3.0}
	axes := []Vec{V(1, 0, 0), V(0, 1, 0), V(0, 0, 1), V(1, 1, 1), V(-2, 0.3, 1)}
	for _, ax := range axes {
		for _, ang := range angles {
			r := AxisAngle(ax, ang)
			back := RotFromMat(r.Mat())
			v := V(0.2, -1.3, 0.8)
			if !vecClose(r.Apply(v), back.Apply(v), 1e-9) {
				t.Errorf("matrix round trip failed for axis %v angle %v", ax, ang)
			}
		}
	}
}

func TestEulerXYZRoundTrip(t *testing.T) {
	cases := [][3]float64{
		{0.3, -0.4, 1.2},
		{-1.0, 0.7, -0.2},
		{0, 0, 0},
		{0.01, 1.5, -2.9},
	}
	for _, c := range cases {
		r := FromEulerXYZ(c[0], c[1], c[2])
		a, b, cc := r.EulerXYZ()
		back := FromEulerXYZ(a, b, cc)
		v := V(1.1, -0.2, 0.5)
		if !vecClose(r.Apply(v), back.Apply(v), 1e-8) {
			t.Errorf("euler round trip failed for %v: decomposed to (%v,%v,%v)", c, a, b, cc)
		}
	}
}

func TestScaledHalvesAngle(t *testing.T) {
	r := AxisAngle(V(0, 0, 1), 1.0)
	half := r.Scaled(0.5)
	if math.Abs(half.Angle()-0.5) > 1e-9 {
		t.Errorf("Scaled(0.5) angle = %v, want 0.5", half.Angle())
	}
	if got := r.Scaled(0).Angle(); got > 1e-9 {
		t.Errorf("Scaled(0) angle = %v, want 0", got)
	}
}

func TestConjugateByMatchesChangeOfBasis(t *testing.T) {
	basis := AxisAngle(V(0, 1, 0), 0.8)
	delta := AxisAngle(V(0, 0, 1), 0.6)
	local := delta.ConjugateBy(basis)
	// basis · local == delta · basis
	v := V(0.4, 0.9, -0.1)
	lhs := basis.Mul(local).Apply(v)
	rhs := delta.Mul(basis).Apply(v)
	if !vecClose(lhs, rhs, 1e-9) {
		t.Errorf("conjugation identity violated: %v vs %v", lhs, rhs)
	}
}

func TestConvertCoordinatesSelfInverse(t *testing.T) {
	f := DefaultAxisFlip()
	if err := f.Validate(); err != nil {
		t.Fatalf("default flip invalid: %v", err)
	}
	pts := []Vec{V(0.1, -0.2, 1.7), V(-3, 2, 0), Zero}
	for _, p := range pts {
		twice := ConvertCoordinates(ConvertCoordinates(p, f), f)
		if twice != p {
			t.Errorf("double conversion of %v = %v, want exact identity", p, twice)
		}
	}
	if got := ConvertCoordinates(V(1, 2, 3), f); got != V(-1, 2, 3) {
		t.Errorf("default flip should mirror X only, got %v", got)
	}
}

func TestAxisFlipValidate(t *testing.T) {
	bad := AxisFlip{X: 0.5, Y: 1, Z: 1}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for non-unit flip component")
	}
}
