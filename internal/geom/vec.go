// Package geom provides the small 3D vocabulary shared by every stage of
// the fitting pipeline: vectors, rotations, and the frame conventions that
// map upstream reconstruction output onto the canonical body frame.
//
// The canonical body frame is metric, Z-up, origin at the pelvis center:
// +X is the subject's left, +Y points from back to front, +Z runs from
// feet to head.
package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vec is a point or direction in 3D space. It aliases r3.Vector so the
// full r3 method set (Add, Sub, Mul, Dot, Cross, Norm, Normalize, ...)
// is available on pipeline types without conversion.
type Vec = r3.Vector

// V is shorthand for constructing a Vec.
func V(x, y, z float64) Vec { return Vec{X: x, Y: y, Z: z} }

// Zero is the origin.
var Zero = Vec{}

const (
	// minNorm is the squared-length floor below which a vector is
	// treated as degenerate for normalization purposes.
	minNorm = 1e-18
)

// SafeNormalize returns v scaled to unit length and true, or the zero
// vector and false when v is too short to carry a direction.
func SafeNormalize(v Vec) (Vec, bool) {
	n2 := v.Norm2()
	if n2 < minNorm {
		return Zero, false
	}
	return v.Mul(1 / math.Sqrt(n2)), true
}

// Clamp limits x to the interval [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Lerp interpolates linearly between a and b; t=0 yields a, t=1 yields b.
func Lerp(a, b, t float64) float64 { return a + (b-a)*t }

// AnyOrthogonal returns a unit vector perpendicular to v. The choice is
// arbitrary but deterministic; v must be non-degenerate.
func AnyOrthogonal(v Vec) Vec {
	// Cross with the axis v is least aligned with.
	ref := V(1, 0, 0)
	if math.Abs(v.X) > math.Abs(v.Y) && math.Abs(v.X) > math.Abs(v.Z) {
		ref = V(0, 1, 0)
	}
	u, _ := SafeNormalize(v.Cross(ref))
	return u
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Vec) Vec { return a.Add(b).Mul(0.5) }
