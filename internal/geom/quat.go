package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Rot is a rotation in 3D, stored as a unit quaternion. The zero value is
// NOT a valid rotation; use Identity.
type Rot struct {
	q quat.Number
}

// Identity returns the no-op rotation.
func Identity() Rot {
	return Rot{q: quat.Number{Real: 1}}
}

// AxisAngle returns the rotation of angle radians about axis. A degenerate
// axis yields the identity.
func AxisAngle(axis Vec, angle float64) Rot {
	u, ok := SafeNormalize(axis)
	if !ok {
		return Identity()
	}
	s, c := math.Sincos(angle / 2)
	return Rot{q: quat.Number{Real: c, Imag: u.X * s, Jmag: u.Y * s, Kmag: u.Z * s}}
}

// Between returns the shortest rotation taking direction `from` onto
// direction `to`. Antiparallel inputs have no unique shortest arc; the
// rotation returned is a half-turn about an arbitrary perpendicular axis.
// Degenerate inputs yield the identity.
func Between(from, to Vec) Rot {
	f, ok := SafeNormalize(from)
	if !ok {
		return Identity()
	}
	t, ok := SafeNormalize(to)
	if !ok {
		return Identity()
	}
	d := Clamp(f.Dot(t), -1, 1)
	switch {
	case d > 1-1e-12:
		return Identity()
	case d < -1+1e-12:
		return AxisAngle(AnyOrthogonal(f), math.Pi)
	default:
		return AxisAngle(f.Cross(t), math.Acos(d))
	}
}

// Mul composes rotations: (a.Mul(b)).Apply(v) == a.Apply(b.Apply(v)).
func (r Rot) Mul(s Rot) Rot {
	return Rot{q: quat.Mul(r.q, s.q)}
}

// Inverse returns the reverse rotation.
func (r Rot) Inverse() Rot {
	return Rot{q: quat.Conj(r.q)}
}

// Apply rotates v.
func (r Rot) Apply(v Vec) Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	out := quat.Mul(quat.Mul(r.q, p), quat.Conj(r.q))
	return Vec{X: out.Imag, Y: out.Jmag, Z: out.Kmag}
}

// Normalize rescales the quaternion to unit length, guarding against
// drift accumulated over long composition chains.
func (r Rot) Normalize() Rot {
	n := quat.Abs(r.q)
	if n < 1e-18 {
		return Identity()
	}
	return Rot{q: quat.Scale(1/n, r.q)}
}

// Angle returns the rotation angle in [0, π].
func (r Rot) Angle() float64 {
	w := Clamp(math.Abs(r.q.Real), 0, 1)
	return 2 * math.Acos(w)
}

// Axis returns the unit rotation axis. Near-identity rotations have no
// meaningful axis; +Z is returned.
func (r Rot) Axis() Vec {
	v := Vec{X: r.q.Imag, Y: r.q.Jmag, Z: r.q.Kmag}
	if r.q.Real < 0 {
		v = v.Mul(-1)
	}
	u, ok := SafeNormalize(v)
	if !ok {
		return V(0, 0, 1)
	}
	return u
}

// Scaled returns the rotation about the same axis with the angle
// multiplied by t. Scaled(0) is the identity, Scaled(1) is r.
func (r Rot) Scaled(t float64) Rot {
	ang := r.Angle()
	if ang < 1e-12 {
		return Identity()
	}
	return AxisAngle(r.Axis(), ang*t)
}

// ConjugateBy expresses r in the frame defined by basis: basis⁻¹ · r · basis.
// Pose solving uses this to carry a world-frame delta into a bone's rest
// frame.
func (r Rot) ConjugateBy(basis Rot) Rot {
	return basis.Inverse().Mul(r).Mul(basis)
}

// Mat returns the equivalent 3x3 rotation matrix in row-major order.
func (r Rot) Mat() [9]float64 {
	w, x, y, z := r.q.Real, r.q.Imag, r.q.Jmag, r.q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// RotFromMat builds a rotation from a row-major 3x3 rotation matrix using
// the trace-branching method, stable for every sign pattern.
func RotFromMat(m [9]float64) Rot {
	tr := m[0] + m[4] + m[8]
	var w, x, y, z float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		w = s / 4
		x = (m[7] - m[5]) / s
		y = (m[2] - m[6]) / s
		z = (m[3] - m[1]) / s
	case m[0] > m[4] && m[0] > m[8]:
		s := math.Sqrt(1+m[0]-m[4]-m[8]) * 2
		w = (m[7] - m[5]) / s
		x = s / 4
		y = (m[1] + m[3]) / s
		z = (m[2] + m[6]) / s
	case m[4] > m[8]:
		s := math.Sqrt(1+m[4]-m[0]-m[8]) * 2
		w = (m[2] - m[6]) / s
		x = (m[1] + m[3]) / s
		y = s / 4
		z = (m[5] + m[7]) / s
	default:
		s := math.Sqrt(1+m[8]-m[0]-m[4]) * 2
		w = (m[3] - m[1]) / s
		x = (m[2] + m[6]) / s
		y = (m[5] + m[7]) / s
		z = s / 4
	}
	return Rot{q: quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}}.Normalize()
}

// EulerXYZ decomposes r into extrinsic rotations about the fixed X, Y and
// Z axes, applied in that order: r == Rz(c)·Ry(b)·Rx(a). Used by the pose
// solver to damp individual rotation components of limb bones.
func (r Rot) EulerXYZ() (a, b, c float64) {
	m := r.Mat()
	sb := Clamp(-m[6], -1, 1)
	b = math.Asin(sb)
	if math.Abs(sb) > 1-1e-9 {
		// Gimbal lock: a and c share an axis; fold everything into a.
		c = 0
		if sb > 0 {
			a = math.Atan2(m[1], m[2])
		} else {
			a = math.Atan2(-m[1], -m[2])
		}
		return a, b, c
	}
	a = math.Atan2(m[7], m[8])
	c = math.Atan2(m[3], m[0])
	return a, b, c
}

// FromEulerXYZ is the inverse of EulerXYZ: Rz(c)·Ry(b)·Rx(a).
func FromEulerXYZ(a, b, c float64) Rot {
	rx := AxisAngle(V(1, 0, 0), a)
	ry := AxisAngle(V(0, 1, 0), b)
	rz := AxisAngle(V(0, 0, 1), c)
	return rz.Mul(ry).Mul(rx)
}
