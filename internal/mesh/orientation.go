package mesh

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/atelier-data/bodyfit/internal/geom"
)

// ErrOrientationAmbiguous is returned when the vertex distribution has no
// clear principal direction, so the vertical axis cannot be recovered. This
// is fatal for the pipeline: every later stage assumes a known up axis.
var ErrOrientationAmbiguous = errors.New("orientation ambiguous: no dominant principal axis")

// Orientation is a detected axis correction: a permutation of the source
// axes plus per-axis sign flips. Reconstruction backends disagree on which
// axis is up and whether the frame is mirrored, but they emit axis-aligned
// bodies, so a discrete correction suffices and keeps normalization exactly
// idempotent.
type Orientation struct {
	// Perm[k] is the source axis index feeding canonical axis k.
	Perm [3]int
	// Sign[k] multiplies the mapped component, each entry +1 or -1.
	Sign [3]float64
	// Spread is the ratio of the largest principal extent to the second
	// largest. Values near 1 mean the detection had nothing to grab.
	Spread float64
	// UpFlipped records that the census found the body head-down.
	UpFlipped bool
}

// IsIdentity reports whether the correction leaves the mesh unchanged.
func (o Orientation) IsIdentity() bool {
	return o.Perm == [3]int{0, 1, 2} && o.Sign == [3]float64{1, 1, 1}
}

// Apply maps a source-frame position into the canonical frame.
func (o Orientation) Apply(v geom.Vec) geom.Vec {
	return geom.V(
		o.Sign[0]*component(v, o.Perm[0]),
		o.Sign[1]*component(v, o.Perm[1]),
		o.Sign[2]*component(v, o.Perm[2]),
	)
}

func component(v geom.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// OrientationParams tunes detection. Values come from the tuning config.
type OrientationParams struct {
	// MinSpread is the minimum principal extent ratio below which the
	// orientation is declared ambiguous.
	MinSpread float64
	// Slice holds the loop assembly settings for the up/down census.
	Slice SliceParams
}

// DetectOrientation recovers the axis correction for an arbitrarily
// oriented body mesh.
//
// The vertical axis comes from principal component analysis of the vertex
// cloud: a standing body is much taller than it is wide, so the dominant
// eigenvector of the position covariance points along the body axis. Of
// the two remaining source axes, the wider one (shoulders, arms) becomes
// canonical X and the shallower one (chest depth) becomes Y. The up sign
// comes from a cross-section census: near the feet a cut sees two loops
// (the legs), near the head it sees one. Sign choices that would mirror
// the body are repaired by flipping Y, keeping the correction a proper
// rotation so left and right are preserved.
func DetectOrientation(m *Mesh, p OrientationParams) (Orientation, error) {
	o := Orientation{Perm: [3]int{0, 1, 2}, Sign: [3]float64{1, 1, 1}}
	if len(m.Vertices) < 4 {
		return o, fmt.Errorf("%w: only %d vertices", ErrOrientationAmbiguous, len(m.Vertices))
	}

	ev, evec, err := principalAxes(m)
	if err != nil {
		return o, err
	}
	// Eigenvalues ascending: ev[2] is the dominant variance.
	if ev[1] <= 0 {
		return o, fmt.Errorf("%w: degenerate vertex distribution", ErrOrientationAmbiguous)
	}
	o.Spread = math.Sqrt(ev[2] / ev[1])
	if o.Spread < p.MinSpread {
		return o, fmt.Errorf("%w: principal extent ratio %.2f below %.2f", ErrOrientationAmbiguous, o.Spread, p.MinSpread)
	}

	// The source axis most aligned with the dominant eigenvector is up.
	up := 0
	best := math.Abs(evec[0])
	for i := 1; i < 3; i++ {
		if a := math.Abs(evec[i]); a > best {
			up, best = i, a
		}
	}

	// Wider of the two remaining source axes becomes X (left-right),
	// the narrower one Y (depth).
	rem := remainingAxes(up)
	min, max := m.Bounds()
	extents := [3]float64{max.X - min.X, max.Y - min.Y, max.Z - min.Z}
	if extents[rem[0]] >= extents[rem[1]] {
		o.Perm = [3]int{rem[0], rem[1], up}
	} else {
		o.Perm = [3]int{rem[1], rem[0], up}
	}

	// Census along the new up axis: legs read as two loops, the head as
	// one. When clothing merges the legs, fall back to comparing loop
	// sizes (a head ring is much smaller than a leg or ankle ring).
	permuted := m.Clone()
	permuted.TransformVerts(o.Apply)
	pmin, pmax := permuted.Bounds()
	h := pmax.Z - pmin.Z
	lowLoops := SliceLoops(permuted, pmin.Z+0.12*h, p.Slice)
	highLoops := SliceLoops(permuted, pmin.Z+0.88*h, p.Slice)
	switch {
	case len(lowLoops) >= 2 && len(highLoops) <= 1:
		// Feet down already.
	case len(highLoops) >= 2 && len(lowLoops) <= 1:
		o.Sign[2] = -1
		o.UpFlipped = true
	default:
		if loopRadius(lowLoops) < loopRadius(highLoops) {
			o.Sign[2] = -1
			o.UpFlipped = true
		}
	}

	// Keep the correction a proper rotation. An odd permutation or an odd
	// number of flips mirrors the body and would swap left for right;
	// flipping depth instead is safe because no stage depends on the
	// facing sign before pose solving re-derives it.
	if transformDeterminant(o) < 0 {
		o.Sign[1] = -o.Sign[1]
	}
	return o, nil
}

// principalAxes returns the eigenvalues (ascending) of the vertex position
// covariance and the dominant eigenvector.
func principalAxes(m *Mesh) ([3]float64, [3]float64, error) {
	c := m.Centroid()
	var sxx, syy, szz, sxy, sxz, syz float64
	for _, v := range m.Vertices {
		dx, dy, dz := v.X-c.X, v.Y-c.Y, v.Z-c.Z
		sxx += dx * dx
		syy += dy * dy
		szz += dz * dz
		sxy += dx * dy
		sxz += dx * dz
		syz += dy * dz
	}
	n := float64(len(m.Vertices))
	cov := mat.NewSymDense(3, []float64{
		sxx / n, sxy / n, sxz / n,
		sxy / n, syy / n, syz / n,
		sxz / n, syz / n, szz / n,
	})
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return [3]float64{}, [3]float64{}, fmt.Errorf("%w: covariance eigendecomposition failed", ErrOrientationAmbiguous)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	return [3]float64{vals[0], vals[1], vals[2]},
		[3]float64{vecs.At(0, 2), vecs.At(1, 2), vecs.At(2, 2)}, nil
}

func remainingAxes(up int) [2]int {
	switch up {
	case 0:
		return [2]int{1, 2}
	case 1:
		return [2]int{0, 2}
	}
	return [2]int{0, 1}
}

func loopRadius(loops []Loop) float64 {
	if len(loops) == 0 {
		return 0
	}
	var sum float64
	for _, l := range loops {
		sum += l.MeanRadius()
	}
	return sum / float64(len(loops))
}

// transformDeterminant returns the determinant of the permutation+flip
// matrix: permutation parity times the product of the signs.
func transformDeterminant(o Orientation) float64 {
	parity := 1.0
	p := o.Perm
	// Count inversions of the 3-element permutation.
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if p[i] > p[j] {
				parity = -parity
			}
		}
	}
	return parity * o.Sign[0] * o.Sign[1] * o.Sign[2]
}
