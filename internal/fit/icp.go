package fit

import (
	"context"
	"fmt"
	"log"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
)

// RigidTransform carries the rotation and translation that map scan
// coordinates onto the posed template.
type RigidTransform struct {
	Rot   geom.Rot
	Trans geom.Vec
}

// IdentityTransform returns the no-op rigid transform.
func IdentityTransform() RigidTransform {
	return RigidTransform{Rot: geom.Identity()}
}

// Apply maps v through the transform.
func (t RigidTransform) Apply(v geom.Vec) geom.Vec {
	return t.Rot.Apply(v).Add(t.Trans)
}

// then returns the transform equivalent to applying t, then step.
func (t RigidTransform) then(step RigidTransform) RigidTransform {
	return RigidTransform{
		Rot:   step.Rot.Mul(t.Rot).Normalize(),
		Trans: step.Rot.Apply(t.Trans).Add(step.Trans),
	}
}

// AlignStats reports how rigid alignment went.
type AlignStats struct {
	Iterations int     `json:"iterations"`
	MeanDistM  float64 `json:"mean_dist_m"`
	Converged  bool    `json:"converged"`
}

// Rounds during which the rotation step is damped. Later rounds take the
// full Kabsch step: by then correspondences have stabilized and a partial
// step only slows the tail of the descent.
const dampedRounds = 8

// Relative per-round improvement below which the alignment counts as
// settled. Two clouds sampled from the same surface at different offsets
// bottom out at a nonzero nearest-neighbor floor that no further
// iteration can improve on.
const stallRelImprove = 1e-3

// AlignRigid iteratively aligns src onto dst and returns the transform
// that maps src coordinates into dst's frame. Each round pairs every
// source point with its nearest destination point, drops the worst
// correspondences by distance quantile, and solves the best-fit rotation
// in closed form. The rotation step is damped in the early rounds so bad
// initial correspondences cannot overshoot.
//
// Convergence is either the absolute distance threshold or a stalled
// mean: once the trimmed mean stops improving the clouds are at their
// sampling floor and the alignment is as good as it gets. Exhausting the
// iteration budget while still improving returns the best transform found
// along with ErrConvergenceTimeout; the result is still usable.
func AlignRigid(ctx context.Context, src, dst []geom.Vec, tun *config.Tuning) (RigidTransform, AlignStats, error) {
	t := IdentityTransform()
	if len(src) < 3 || len(dst) < 3 {
		return t, AlignStats{}, fmt.Errorf("rigid alignment needs at least 3 points on each side, got %d and %d", len(src), len(dst))
	}

	maxIter := tun.GetICPMaxIterations()
	convergeM := tun.GetICPConvergenceM()
	damping := tun.GetICPRotationDamping()
	quantile := tun.GetICPOutlierQuantile()

	index := newPointIndex(dst, 0.05)
	cur := make([]geom.Vec, len(src))
	for i, p := range src {
		cur[i] = p
	}

	stats := AlignStats{}
	prevMean := 0.0
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return t, stats, fmt.Errorf("rigid alignment interrupted: %w", err)
		}
		stats.Iterations = iter + 1

		match := make([]int, len(cur))
		dists := make([]float64, len(cur))
		for i, p := range cur {
			match[i], dists[i] = index.nearest(p)
		}

		sorted := append([]float64(nil), dists...)
		sort.Float64s(sorted)
		cutoff := stat.Quantile(quantile, stat.Empirical, sorted, nil)

		var sum float64
		var kept int
		var cp, cq geom.Vec
		for i := range cur {
			if dists[i] > cutoff {
				continue
			}
			sum += dists[i]
			cp = cp.Add(cur[i])
			cq = cq.Add(dst[match[i]])
			kept++
		}
		if kept < 3 {
			log.Printf("[ICP] only %d inlier pairs, stopping", kept)
			break
		}
		mean := sum / float64(kept)
		stats.MeanDistM = mean

		if mean < convergeM {
			stats.Converged = true
			break
		}
		if iter > 0 && mean > prevMean*1.5 {
			log.Printf("[ICP] diverging at iteration %d (%.4fm -> %.4fm), stopping", iter, prevMean, mean)
			break
		}
		if iter >= dampedRounds && prevMean-mean < stallRelImprove*prevMean {
			stats.Converged = true
			log.Printf("[ICP] settled at %.4fm after %d iterations", mean, stats.Iterations)
			break
		}
		prevMean = mean

		cp = cp.Mul(1 / float64(kept))
		cq = cq.Mul(1 / float64(kept))

		h := mat.NewDense(3, 3, nil)
		for i := range cur {
			if dists[i] > cutoff {
				continue
			}
			p := cur[i].Sub(cp)
			q := dst[match[i]].Sub(cq)
			h.Set(0, 0, h.At(0, 0)+p.X*q.X)
			h.Set(0, 1, h.At(0, 1)+p.X*q.Y)
			h.Set(0, 2, h.At(0, 2)+p.X*q.Z)
			h.Set(1, 0, h.At(1, 0)+p.Y*q.X)
			h.Set(1, 1, h.At(1, 1)+p.Y*q.Y)
			h.Set(1, 2, h.At(1, 2)+p.Y*q.Z)
			h.Set(2, 0, h.At(2, 0)+p.Z*q.X)
			h.Set(2, 1, h.At(2, 1)+p.Z*q.Y)
			h.Set(2, 2, h.At(2, 2)+p.Z*q.Z)
		}

		rot, ok := kabschRotation(h)
		if !ok {
			log.Printf("[ICP] degenerate correspondence covariance at iteration %d, stopping", iter)
			break
		}
		stepScale := 1.0
		if iter < dampedRounds {
			stepScale = 1 - damping
		}
		step := RigidTransform{Rot: rot.Scaled(stepScale)}
		step.Trans = cq.Sub(step.Rot.Apply(cp))

		t = t.then(step)
		for i, p := range src {
			cur[i] = t.Apply(p)
		}
	}

	if !stats.Converged {
		return t, stats, fmt.Errorf("rigid alignment after %d iterations at %.4fm: %w",
			stats.Iterations, stats.MeanDistM, ErrConvergenceTimeout)
	}
	log.Printf("[ICP] converged in %d iterations, mean distance %.4fm", stats.Iterations, stats.MeanDistM)
	return t, stats, nil
}

// kabschRotation solves the orthogonal Procrustes problem for the 3x3
// cross-covariance h, returning the rotation that best maps the source
// cloud onto the destination cloud. A reflection in the SVD solution is
// repaired by negating the last right-singular vector.
func kabschRotation(h *mat.Dense) (geom.Rot, bool) {
	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return geom.Identity(), false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}

	var m [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[3*i+j] = r.At(i, j)
		}
	}
	return geom.RotFromMat(m), true
}
