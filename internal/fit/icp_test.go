package fit

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
)

// torsoCloud returns a deterministic, rotationally asymmetric point cloud
// shaped like a torso column. The angular lobes break the symmetry that
// would otherwise make a Z rotation unobservable to nearest-neighbor
// matching.
func torsoCloud() []geom.Vec {
	var pts []geom.Vec
	for zi := 0; zi < 40; zi++ {
		z := -0.8 + 1.6*float64(zi)/39
		base := 0.25 - 0.08*math.Abs(z)
		for k := 0; k < 36; k++ {
			th := 2 * math.Pi * float64(k) / 36
			r := base * (1 + 0.15*math.Cos(th) + 0.05*math.Sin(2*th))
			pts = append(pts, geom.V(r*math.Cos(th), r*math.Sin(th), z))
		}
	}
	return pts
}

func TestAlignRigidRecoversKnownTransform(t *testing.T) {
	dst := torsoCloud()
	want := RigidTransform{
		Rot:   geom.AxisAngle(geom.V(0, 0, 1), 0.08),
		Trans: geom.V(0.02, -0.01, 0.03),
	}

	// src is a subset of dst pulled back through the wanted transform, so
	// the aligned source has an exact counterpart for every point.
	var src, truth []geom.Vec
	inv := want.Rot.Inverse()
	for i := 0; i < len(dst); i += 3 {
		src = append(src, inv.Apply(dst[i].Sub(want.Trans)))
		truth = append(truth, dst[i])
	}

	got, stats, err := AlignRigid(context.Background(), src, dst, config.EmptyTuning())
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if !stats.Converged {
		t.Fatalf("not converged after %d iterations, mean %.4fm", stats.Iterations, stats.MeanDistM)
	}
	if stats.MeanDistM > 0.005 {
		t.Errorf("mean distance %.4fm after convergence", stats.MeanDistM)
	}
	for i := 0; i < len(src); i += 37 {
		if d := got.Apply(src[i]).Sub(truth[i]).Norm(); d > 0.01 {
			t.Errorf("point %d maps %.4fm from its counterpart", i, d)
		}
	}
}

func TestAlignRigidSettlesOnResampledSurface(t *testing.T) {
	dst := torsoCloud()

	// The same surface sampled at offset angles and heights: no source
	// point has an exact counterpart, so the mean pair distance bottoms
	// out at the sampling floor instead of zero. Alignment must still
	// report convergence rather than burn the whole iteration budget.
	var src []geom.Vec
	for zi := 0; zi < 37; zi++ {
		z := -0.78 + 1.56*float64(zi)/36
		base := 0.25 - 0.08*math.Abs(z)
		for k := 0; k < 36; k++ {
			th := 2 * math.Pi * (float64(k) + 0.5) / 36
			r := base * (1 + 0.15*math.Cos(th) + 0.05*math.Sin(2*th))
			src = append(src, geom.V(r*math.Cos(th), r*math.Sin(th), z+0.015))
		}
	}

	_, stats, err := AlignRigid(context.Background(), src, dst, config.EmptyTuning())
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if !stats.Converged {
		t.Fatalf("did not settle: %d iterations at %.4fm", stats.Iterations, stats.MeanDistM)
	}
	if stats.MeanDistM > 0.025 {
		t.Errorf("settled mean distance %.4fm", stats.MeanDistM)
	}
}

func TestAlignRigidTooFewPoints(t *testing.T) {
	pts := []geom.Vec{geom.V(0, 0, 0), geom.V(1, 0, 0)}
	if _, _, err := AlignRigid(context.Background(), pts, torsoCloud(), config.EmptyTuning()); err == nil {
		t.Error("accepted a two-point source cloud")
	}
	if _, _, err := AlignRigid(context.Background(), torsoCloud(), pts, config.EmptyTuning()); err == nil {
		t.Error("accepted a two-point destination cloud")
	}
}

func TestAlignRigidCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := AlignRigid(ctx, torsoCloud(), torsoCloud(), config.EmptyTuning())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRigidTransformCompose(t *testing.T) {
	a := RigidTransform{Rot: geom.AxisAngle(geom.V(0, 0, 1), 0.5), Trans: geom.V(0.1, 0, 0)}
	b := RigidTransform{Rot: geom.AxisAngle(geom.V(1, 0, 0), -0.3), Trans: geom.V(0, 0.2, -0.1)}
	ab := a.then(b)

	for _, v := range []geom.Vec{geom.Zero, geom.V(0.3, -0.2, 1.1), geom.V(-1, 2, 0.5)} {
		got := ab.Apply(v)
		want := b.Apply(a.Apply(v))
		if got.Sub(want).Norm() > 1e-12 {
			t.Errorf("compose mismatch at %v: %v vs %v", v, got, want)
		}
	}
}

func TestIdentityTransform(t *testing.T) {
	id := IdentityTransform()
	v := geom.V(0.2, -0.4, 1.3)
	if id.Apply(v) != v {
		t.Errorf("identity moved %v to %v", v, id.Apply(v))
	}
}

func TestPointIndexNearest(t *testing.T) {
	pts := torsoCloud()
	ix := newPointIndex(pts, 0.05)
	for _, i := range []int{0, 123, 777, len(pts) - 1} {
		j, d := ix.nearest(pts[i])
		if j != i || d != 0 {
			t.Errorf("nearest(pts[%d]) = %d at %.4f, want itself at 0", i, j, d)
		}
	}
	// A query between grid cells still finds the true nearest point.
	q := pts[100].Add(geom.V(0.004, -0.003, 0.002))
	j, _ := ix.nearest(q)
	best, bestD := -1, math.Inf(1)
	for i, p := range pts {
		if d := q.Sub(p).Norm(); d < bestD {
			best, bestD = i, d
		}
	}
	if j != best {
		t.Errorf("nearest = %d, brute force says %d", j, best)
	}
}
