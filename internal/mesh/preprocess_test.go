package mesh_test

import (
	"errors"
	"math"
	"testing"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/testutil"
)

func defaultSliceParams(tun *config.Tuning) mesh.SliceParams {
	return mesh.SliceParams{
		HalfBand: tun.GetSliceBandM(),
		Eps:      tun.GetLoopEpsM(),
		MinPts:   tun.GetLoopMinPoints(),
	}
}

func orientParams(tun *config.Tuning) mesh.OrientationParams {
	return mesh.OrientationParams{
		MinSpread: tun.GetOrientationMinSpread(),
		Slice:     defaultSliceParams(tun),
	}
}

func TestDetectOrientationIdentity(t *testing.T) {
	tun := config.EmptyTuning()
	m := testutil.Scan(testutil.HourglassPhenotype())

	o, err := mesh.DetectOrientation(m, orientParams(tun))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !o.IsIdentity() {
		t.Errorf("canonical scan got correction perm=%v sign=%v", o.Perm, o.Sign)
	}
	if o.Spread < tun.GetOrientationMinSpread() {
		t.Errorf("spread %.2f below threshold on a standing body", o.Spread)
	}
}

func TestDetectOrientationRecoversPermutation(t *testing.T) {
	tun := config.EmptyTuning()
	base := testutil.Scan(testutil.HourglassPhenotype())

	cases := []struct {
		name string
		perm [3]int
		sign [3]float64
	}{
		{"y up", [3]int{0, 2, 1}, [3]float64{1, 1, 1}},
		{"x up", [3]int{2, 1, 0}, [3]float64{1, 1, 1}},
		{"upside down", [3]int{0, 1, 2}, [3]float64{1, 1, -1}},
		{"y up flipped", [3]int{0, 2, 1}, [3]float64{1, -1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scrambled := testutil.ScanPermuted(base, tc.perm, tc.sign)
			o, err := mesh.DetectOrientation(scrambled, orientParams(tun))
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			fixed := mesh.Canonicalize(scrambled, o)

			// Up axis restored: the Z extent dominates again, legs at the
			// bottom read as two loops.
			lo, hi := fixed.Bounds()
			if z := hi.Z - lo.Z; z < 0.9*base.Height() {
				t.Errorf("restored height %.3f, want about %.3f", z, base.Height())
			}
			loops := mesh.SliceLoops(fixed, lo.Z+0.15*(hi.Z-lo.Z), defaultSliceParams(tun))
			if len(loops) != 2 {
				t.Errorf("shin slice has %d loops after correction, want 2", len(loops))
			}
		})
	}
}

func TestDetectOrientationAmbiguous(t *testing.T) {
	tun := config.EmptyTuning()
	// An isotropic point shell has no dominant axis.
	m := &mesh.Mesh{}
	for i := 0; i < 500; i++ {
		a := float64(i) * 2.399963 // golden angle spiral over the sphere
		z := 1 - 2*float64(i)/499
		r := math.Sqrt(1 - z*z)
		m.Vertices = append(m.Vertices, geom.V(r*math.Cos(a), r*math.Sin(a), z))
	}
	_, err := mesh.DetectOrientation(m, orientParams(tun))
	if !errors.Is(err, mesh.ErrOrientationAmbiguous) {
		t.Errorf("sphere shell: got %v, want ErrOrientationAmbiguous", err)
	}
}

func TestNormalizeCanonicalFrame(t *testing.T) {
	tun := config.EmptyTuning()
	pre := mesh.NewPreprocessor(tun)
	scan := testutil.Scan(testutil.HourglassPhenotype())

	norm, rep, err := pre.Normalize(scan, 165)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if math.Abs(norm.Height()-1.65) > 1e-9 {
		t.Errorf("height = %.4f m, want 1.65", norm.Height())
	}
	if rep.ScaleClamped {
		t.Error("plausible scan reported scale clamping")
	}

	// Pelvis loop centroid sits at the origin.
	lo, hi := norm.Bounds()
	pelvisZ := lo.Z + tun.GetPelvisHeightFraction()*(hi.Z-lo.Z)
	if math.Abs(pelvisZ) > 1e-6 {
		t.Errorf("pelvis level at z=%.5f, want 0", pelvisZ)
	}
	loops := mesh.SliceLoops(norm, 0, defaultSliceParams(tun))
	big, ok := mesh.LargestLoop(loops)
	if !ok {
		t.Fatal("no loop at the pelvis level")
	}
	c := big.Centroid()
	if math.Hypot(c.X, c.Y) > 0.005 {
		t.Errorf("pelvis centroid at (%.4f, %.4f), want origin", c.X, c.Y)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	tun := config.EmptyTuning()
	pre := mesh.NewPreprocessor(tun)
	scan := testutil.ScanPermuted(testutil.Scan(testutil.HourglassPhenotype()),
		[3]int{0, 2, 1}, [3]float64{1, 1, 1})

	once, _, err := pre.Normalize(scan, 165)
	if err != nil {
		t.Fatalf("first normalize: %v", err)
	}
	twice, rep, err := pre.Normalize(once, 165)
	if err != nil {
		t.Fatalf("second normalize: %v", err)
	}
	if !rep.Orientation.IsIdentity() {
		t.Errorf("second pass corrected orientation again: perm=%v sign=%v",
			rep.Orientation.Perm, rep.Orientation.Sign)
	}
	if math.Abs(rep.ScaleFactor-1) > 0.01 {
		t.Errorf("second pass rescaled by %.4f, want about 1", rep.ScaleFactor)
	}
	for i := range once.Vertices {
		d := twice.Vertices[i].Sub(once.Vertices[i]).Norm()
		if d > 0.005 {
			t.Fatalf("vertex %d moved %.4f m on renormalization", i, d)
		}
	}
}

func TestScaleToHeightClamps(t *testing.T) {
	tun := config.EmptyTuning()
	pre := mesh.NewPreprocessor(tun)

	// A millimeter-tall mesh would need a factor far above the clamp.
	m := testutil.Scan(testutil.HourglassPhenotype())
	m.Scale(0.0001)
	_, clamped := pre.ScaleToHeight(m, 165)
	if !clamped {
		t.Error("extreme scale factor not clamped")
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	tun := config.EmptyTuning()
	pre := mesh.NewPreprocessor(tun)

	if _, _, err := pre.Normalize(&mesh.Mesh{}, 165); !errors.Is(err, mesh.ErrEmptyMesh) {
		t.Errorf("empty mesh: got %v, want ErrEmptyMesh", err)
	}
	scan := testutil.Scan(testutil.HourglassPhenotype())
	if _, _, err := pre.Normalize(scan, 0); err == nil {
		t.Error("zero height accepted")
	}
}

func TestConvertCoordinatesSelfInverse(t *testing.T) {
	tun := config.EmptyTuning()
	pre := mesh.NewPreprocessor(tun)

	orig := testutil.Scan(testutil.HourglassPhenotype())
	m := orig.Clone()
	pre.ConvertCoordinates(m)
	pre.ConvertCoordinates(m)
	for i, v := range m.Vertices {
		if v.Sub(orig.Vertices[i]).Norm() > 1e-12 {
			t.Fatalf("vertex %d moved after a double conversion: %v vs %v", i, v, orig.Vertices[i])
		}
	}

	// The default convention is a pure mirror, so a single application
	// flips X and leaves Y and Z alone.
	m = orig.Clone()
	pre.ConvertCoordinates(m)
	v, want := m.Vertices[0], orig.Vertices[0]
	if v.X != -want.X || v.Y != want.Y || v.Z != want.Z {
		t.Errorf("converted vertex %v, want X mirrored from %v", v, want)
	}
}
