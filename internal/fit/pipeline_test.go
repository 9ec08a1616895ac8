package fit_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/fit"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/landmarks"
	"github.com/atelier-data/bodyfit/internal/measure"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/testutil"
)

// testTuning disables the per-site rig correction: synthetic scans have no
// capture bias, so the empirical offset would only inflate the residual.
func testTuning() *config.Tuning {
	tun := config.EmptyTuning()
	off := false
	tun.CorrectionEnabled = &off
	return tun
}

func runScan(t *testing.T, scan *mesh.Mesh, heightCM float64) *fit.Result {
	t.Helper()
	res, err := fit.NewPipeline(testTuning()).Run(context.Background(), scan, fit.Input{
		HeightCM: heightCM,
		Gender:   anny.GenderFemale,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return res
}

func TestPipelineRecoversHourglass(t *testing.T) {
	res := runScan(t, testutil.Scan(testutil.HourglassPhenotype()), 165)

	if res.Classification.Type != measure.BodyTypeHourglass {
		t.Errorf("classified %s, want hourglass", res.Classification.Type)
	}
	within := func(name string, got, want, tol float64) {
		t.Helper()
		if math.Abs(got-want) > tol {
			t.Errorf("%s = %.1f cm, want %.1f within %.1f", name, got, want, tol)
		}
	}
	// Tolerances absorb the ~2% girth inflation from scaling the mesh
	// extent to the declared crown height.
	within("bust", res.Measurements.BustCM, 94, 4)
	within("waist", res.Measurements.WaistCM, 70, 3.5)
	within("hips", res.Measurements.HipsCM, 100, 4)

	if res.Confidence <= 0.7 {
		t.Errorf("confidence %.2f on a clean synthetic scan, want above 0.7", res.Confidence)
	}
	if res.HasFlag(fit.FlagScaleClamped) || res.HasFlag(fit.FlagInsufficientLandmarks) ||
		res.HasFlag(fit.FlagConvergenceTimeout) {
		t.Errorf("unexpected flags on a clean scan: %v", res.Flags)
	}
	if len(res.Silhouettes) == 0 {
		t.Error("no silhouette recommendations")
	}
	if res.Size.OffChart {
		t.Errorf("size %d off chart for a mid-chart body", res.Size.US)
	}
}

func TestPipelineDeterministic(t *testing.T) {
	scan := testutil.Scan(testutil.HourglassPhenotype())
	a := runScan(t, scan, 165)
	b := runScan(t, scan, 165)
	if diff := cmp.Diff(a.Measurements, b.Measurements); diff != "" {
		t.Errorf("measurements differ between identical runs (-first +second):\n%s", diff)
	}
	if a.Phenotype != b.Phenotype {
		t.Errorf("phenotype differs between identical runs: %v vs %v", a.Phenotype, b.Phenotype)
	}
}

func TestPipelineDeclaredHeightScalesGirths(t *testing.T) {
	scan := testutil.Scan(testutil.HourglassPhenotype())
	short := runScan(t, scan, 160)
	tall := runScan(t, scan, 172)

	if tall.Measurements.BustCM <= short.Measurements.BustCM {
		t.Errorf("bust did not grow with declared height: %.1f at 172cm vs %.1f at 160cm",
			tall.Measurements.BustCM, short.Measurements.BustCM)
	}
	if tall.Measurements.HeightCM <= short.Measurements.HeightCM {
		t.Errorf("height did not track the declaration: %.1f vs %.1f",
			tall.Measurements.HeightCM, short.Measurements.HeightCM)
	}
}

func TestPipelineCorrectsPermutedAxes(t *testing.T) {
	base := testutil.Scan(testutil.HourglassPhenotype())
	ref := runScan(t, base, 165)

	// Y-up capture: (x, y, z) -> (x, z, -y), a pure rotation.
	scrambled := testutil.ScanPermuted(base, [3]int{0, 2, 1}, [3]float64{1, 1, -1})
	res := runScan(t, scrambled, 165)

	if !res.HasFlag(fit.FlagOrientationCorrected) {
		t.Fatalf("orientation correction not flagged, flags %v", res.Flags)
	}
	if d := math.Abs(res.Measurements.BustCM - ref.Measurements.BustCM); d > 3 {
		t.Errorf("bust drifted %.1f cm after axis correction", d)
	}
	if d := math.Abs(res.Measurements.HipsCM - ref.Measurements.HipsCM); d > 3 {
		t.Errorf("hips drifted %.1f cm after axis correction", d)
	}
}

func TestPipelineFlagsShapeSaturation(t *testing.T) {
	p := testutil.HourglassPhenotype()
	p.Weight = 0.95
	res := runScan(t, testutil.ScanInflatedXY(p, 1.3), 165)

	if !res.HasFlag(fit.FlagShapeSpaceSaturated) {
		t.Fatalf("saturation not flagged, flags %v", res.Flags)
	}
	limit := config.EmptyTuning().GetSaturationCap()
	if res.Confidence > limit {
		t.Errorf("confidence %.2f above the saturation cap %.2f", res.Confidence, limit)
	}
}

func TestPipelineDegradesWithoutArms(t *testing.T) {
	p := testutil.HourglassPhenotype()
	full := runScan(t, testutil.Scan(p), 165)
	armless := runScan(t, testutil.ScanWithoutArms(p), 165)

	if !armless.HasFlag(fit.FlagInsufficientLandmarks) {
		t.Fatalf("missing landmarks not flagged, flags %v", armless.Flags)
	}
	if armless.RecoveredJoints >= full.RecoveredJoints {
		t.Errorf("recovered %d joints without arms, %d with", armless.RecoveredJoints, full.RecoveredJoints)
	}
	if armless.Confidence >= full.Confidence {
		t.Errorf("confidence did not drop: %.2f armless vs %.2f full", armless.Confidence, full.Confidence)
	}
	if armless.Measurements.BustCM <= 0 || armless.Measurements.HipsCM <= 0 {
		t.Error("result incomplete despite non-fatal landmark shortfall")
	}
}

func TestPipelinePosedMeasurementsMatchRest(t *testing.T) {
	p := testutil.HourglassPhenotype()
	rest := runScan(t, testutil.Scan(p), 165)

	// A gentle elbow bend. Taping happens on the regenerated rest body, so
	// posture in the capture must not leak into the measurement card.
	sk := anny.NewModel().Generate(p).Skeleton
	locals := sk.RestLocals()
	bend := geom.AxisAngle(geom.V(1, 0, 0), 0.25)
	locals[anny.BoneForearmL] = bend.ConjugateBy(sk.Bones[anny.BoneForearmL].Rest)
	locals[anny.BoneForearmR] = bend.ConjugateBy(sk.Bones[anny.BoneForearmR].Rest)
	posed := runScan(t, testutil.ScanPosed(p, locals), 165)

	if posed.Classification.Type != rest.Classification.Type {
		t.Errorf("posed scan classified %s, rest scan %s",
			posed.Classification.Type, rest.Classification.Type)
	}
	if d := math.Abs(posed.Measurements.BustCM - rest.Measurements.BustCM); d > 3 {
		t.Errorf("bust drifted %.1f cm with posture", d)
	}
	if d := math.Abs(posed.Measurements.WaistCM - rest.Measurements.WaistCM); d > 3 {
		t.Errorf("waist drifted %.1f cm with posture", d)
	}
}

func TestPipelineRejectsBadHeight(t *testing.T) {
	_, err := fit.NewPipeline(testTuning()).Run(context.Background(),
		testutil.Scan(testutil.HourglassPhenotype()), fit.Input{HeightCM: 0})
	var se *fit.StageError
	if !errors.As(err, &se) || se.Stage != "preprocess" {
		t.Fatalf("got %v, want a preprocess stage error", err)
	}
}

func TestPipelineRejectsAmbiguousOrientation(t *testing.T) {
	// A spherical shell has no principal axis to hang an orientation on.
	shell := &mesh.Mesh{}
	n := 600
	for i := 0; i < n; i++ {
		z := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - z*z)
		th := math.Pi * (1 + math.Sqrt(5)) * float64(i)
		shell.Vertices = append(shell.Vertices, geom.V(r*math.Cos(th), r*math.Sin(th), z))
	}
	for i := 0; i+2 < n; i += 3 {
		shell.Faces = append(shell.Faces, [3]int{i, i + 1, i + 2})
	}

	_, err := fit.NewPipeline(testTuning()).Run(context.Background(), shell, fit.Input{HeightCM: 165})
	if !errors.Is(err, fit.ErrOrientationAmbiguous) {
		t.Fatalf("got %v, want ErrOrientationAmbiguous", err)
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fit.NewPipeline(testTuning()).Run(ctx,
		testutil.Scan(testutil.HourglassPhenotype()), fit.Input{HeightCM: 165})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestPipelineKeypointOverrides(t *testing.T) {
	scan := testutil.Scan(testutil.HourglassPhenotype())
	base := runScan(t, scan, 165)

	// Upstream detectors supply hip keypoints in the canonical frame; the
	// override counts as recovered and must not disturb the measurements.
	res, err := fit.NewPipeline(testTuning()).Run(context.Background(), scan, fit.Input{
		HeightCM: 165,
		Gender:   anny.GenderFemale,
		Keypoints: map[landmarks.JointID]geom.Vec{
			landmarks.JointHipL: geom.V(0.09, 0, 0),
			landmarks.JointHipR: geom.V(-0.09, 0, 0),
		},
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if res.RecoveredJoints < base.RecoveredJoints {
		t.Errorf("keypoint injection lost joints: %d vs %d", res.RecoveredJoints, base.RecoveredJoints)
	}
	if d := math.Abs(res.Measurements.BustCM - base.Measurements.BustCM); d > 4 {
		t.Errorf("bust drifted %.1f cm under hip keypoints", d)
	}
}
