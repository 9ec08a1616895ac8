package landmarks_test

import (
	"errors"
	"math"
	"testing"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/landmarks"
	"github.com/atelier-data/bodyfit/internal/testutil"
)

func TestExtractFullScan(t *testing.T) {
	tun := config.EmptyTuning()
	p := testutil.HourglassPhenotype()
	dims := anny.Dims(p)

	res, err := landmarks.NewExtractor(tun).Extract(testutil.Scan(p))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Recovered < tun.GetMinMeasuredJoints() {
		t.Fatalf("recovered %d joints, want at least %d", res.Recovered, tun.GetMinMeasuredJoints())
	}

	// Tape girths come off the actual cross sections, so they track the
	// analytic model dimensions closely.
	within := func(name string, got, want, tol float64) {
		t.Helper()
		if math.Abs(got-want) > tol {
			t.Errorf("%s girth = %.3f m, want %.3f within %.3f", name, got, want, tol)
		}
	}
	within("bust", res.Levels.BustGirthM, dims.BustGirth, 0.08)
	within("waist", res.Levels.WaistGirthM, dims.WaistGirth, 0.06)
	within("hip", res.Levels.HipGirthM, dims.HipGirth, 0.08)

	if res.Levels.WaistGirthM >= res.Levels.BustGirthM {
		t.Error("waist girth not below bust girth on an hourglass body")
	}
	if !(res.Levels.HipZ < res.Levels.WaistZ && res.Levels.WaistZ < res.Levels.BustZ) {
		t.Errorf("levels out of order: hip %.3f waist %.3f bust %.3f",
			res.Levels.HipZ, res.Levels.WaistZ, res.Levels.BustZ)
	}
	if res.Levels.BustFromPrior || res.Levels.WaistFromPrior || res.Levels.HipFromPrior {
		t.Error("clean scan fell back to prior levels")
	}
}

func TestExtractJointSymmetry(t *testing.T) {
	tun := config.EmptyTuning()
	res, err := landmarks.NewExtractor(tun).Extract(testutil.Scan(testutil.HourglassPhenotype()))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	pairs := [][2]landmarks.JointID{
		{landmarks.JointShoulderL, landmarks.JointShoulderR},
		{landmarks.JointHipL, landmarks.JointHipR},
		{landmarks.JointKneeL, landmarks.JointKneeR},
		{landmarks.JointAnkleL, landmarks.JointAnkleR},
	}
	for _, pair := range pairs {
		l, r := res.Joints.Get(pair[0]), res.Joints.Get(pair[1])
		if l.Source == landmarks.SourcePrior || r.Source == landmarks.SourcePrior {
			continue
		}
		if l.Pos.X <= 0 || r.Pos.X >= 0 {
			t.Errorf("%s/%s on wrong sides: x %.3f and %.3f", pair[0], pair[1], l.Pos.X, r.Pos.X)
		}
		if math.Abs(l.Pos.X+r.Pos.X) > 0.03 {
			t.Errorf("%s/%s asymmetric: x %.3f and %.3f", pair[0], pair[1], l.Pos.X, r.Pos.X)
		}
	}
}

func TestExtractWithoutArms(t *testing.T) {
	tun := config.EmptyTuning()
	res, err := landmarks.NewExtractor(tun).Extract(testutil.ScanWithoutArms(testutil.HourglassPhenotype()))
	if !errors.Is(err, landmarks.ErrInsufficientLandmarks) {
		t.Fatalf("got %v, want ErrInsufficientLandmarks", err)
	}
	if res.Recovered >= tun.GetMinMeasuredJoints() {
		t.Errorf("recovered %d joints with no arms, expected below %d",
			res.Recovered, tun.GetMinMeasuredJoints())
	}

	// The result is still complete: arm joints carry prior positions.
	for _, id := range []landmarks.JointID{
		landmarks.JointElbowL, landmarks.JointElbowR,
		landmarks.JointWristL, landmarks.JointWristR,
	} {
		j := res.Joints.Get(id)
		if j.Source != landmarks.SourcePrior {
			t.Errorf("%s source = %v, want prior", id, j.Source)
		}
		if j.Pos == geom.Zero {
			t.Errorf("%s has no prior position", id)
		}
	}
}

func TestExtractWithGownLosesLegJoints(t *testing.T) {
	tun := config.EmptyTuning()
	res, err := landmarks.NewExtractor(tun).Extract(testutil.ScanWithGown(testutil.HourglassPhenotype()))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	// Under the skirt the legs merge into one loop, so knees and ankles
	// fall back to priors; the torso levels stay measurable.
	for _, id := range []landmarks.JointID{
		landmarks.JointKneeL, landmarks.JointKneeR,
		landmarks.JointAnkleL, landmarks.JointAnkleR,
	} {
		if res.Joints.Get(id).Source != landmarks.SourcePrior {
			t.Errorf("%s measured through the gown", id)
		}
	}
	if res.Levels.BustGirthM <= 0 || res.Levels.WaistGirthM <= 0 {
		t.Error("torso girths lost under the gown")
	}
}

func TestJointSetInjectOverrides(t *testing.T) {
	var js landmarks.JointSet
	js.Set(landmarks.JointHead, geom.V(0, 0, 1.6), landmarks.SourceMeasured)
	js.Inject(map[landmarks.JointID]geom.Vec{
		landmarks.JointHead: geom.V(0.01, 0, 1.58),
		landmarks.JointID(99): geom.V(9, 9, 9), // ignored
	})
	j := js.Get(landmarks.JointHead)
	if j.Source != landmarks.SourceKeypoint {
		t.Errorf("source = %v, want keypoint", j.Source)
	}
	if j.Pos != geom.V(0.01, 0, 1.58) {
		t.Errorf("pos = %v", j.Pos)
	}
	if js.Recovered() != 1 {
		t.Errorf("recovered = %d, want 1", js.Recovered())
	}
}

func TestParseJointNameRoundTrip(t *testing.T) {
	for id := landmarks.JointID(0); id < landmarks.NumJoints; id++ {
		got, err := landmarks.ParseJointName(id.String())
		if err != nil || got != id {
			t.Errorf("round trip %s: got %v, %v", id, got, err)
		}
	}
	if _, err := landmarks.ParseJointName("tailbone"); err == nil {
		t.Error("unknown joint name accepted")
	}
}

func TestPriorsFromTuningOverrides(t *testing.T) {
	tun := config.EmptyTuning()
	tun.PriorFractions = map[string]float64{"waist": 0.60, "bogus": 0.5}
	pri := landmarks.PriorsFromTuning(tun)
	if pri.Waist != 0.60 {
		t.Errorf("waist prior = %.2f, want 0.60", pri.Waist)
	}
	if pri.Hip != landmarks.DefaultPriors().Hip {
		t.Error("unrelated prior changed")
	}
}
