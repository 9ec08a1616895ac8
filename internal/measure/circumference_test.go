package measure

import (
	"math"
	"testing"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/testutil"
)

func TestMeasureMatchesModelDims(t *testing.T) {
	p := testutil.HourglassPhenotype()
	model := anny.NewModel()
	dims := anny.Dims(p)

	m := NewExtractor(model, config.EmptyTuning()).Measure(p)

	if math.Abs(m.HeightCM-dims.Stature*100) > 0.1 {
		t.Errorf("height %.1f cm, want %.1f", m.HeightCM, dims.Stature*100)
	}
	within := func(name string, gotCM, wantM float64) {
		t.Helper()
		want := wantM * 100
		if math.Abs(gotCM-want) > 0.03*want {
			t.Errorf("%s = %.1f cm, want %.1f within 3%%", name, gotCM, want)
		}
	}
	within("bust", m.BustCM, dims.BustGirth)
	within("waist", m.WaistCM, dims.WaistGirth)
	within("hips", m.HipsCM, dims.HipGirth)

	if m.WaistCM >= m.BustCM || m.BustCM >= m.HipsCM {
		t.Errorf("girth ordering broken: bust %.1f waist %.1f hips %.1f",
			m.BustCM, m.WaistCM, m.HipsCM)
	}
}

func TestMeasureLengthsPlausible(t *testing.T) {
	p := testutil.HourglassPhenotype()
	m := NewExtractor(anny.NewModel(), config.EmptyTuning()).Measure(p)

	if m.ShoulderWidthCM <= 20 || m.ShoulderWidthCM >= 60 {
		t.Errorf("shoulder width %.1f cm", m.ShoulderWidthCM)
	}
	if m.ArmLengthCM <= 40 || m.ArmLengthCM >= 80 {
		t.Errorf("arm length %.1f cm", m.ArmLengthCM)
	}
	if m.InseamCM <= 0.35*m.HeightCM || m.InseamCM >= 0.60*m.HeightCM {
		t.Errorf("inseam %.1f cm against height %.1f", m.InseamCM, m.HeightCM)
	}
	if m.HollowToHemCM <= m.InseamCM || m.HollowToHemCM >= m.HeightCM {
		t.Errorf("hollow-to-hem %.1f cm", m.HollowToHemCM)
	}
	if m.ThighCM <= 0 || m.ThighCM >= m.HipsCM {
		t.Errorf("thigh %.1f cm against hips %.1f", m.ThighCM, m.HipsCM)
	}
	if m.UpperArmCM <= 0 || m.UpperArmCM >= m.ThighCM {
		t.Errorf("upper arm %.1f cm against thigh %.1f", m.UpperArmCM, m.ThighCM)
	}
}

func TestMeasureDeterministic(t *testing.T) {
	p := testutil.HourglassPhenotype()
	e := NewExtractor(anny.NewModel(), config.EmptyTuning())
	if a, b := e.Measure(p), e.Measure(p); a != b {
		t.Errorf("repeated measurement differs:\n%+v\n%+v", a, b)
	}
}

func TestMeasureTracksWeightAxis(t *testing.T) {
	p := testutil.HourglassPhenotype()
	e := NewExtractor(anny.NewModel(), config.EmptyTuning())
	slim := p
	slim.Weight = 0.3
	a, b := e.Measure(slim), e.Measure(p)
	if a.BustCM >= b.BustCM || a.WaistCM >= b.WaistCM || a.HipsCM >= b.HipsCM {
		t.Errorf("girths did not grow with the weight axis:\nslim %+v\nfull %+v", a, b)
	}
	if math.Abs(a.HeightCM-b.HeightCM) > 1e-9 {
		t.Errorf("height moved with weight: %.2f vs %.2f", a.HeightCM, b.HeightCM)
	}
}
