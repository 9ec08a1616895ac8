// Package measure turns a fitted phenotype into garment measurements,
// a body type classification, and US bridal sizing. Girths are taped off
// the regenerated rest-pose body so posture in the scan cannot distort
// them.
package measure

import (
	"log"
	"math"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/landmarks"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/units"
)

// Measurements is the tape-measure card for a fitted body, all values in
// centimeters.
type Measurements struct {
	HeightCM        float64 `json:"height_cm"`
	BustCM          float64 `json:"bust_cm"`
	WaistCM         float64 `json:"waist_cm"`
	HipsCM          float64 `json:"hips_cm"`
	ShoulderWidthCM float64 `json:"shoulder_width_cm"`

	NeckCM     float64 `json:"neck_cm"`
	ThighCM    float64 `json:"thigh_cm"`
	UpperArmCM float64 `json:"upper_arm_cm"`

	ArmLengthCM   float64 `json:"arm_length_cm"`
	TorsoLengthCM float64 `json:"torso_length_cm"`
	InseamCM      float64 `json:"inseam_cm"`
	HollowToHemCM float64 `json:"hollow_to_hem_cm"`
}

// thighLevel is the stature fraction for the thigh tape, low enough that
// the legs read as separate cross sections.
const thighLevel = 0.33

// Extractor tapes a generated body.
type Extractor struct {
	model *anny.Model
	tun   *config.Tuning
}

func NewExtractor(model *anny.Model, tun *config.Tuning) *Extractor {
	return &Extractor{model: model, tun: tun}
}

// Measure regenerates the rest-pose body for the phenotype and tapes it.
// Girth levels reuse the landmark proportion table so the tape and the
// landmark extractor agree on where bust, waist and hip live. Any level
// whose cross section cannot be resolved falls back to the analytic girth
// of the body model.
func (e *Extractor) Measure(p anny.Phenotype) Measurements {
	body := e.model.Generate(p)
	s := body.Dims.Stature
	pri := landmarks.PriorsFromTuning(e.tun)
	sp := mesh.SliceParams{
		HalfBand: e.tun.GetSliceBandM(),
		Eps:      e.tun.GetLoopEpsM(),
		MinPts:   e.tun.GetLoopMinPoints(),
	}
	zAt := func(frac float64) float64 { return (frac - pri.Pelvis) * s }

	var out Measurements
	out.HeightCM = units.MetersToCM(s)
	out.BustCM = units.MetersToCM(e.girthCentral(body.Mesh, zAt(pri.Bust), sp, "bust", body.Dims.BustGirth))
	out.WaistCM = units.MetersToCM(e.girthCentral(body.Mesh, zAt(pri.Waist), sp, "waist", body.Dims.WaistGirth))
	out.HipsCM = units.MetersToCM(e.girthCentral(body.Mesh, zAt(pri.Hip), sp, "hips", body.Dims.HipGirth))
	out.NeckCM = units.MetersToCM(e.girthCentral(body.Mesh, zAt(pri.Neck), sp, "neck", body.Dims.NeckGirth))
	out.ThighCM = units.MetersToCM(e.girthLateral(body.Mesh, zAt(thighLevel), sp, "thigh", body.Dims.ThighGirth))
	out.UpperArmCM = units.MetersToCM(e.girthLateral(body.Mesh, zAt(pri.Bust), sp, "upper_arm", body.Dims.ArmGirth))

	sk := body.Skeleton
	upperArm := sk.Bones[anny.BoneUpperArmL]
	foreArm := sk.Bones[anny.BoneForearmL]
	out.ShoulderWidthCM = units.MetersToCM(
		upperArm.Head.Sub(sk.Bones[anny.BoneUpperArmR].Head).Norm())
	out.ArmLengthCM = units.MetersToCM(upperArm.Length() + foreArm.Length())

	neckZ := sk.Bones[anny.BoneNeck].Head.Z
	pelvisZ := sk.Bones[anny.BoneRoot].Head.Z
	out.TorsoLengthCM = units.MetersToCM(neckZ - pelvisZ)

	lo, _ := body.Mesh.Bounds()
	out.InseamCM = units.MetersToCM(zAt(pri.Crotch) - lo.Z)
	out.HollowToHemCM = units.MetersToCM(neckZ - lo.Z)
	return out
}

// girthCentral tapes the cross-section loop nearest the body axis.
func (e *Extractor) girthCentral(m *mesh.Mesh, z float64, sp mesh.SliceParams, name string, analytic float64) float64 {
	loops := mesh.SliceLoops(m, z, sp)
	if loop, ok := mesh.MostCentralLoop(loops); ok {
		return loop.Perimeter()
	}
	log.Printf("[Measure] no cross section for %s at z=%.3f, using analytic girth", name, z)
	return analytic
}

// girthLateral tapes the loop farthest from the body axis, which picks a
// limb over the trunk at levels where both are present.
func (e *Extractor) girthLateral(m *mesh.Mesh, z float64, sp mesh.SliceParams, name string, analytic float64) float64 {
	loops := mesh.SliceLoops(m, z, sp)
	var best mesh.Loop
	bestX := -1.0
	for _, loop := range loops {
		c := loop.Centroid()
		if d := math.Abs(c.X); d > bestX {
			bestX = d
			best = loop
		}
	}
	if bestX > 0.01 {
		return best.Perimeter()
	}
	log.Printf("[Measure] no lateral cross section for %s at z=%.3f, using analytic girth", name, z)
	return analytic
}
