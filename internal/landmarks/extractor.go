package landmarks

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

// ErrInsufficientLandmarks is returned when fewer joints than the
// configured minimum could be recovered from geometry. It is non-fatal:
// the returned result is complete, with the missing joints on priors, and
// the pipeline continues at a confidence penalty.
var ErrInsufficientLandmarks = errors.New("insufficient landmarks recovered from geometry")

// scanStep is the stature fraction between consecutive scan slices.
const scanStep = 0.005

// Result is the full landmark extraction output.
type Result struct {
	Joints    JointSet `json:"joints"`
	Levels    Levels   `json:"levels"`
	Stature   float64  `json:"stature"`
	Recovered int      `json:"recovered"`
}

// Extractor locates joints and tape levels on a normalized mesh.
type Extractor struct {
	tun *config.Tuning
}

func NewExtractor(tun *config.Tuning) *Extractor {
	return &Extractor{tun: tun}
}

func (e *Extractor) sliceParams() mesh.SliceParams {
	return mesh.SliceParams{
		HalfBand: e.tun.GetSliceBandM(),
		Eps:      e.tun.GetLoopEpsM(),
		MinPts:   e.tun.GetLoopMinPoints(),
	}
}

// priors returns the fraction table with any configured overrides applied.
func (e *Extractor) priors() Priors {
	return PriorsFromTuning(e.tun)
}

// Extract runs the cross-section analysis. The result is always complete:
// joints that could not be measured carry prior positions. The only error
// is ErrInsufficientLandmarks, returned alongside the complete result.
func (e *Extractor) Extract(m *mesh.Mesh) (Result, error) {
	var res Result
	min, max := m.Bounds()
	res.Stature = max.Z - min.Z
	if res.Stature <= 0 {
		return res, fmt.Errorf("%w: degenerate mesh", ErrInsufficientLandmarks)
	}

	pri := e.priors()
	slice := e.sliceParams()
	fracZ := func(f float64) float64 { return min.Z + f*res.Stature }
	loopsAt := func(f float64) []mesh.Loop { return mesh.SliceLoops(m, fracZ(f), slice) }

	// Seed every joint from priors; measurements overwrite below.
	e.seedPriors(&res, pri, fracZ)

	// Bust: scan down from the shoulders for the slice where the arms
	// separate from the trunk (1 loop becomes 3). The central loop is the
	// chest, the side loops seed the shoulder joints and arm tracking.
	bustF := -1.0
	var armL, armR mesh.SlicePoint
	haveArms := false
	for f := e.tun.GetBustScanTop(); f >= e.tun.GetBustScanBottom()-1e-9; f -= scanStep {
		loops := loopsAt(f)
		if len(loops) < 3 {
			continue
		}
		central, ok := mesh.MostCentralLoop(loops)
		if !ok {
			continue
		}
		l, r, sideOK := sideLoops(loops, central)
		if !sideOK {
			continue
		}
		bustF = f
		armL, armR = l.Centroid(), r.Centroid()
		haveArms = true
		res.Levels.BustZ = fracZ(f)
		res.Levels.BustGirthM = central.Perimeter()
		break
	}
	if bustF < 0 {
		bustF = pri.Bust
		res.Levels.BustZ = fracZ(bustF)
		res.Levels.BustFromPrior = true
		if central, ok := mesh.MostCentralLoop(loopsAt(bustF)); ok {
			res.Levels.BustGirthM = central.Perimeter()
		}
	}

	if haveArms {
		res.Joints.Set(JointShoulderL, geom.V(armL.X, armL.Y, fracZ(pri.Shoulder)), SourceMeasured)
		res.Joints.Set(JointShoulderR, geom.V(armR.X, armR.Y, fracZ(pri.Shoulder)), SourceMeasured)
		e.trackArms(&res, pri, bustF, armL, armR, fracZ, loopsAt)
	}

	// Hips: the widest trunk slice in the configured band, restricted to
	// slices where exactly three loops (trunk and both forearms) confirm
	// a clean cut above the crotch.
	hipF := -1.0
	var hipLoop mesh.Loop
	hipGirth := 0.0
	for f := e.tun.GetHipScanTop(); f >= e.tun.GetHipScanBottom()-1e-9; f -= scanStep {
		loops := loopsAt(f)
		if len(loops) != 3 {
			continue
		}
		big, ok := mesh.LargestLoop(loops)
		if !ok {
			continue
		}
		if p := big.Perimeter(); p > hipGirth {
			hipGirth, hipF, hipLoop = p, f, big
		}
	}
	if hipF < 0 {
		hipF = pri.Hip
		res.Levels.HipFromPrior = true
		if big, ok := mesh.LargestLoop(loopsAt(hipF)); ok {
			hipLoop, hipGirth = big, big.Perimeter()
		}
	}
	res.Levels.HipZ = fracZ(hipF)
	res.Levels.HipGirthM = hipGirth
	if len(hipLoop.Points) > 0 {
		e.refineHips(&res, hipLoop, fracZ(hipF))
	}

	// Waist: narrowest trunk slice between the hip and bust levels.
	waistF := -1.0
	waistGirth := math.Inf(1)
	for f := hipF + 0.02; f <= bustF-0.02+1e-9; f += scanStep {
		central, ok := mesh.MostCentralLoop(loopsAt(f))
		if !ok {
			continue
		}
		if p := central.Perimeter(); p > 0 && p < waistGirth {
			waistGirth, waistF = p, f
		}
	}
	if waistF < 0 {
		waistF = pri.Waist
		waistGirth = 0
		res.Levels.WaistFromPrior = true
		if central, ok := mesh.MostCentralLoop(loopsAt(waistF)); ok {
			waistGirth = central.Perimeter()
		}
	}
	res.Levels.WaistZ = fracZ(waistF)
	res.Levels.WaistGirthM = waistGirth

	// Pelvis: centroid of the largest loop at the centering level. After
	// normalization this sits at the origin.
	if big, ok := mesh.LargestLoop(loopsAt(pri.Pelvis)); ok {
		c := big.Centroid()
		res.Joints.Set(JointPelvis, geom.V(c.X, c.Y, fracZ(pri.Pelvis)), SourceMeasured)
	}

	// Legs: paired loops at the knee and ankle fractions.
	if l, r, ok := pairAt(loopsAt(pri.Knee)); ok {
		res.Joints.Set(JointKneeL, geom.V(l.X, l.Y, fracZ(pri.Knee)), SourceMeasured)
		res.Joints.Set(JointKneeR, geom.V(r.X, r.Y, fracZ(pri.Knee)), SourceMeasured)
	}
	if l, r, ok := pairAt(loopsAt(pri.Ankle)); ok {
		res.Joints.Set(JointAnkleL, geom.V(l.X, l.Y, fracZ(pri.Ankle)), SourceMeasured)
		res.Joints.Set(JointAnkleR, geom.V(r.X, r.Y, fracZ(pri.Ankle)), SourceMeasured)
	}

	// Neck and head: single central loops near the top.
	if central, ok := mesh.MostCentralLoop(loopsAt(pri.Neck)); ok {
		c := central.Centroid()
		res.Joints.Set(JointNeck, geom.V(c.X, c.Y, fracZ(pri.Neck)), SourceMeasured)
	}
	if central, ok := mesh.MostCentralLoop(loopsAt(pri.Head)); ok {
		c := central.Centroid()
		res.Joints.Set(JointHead, geom.V(c.X, c.Y, fracZ(pri.Head)), SourceMeasured)
	}

	res.Recovered = res.Joints.Recovered()
	log.Printf("[Landmarks] %d/%d joints measured, levels bust=%.3f waist=%.3f hip=%.3f",
		res.Recovered, NumJoints, res.Levels.BustZ, res.Levels.WaistZ, res.Levels.HipZ)
	if res.Recovered < e.tun.GetMinMeasuredJoints() {
		return res, fmt.Errorf("%w: %d of %d joints measured, minimum %d",
			ErrInsufficientLandmarks, res.Recovered, int(NumJoints), e.tun.GetMinMeasuredJoints())
	}
	return res, nil
}

// seedPriors fills every joint with its height-fraction fallback.
func (e *Extractor) seedPriors(res *Result, pri Priors, fracZ func(float64) float64) {
	s := res.Stature
	set := func(id JointID, x, f float64) {
		res.Joints.Set(id, geom.V(x, 0, fracZ(f)), SourcePrior)
	}
	set(JointHead, 0, pri.Head)
	set(JointNeck, 0, pri.Neck)
	set(JointShoulderL, priorShoulderX*s, pri.Shoulder)
	set(JointShoulderR, -priorShoulderX*s, pri.Shoulder)
	set(JointElbowL, priorElbowX*s, pri.Elbow)
	set(JointElbowR, -priorElbowX*s, pri.Elbow)
	set(JointWristL, priorWristX*s, pri.Wrist)
	set(JointWristR, -priorWristX*s, pri.Wrist)
	set(JointHipL, priorHipX*s, pri.Hip)
	set(JointHipR, -priorHipX*s, pri.Hip)
	set(JointKneeL, priorKneeX*s, pri.Knee)
	set(JointKneeR, -priorKneeX*s, pri.Knee)
	set(JointAnkleL, priorAnkleX*s, pri.Ankle)
	set(JointAnkleR, -priorAnkleX*s, pri.Ankle)
	set(JointPelvis, 0, pri.Pelvis)
}

// trackArms follows the two arm loops down from the bust transition with a
// proximity gate, snapshotting the elbow and wrist joints as the scan
// passes their fractions. A lost track leaves the remaining joints on
// priors.
func (e *Extractor) trackArms(res *Result, pri Priors, startF float64, armL, armR mesh.SlicePoint, fracZ func(float64) float64, loopsAt func(float64) []mesh.Loop) {
	gate := e.tun.GetArmTrackGateM()
	type track struct {
		c     mesh.SlicePoint
		alive bool
	}
	tl, tr := track{armL, true}, track{armR, true}
	snapElbow := false
	for f := startF - scanStep; f >= pri.Wrist-scanStep/2; f -= scanStep {
		loops := loopsAt(f)
		step := func(t *track) {
			if !t.alive {
				return
			}
			bestD := gate
			found := false
			var bestC mesh.SlicePoint
			for _, l := range loops {
				c := l.Centroid()
				if d := math.Hypot(c.X-t.c.X, c.Y-t.c.Y); d < bestD {
					bestD, bestC, found = d, c, true
				}
			}
			if found {
				t.c = bestC
			} else {
				t.alive = false
			}
		}
		step(&tl)
		step(&tr)
		if !snapElbow && f <= pri.Elbow {
			if tl.alive {
				res.Joints.Set(JointElbowL, geom.V(tl.c.X, tl.c.Y, fracZ(pri.Elbow)), SourceMeasured)
			}
			if tr.alive {
				res.Joints.Set(JointElbowR, geom.V(tr.c.X, tr.c.Y, fracZ(pri.Elbow)), SourceMeasured)
			}
			snapElbow = true
		}
	}
	if tl.alive {
		res.Joints.Set(JointWristL, geom.V(tl.c.X, tl.c.Y, fracZ(pri.Wrist)), SourceMeasured)
	}
	if tr.alive {
		res.Joints.Set(JointWristR, geom.V(tr.c.X, tr.c.Y, fracZ(pri.Wrist)), SourceMeasured)
	}
}

// hipJointWidthFrac places the hip sockets inside the hip silhouette, as a
// fraction of the loop half-width.
const hipJointWidthFrac = 0.51

// refineHips derives the hip joints from the hip loop extent.
func (e *Extractor) refineHips(res *Result, loop mesh.Loop, z float64) {
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, p := range loop.Points {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
	}
	c := loop.Centroid()
	hw := (maxX - minX) / 2
	res.Joints.Set(JointHipL, geom.V(c.X+hipJointWidthFrac*hw, c.Y, z), SourceMeasured)
	res.Joints.Set(JointHipR, geom.V(c.X-hipJointWidthFrac*hw, c.Y, z), SourceMeasured)
}

// sideLoops returns the most lateral loop on each side of the central one.
func sideLoops(loops []mesh.Loop, central mesh.Loop) (l, r mesh.Loop, ok bool) {
	cc := central.Centroid()
	var bestL, bestR float64
	var haveL, haveR bool
	for _, lp := range loops {
		c := lp.Centroid()
		if c == cc {
			continue
		}
		if c.X > 0.01 && (!haveL || c.X > bestL) {
			l, bestL, haveL = lp, c.X, true
		}
		if c.X < -0.01 && (!haveR || c.X < bestR) {
			r, bestR, haveR = lp, c.X, true
		}
	}
	return l, r, haveL && haveR
}

// pairAt selects the largest loop on either side of the body axis,
// expecting a left/right limb pair at the slice.
func pairAt(loops []mesh.Loop) (l, r mesh.SlicePoint, ok bool) {
	var haveL, haveR bool
	for _, lp := range loops {
		c := lp.Centroid()
		if c.X > 0.01 && !haveL {
			l, haveL = c, true
		} else if c.X < -0.01 && !haveR {
			r, haveR = c, true
		}
	}
	return l, r, haveL && haveR
}
