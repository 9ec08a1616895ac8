package anny

import (
	"math"

	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

// Stature landmark levels as fractions of total height, sole to crown.
// The trunk column spans crotch to crown, legs sole to crotch, arms wrist
// to armpit. The pelvis fraction matches the preprocessor's centering
// level so a generated body and a normalized scan share their origin.
const (
	fracSole     = 0.02
	fracAnkle    = 0.05
	fracKnee     = 0.28
	fracCrotch   = 0.50
	fracPelvis   = 0.52
	fracHip      = 0.53
	fracWaist    = 0.62
	fracBust     = 0.72
	fracArmpit   = 0.745
	fracWrist    = 0.47
	fracElbow    = 0.62
	fracShoulder = 0.80
	fracNeckBase = 0.84
	fracNeckTop  = 0.87
	fracHeadPeak = 0.935
	fracCrown    = 1.00
)

// BodyDims are the dimensional targets derived from a phenotype, meters.
// Girth formulas are built so that (bust+waist+hip)/3 equals the mean
// girth scale exactly, which makes the gross-girth weight estimate an
// exact inverse.
type BodyDims struct {
	Stature float64

	BustGirth  float64
	WaistGirth float64
	HipGirth   float64

	ShoulderWidth float64

	NeckGirth  float64
	HeadGirth  float64
	ThighGirth float64
	KneeGirth  float64
	AnkleGirth float64
	ArmGirth   float64
	WristGirth float64
}

// Dims evaluates the analytic dimension formulas for a phenotype. Stature
// is affine in the height axis and every girth is affine in the weight
// axis, so linear measurements are strictly monotone in both.
func Dims(p Phenotype) BodyDims {
	p = p.Clipped()
	var d BodyDims
	d.Stature = 1.50 + 0.50*p.Height

	// Mean torso girth in meters; the waist/hip and bust/hip ratios
	// distribute it across the three tape levels.
	g := (52 + 60*p.Weight) / 100
	whr := 0.95 - 0.35*p.Proportions + 0.06*(p.Age-0.4)
	bh := 1.06 - 0.12*p.Gender + 0.08*(p.Muscle-0.5)
	d.HipGirth = 3 * g / (1 + bh + whr)
	d.BustGirth = bh * d.HipGirth
	d.WaistGirth = whr * d.HipGirth

	d.ShoulderWidth = d.Stature * (0.21 + 0.04*p.Muscle + 0.015*(1-p.Gender))

	d.NeckGirth = 0.20 * d.Stature * (0.95 + 0.10*p.Muscle)
	d.HeadGirth = 0.33 * d.Stature
	d.ThighGirth = 0.62 * g
	d.KneeGirth = 0.40 * g
	d.AnkleGirth = 0.25 * g
	d.ArmGirth = 0.30 * g
	d.WristGirth = 0.185 * g
	return d
}

// Depth/width aspect ratios of the torso cross sections.
const (
	aspectBust  = 0.72
	aspectWaist = 0.85
	aspectHip   = 0.78
	aspectNeck  = 0.92
	aspectHead  = 1.25
)

// ellipseHalfAxes inverts the Ramanujan perimeter approximation: given a
// target girth and a depth/width ratio it returns the half-width a and
// half-depth b of the ellipse with that circumference.
func ellipseHalfAxes(girth, aspect float64) (a, b float64) {
	k := math.Pi * (3*(1+aspect) - math.Sqrt((3+aspect)*(1+3*aspect)))
	a = girth / k
	return a, aspect * a
}

// Body is a generated template instance: mesh, rig and skin binding for
// one phenotype. The mesh topology (vertex count, face list, ring layout)
// is identical for every phenotype; only positions change, and they change
// smoothly, which the shape fitter's numeric derivatives require.
type Body struct {
	Phenotype Phenotype
	Dims      BodyDims
	Mesh      *mesh.Mesh
	Weights   []VertexWeight
	Skeleton  *Skeleton
}

// Model generates template bodies. Zero value is not usable; use NewModel.
type Model struct {
	// Segments is the number of points per lathed ring.
	Segments int
	// RingStep is the stature fraction between consecutive rings.
	RingStep float64
}

func NewModel() *Model {
	// 96 segments keeps the circumferential point spacing at the widest
	// tape level (hip girth up to ~1.3m, ~14mm between points) well under
	// the loop clustering radius; coarser rings dissolve into noise at
	// slice time and the trunk loop vanishes.
	return &Model{Segments: 96, RingStep: 0.01}
}

// z converts a stature fraction to canonical Z (origin at the pelvis).
func zOf(frac, stature float64) float64 {
	return (frac - fracPelvis) * stature
}

// profilePoint is one control ring of a lathed column.
type profilePoint struct {
	frac float64
	a    float64 // half-width, X
	b    float64 // half-depth, Y
}

// interpProfile linearly interpolates the half-axes at a fraction.
func interpProfile(prof []profilePoint, f float64) (a, b float64) {
	if f <= prof[0].frac {
		return prof[0].a, prof[0].b
	}
	last := prof[len(prof)-1]
	if f >= last.frac {
		return last.a, last.b
	}
	for i := 1; i < len(prof); i++ {
		if f <= prof[i].frac {
			lo, hi := prof[i-1], prof[i]
			t := (f - lo.frac) / (hi.frac - lo.frac)
			return lo.a + t*(hi.a-lo.a), lo.b + t*(hi.b-lo.b)
		}
	}
	return last.a, last.b
}

// Generate builds the template body for a phenotype.
func (m *Model) Generate(p Phenotype) *Body {
	p = p.Clipped()
	d := Dims(p)

	body := &Body{Phenotype: p, Dims: d, Mesh: &mesh.Mesh{}}
	body.Skeleton = buildSkeleton(d)

	aBust, bBust := ellipseHalfAxes(d.BustGirth, aspectBust)
	aWaist, bWaist := ellipseHalfAxes(d.WaistGirth, aspectWaist)
	aHip, bHip := ellipseHalfAxes(d.HipGirth, aspectHip)
	aNeck, bNeck := ellipseHalfAxes(d.NeckGirth, aspectNeck)
	aHead, bHead := ellipseHalfAxes(d.HeadGirth, aspectHead)
	rArm := d.ArmGirth / (2 * math.Pi)

	trunk := []profilePoint{
		{fracCrotch, 0.97 * aHip, 0.97 * bHip},
		{fracHip, aHip, bHip},
		{fracWaist, aWaist, bWaist},
		{fracBust, aBust, bBust},
		{fracArmpit, 0.97 * aBust, 0.97 * bBust},
		{fracShoulder, d.ShoulderWidth/2 + rArm, 0.88 * bBust},
		{fracNeckBase, 1.55 * aNeck, 1.55 * bNeck},
		{fracNeckTop, aNeck, bNeck},
		{0.875, 0.70 * aHead, 0.70 * bHead},
		{fracHeadPeak, aHead, bHead},
		{0.97, 0.90 * aHead, 0.90 * bHead},
		{fracCrown, 0.35 * aHead, 0.35 * bHead},
	}

	rThigh := d.ThighGirth / (2 * math.Pi)
	rKnee := d.KneeGirth / (2 * math.Pi)
	rAnkle := d.AnkleGirth / (2 * math.Pi)
	leg := []profilePoint{
		{fracSole, 0.95 * rAnkle, 0.95 * rAnkle},
		{fracAnkle, rAnkle, rAnkle},
		{fracKnee, rKnee, rKnee},
		{fracCrotch, rThigh, rThigh},
	}

	rWrist := d.WristGirth / (2 * math.Pi)
	arm := []profilePoint{
		{fracWrist, rWrist, rWrist},
		{fracElbow, 0.85 * rArm, 0.85 * rArm},
		{fracArmpit, rArm, rArm},
	}

	// Trunk, with spine/neck/head weight bands.
	m.lathe(body, trunk, fracCrotch, fracCrown, func(float64) float64 { return 0 },
		func(f float64) VertexWeight {
			switch {
			case f < fracNeckBase-weightBlend:
				return soloWeight(BoneSpine)
			case f < fracNeckBase+weightBlend:
				return blendWeight(BoneSpine, BoneNeck, (fracNeckBase+weightBlend-f)/(2*weightBlend))
			case f < fracNeckTop-weightBlend:
				return soloWeight(BoneNeck)
			case f < fracNeckTop+weightBlend:
				return blendWeight(BoneNeck, BoneHead, (fracNeckTop+weightBlend-f)/(2*weightBlend))
			default:
				return soloWeight(BoneHead)
			}
		})

	// Legs, mirrored, with the knee weight blend.
	for _, side := range []float64{+1, -1} {
		upper, lower := BoneUpperLegL, BoneLowerLegL
		if side < 0 {
			upper, lower = BoneUpperLegR, BoneLowerLegR
		}
		m.lathe(body, leg, fracSole, fracCrotch,
			func(f float64) float64 { return side * legSep(d, f) },
			func(f float64) VertexWeight {
				switch {
				case f < fracKnee-weightBlend:
					return soloWeight(lower)
				case f < fracKnee+weightBlend:
					return blendWeight(lower, upper, (fracKnee+weightBlend-f)/(2*weightBlend))
				default:
					return soloWeight(upper)
				}
			})
	}

	// Arms, mirrored, tilted slightly outward, with the elbow blend.
	for _, side := range []float64{+1, -1} {
		upper, fore := BoneUpperArmL, BoneForearmL
		if side < 0 {
			upper, fore = BoneUpperArmR, BoneForearmR
		}
		m.lathe(body, arm, fracWrist, fracArmpit,
			func(f float64) float64 { return side * armX(d, f) },
			func(f float64) VertexWeight {
				switch {
				case f < fracElbow-weightBlend:
					return soloWeight(fore)
				case f < fracElbow+weightBlend:
					return blendWeight(fore, upper, (fracElbow+weightBlend-f)/(2*weightBlend))
				default:
					return soloWeight(upper)
				}
			})
	}

	return body
}

const weightBlend = 0.015

// legSep is the lateral offset of a leg centerline at a stature fraction,
// widening from the ankles up to the hip sockets.
func legSep(d BodyDims, f float64) float64 {
	aHip, _ := ellipseHalfAxes(d.HipGirth, aspectHip)
	t := (f - fracSole) / (fracCrotch - fracSole)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return aHip * (0.39 + 0.12*t)
}

// armX is the lateral offset of an arm centerline at a stature fraction.
// Arms hang from the shoulder joints with a slight outward tilt so they
// clear the hips, as in a relaxed standing scan.
func armX(d BodyDims, f float64) float64 {
	const tilt = 0.07
	t := (fracShoulder - f) / (fracShoulder - fracWrist)
	if t < 0 {
		t = 0
	}
	return d.ShoulderWidth/2 + tilt*d.Stature*t
}

// lathe appends one elliptical column to the body: rings from fLo to fHi
// at the model's ring step, quad-strip triangulated, each vertex bound to
// the weight the band function assigns.
func (m *Model) lathe(body *Body, prof []profilePoint, fLo, fHi float64, center func(float64) float64, weigh func(float64) VertexWeight) {
	s := body.Dims.Stature
	prevRing := -1
	for f := fLo; f <= fHi+1e-9; f += m.RingStep {
		a, b := interpProfile(prof, f)
		cx := center(f)
		z := zOf(f, s)
		w := weigh(f)

		base := len(body.Mesh.Vertices)
		for i := 0; i < m.Segments; i++ {
			t := 2 * math.Pi * float64(i) / float64(m.Segments)
			body.Mesh.Vertices = append(body.Mesh.Vertices, geom.V(cx+a*math.Cos(t), b*math.Sin(t), z))
			body.Weights = append(body.Weights, w)
		}
		if prevRing >= 0 {
			for i := 0; i < m.Segments; i++ {
				j := (i + 1) % m.Segments
				body.Mesh.Faces = append(body.Mesh.Faces,
					[3]int{prevRing + i, prevRing + j, base + j},
					[3]int{prevRing + i, base + j, base + i},
				)
			}
		}
		prevRing = base
	}
}

// buildSkeleton places the rig at the profile landmarks for the given
// dimensions. Construction order matches the arena constants, parents
// before children.
func buildSkeleton(d BodyDims) *Skeleton {
	s := d.Stature
	aHip, _ := ellipseHalfAxes(d.HipGirth, aspectHip)
	aBust, bBust := ellipseHalfAxes(d.BustGirth, aspectBust)
	shoulderX := d.ShoulderWidth / 2
	hipX := 0.51 * aHip

	zHip := zOf(fracHip, s)
	zKnee := zOf(fracKnee, s)
	zAnkle := zOf(fracAnkle, s)
	zShoulder := zOf(fracShoulder, s)
	zElbow := zOf(fracElbow, s)
	zWrist := zOf(fracWrist, s)
	zNeckBase := zOf(fracNeckBase, s)
	zNeckTop := zOf(fracNeckTop, s)
	zCrown := zOf(fracCrown, s)
	zBust := zOf(fracBust, s)

	kneeX := legSep(d, fracKnee)
	ankleX := legSep(d, fracAnkle)
	elbowX := armX(d, fracElbow)
	wristX := armX(d, fracWrist)

	bones := make([]Bone, NumBones)
	set := func(i, parent int, head, tail geom.Vec) {
		bones[i] = Bone{
			Name:   BoneName(i),
			Parent: parent,
			Head:   head,
			Tail:   tail,
			Rest:   geom.Between(geom.V(0, 1, 0), tail.Sub(head)),
		}
	}

	set(BoneRoot, -1, geom.Zero, geom.V(0, 0, 0.08*s))
	set(BoneSpine, BoneRoot, geom.Zero, geom.V(0, 0, zNeckBase))
	set(BoneNeck, BoneSpine, geom.V(0, 0, zNeckBase), geom.V(0, 0, zNeckTop))
	set(BoneHead, BoneNeck, geom.V(0, 0, zNeckTop), geom.V(0, 0, zCrown))

	set(BoneClavicleL, BoneSpine, geom.V(0.02, 0, zShoulder-0.01), geom.V(shoulderX, 0, zShoulder))
	set(BoneClavicleR, BoneSpine, geom.V(-0.02, 0, zShoulder-0.01), geom.V(-shoulderX, 0, zShoulder))
	set(BoneUpperArmL, BoneClavicleL, geom.V(shoulderX, 0, zShoulder), geom.V(elbowX, 0, zElbow))
	set(BoneUpperArmR, BoneClavicleR, geom.V(-shoulderX, 0, zShoulder), geom.V(-elbowX, 0, zElbow))
	set(BoneForearmL, BoneUpperArmL, geom.V(elbowX, 0, zElbow), geom.V(wristX, 0, zWrist))
	set(BoneForearmR, BoneUpperArmR, geom.V(-elbowX, 0, zElbow), geom.V(-wristX, 0, zWrist))
	set(BoneHandL, BoneForearmL, geom.V(wristX, 0, zWrist), geom.V(wristX+0.01, 0, zWrist-0.05*s))
	set(BoneHandR, BoneForearmR, geom.V(-wristX, 0, zWrist), geom.V(-wristX-0.01, 0, zWrist-0.05*s))

	set(BoneUpperLegL, BoneRoot, geom.V(hipX, 0, zHip), geom.V(kneeX, 0, zKnee))
	set(BoneUpperLegR, BoneRoot, geom.V(-hipX, 0, zHip), geom.V(-kneeX, 0, zKnee))
	set(BoneLowerLegL, BoneUpperLegL, geom.V(kneeX, 0, zKnee), geom.V(ankleX, 0, zAnkle))
	set(BoneLowerLegR, BoneUpperLegR, geom.V(-kneeX, 0, zKnee), geom.V(-ankleX, 0, zAnkle))
	set(BoneFootL, BoneLowerLegL, geom.V(ankleX, 0, zAnkle), geom.V(ankleX, 0.12*s, zAnkle-0.02*s))
	set(BoneFootR, BoneLowerLegR, geom.V(-ankleX, 0, zAnkle), geom.V(-ankleX, 0.12*s, zAnkle-0.02*s))

	set(BoneBreastL, BoneSpine, geom.V(0.5*aBust, 0.75*bBust, zBust), geom.V(0.5*aBust, 0.75*bBust+0.03, zBust-0.01))
	set(BoneBreastR, BoneSpine, geom.V(-0.5*aBust, 0.75*bBust, zBust), geom.V(-0.5*aBust, 0.75*bBust+0.03, zBust-0.01))

	return &Skeleton{Bones: bones}
}
