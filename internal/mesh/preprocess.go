package mesh

import (
	"fmt"
	"log"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
)

// Preprocessor brings a raw reconstruction mesh into the canonical body
// frame: meters, Z up, origin at the pelvis, +X toward the subject's left,
// +Y from back to front.
type Preprocessor struct {
	tun *config.Tuning
}

func NewPreprocessor(tun *config.Tuning) *Preprocessor {
	return &Preprocessor{tun: tun}
}

// NormReport records what normalization did, for logging and confidence
// accounting downstream.
type NormReport struct {
	Orientation  Orientation `json:"orientation"`
	ScaleFactor  float64     `json:"scale_factor"`
	ScaleClamped bool        `json:"scale_clamped,omitempty"`
	PelvisShift  geom.Vec    `json:"pelvis_shift"`
}

// ConvertCoordinates applies the configured backend axis convention to
// every vertex. This is the declared handedness fix for the reconstruction
// backend and runs once at ingest, before orientation detection.
func (p *Preprocessor) ConvertCoordinates(m *Mesh) {
	flip := p.tun.GetAxisFlip()
	m.TransformVerts(func(v geom.Vec) geom.Vec {
		return geom.ConvertCoordinates(v, flip)
	})
}

// Canonicalize returns a copy of the mesh with the orientation correction
// applied.
func Canonicalize(m *Mesh, o Orientation) *Mesh {
	out := m.Clone()
	if !o.IsIdentity() {
		out.TransformVerts(o.Apply)
	}
	return out
}

// ScaleToHeight uniformly scales the mesh in place so its Z extent equals
// the declared height. The factor is clamped to the configured range;
// clamping is reported so the pipeline can flag implausible inputs
// (arms-overhead poses inflate apparent height).
func (p *Preprocessor) ScaleToHeight(m *Mesh, heightCM float64) (scale float64, clamped bool) {
	h := m.Height()
	if h <= 0 {
		return 1, false
	}
	scale = (heightCM / 100) / h
	minS, maxS := p.tun.GetScaleFactorMin(), p.tun.GetScaleFactorMax()
	if scale < minS {
		scale, clamped = minS, true
	} else if scale > maxS {
		scale, clamped = maxS, true
	}
	m.Scale(scale)
	return scale, clamped
}

// CenterOnPelvis translates the mesh in place so the pelvis sits at the
// origin, and returns the shift applied. The pelvis is the centroid of the
// largest cross-section loop at the configured stature fraction; if the
// slice yields no loops the bounding box center is used instead.
func (p *Preprocessor) CenterOnPelvis(m *Mesh) geom.Vec {
	slice := SliceParams{
		HalfBand: p.tun.GetSliceBandM(),
		Eps:      p.tun.GetLoopEpsM(),
		MinPts:   p.tun.GetLoopMinPoints(),
	}
	shift := p.pelvisShift(m, slice)
	m.Translate(shift)
	return shift
}

// Normalize detects and corrects the mesh orientation, scales the body to
// the declared height, and moves the origin to the pelvis. The input is
// not modified. Running Normalize on its own output is a no-op up to
// floating point noise.
func (p *Preprocessor) Normalize(m *Mesh, heightCM float64) (*Mesh, NormReport, error) {
	var rep NormReport
	if err := m.Validate(); err != nil {
		return nil, rep, err
	}
	if heightCM <= 0 {
		return nil, rep, fmt.Errorf("declared height %.1f cm out of range", heightCM)
	}

	slice := SliceParams{
		HalfBand: p.tun.GetSliceBandM(),
		Eps:      p.tun.GetLoopEpsM(),
		MinPts:   p.tun.GetLoopMinPoints(),
	}
	orient, err := DetectOrientation(m, OrientationParams{
		MinSpread: p.tun.GetOrientationMinSpread(),
		Slice:     slice,
	})
	if err != nil {
		return nil, rep, err
	}
	rep.Orientation = orient

	out := Canonicalize(m, orient)
	if !orient.IsIdentity() {
		log.Printf("[Preprocess] orientation corrected: perm=%v sign=%v spread=%.2f", orient.Perm, orient.Sign, orient.Spread)
	}
	if out.Height() <= 0 {
		return nil, rep, fmt.Errorf("%w: zero height after orientation", ErrOrientationAmbiguous)
	}

	rep.ScaleFactor, rep.ScaleClamped = p.ScaleToHeight(out, heightCM)
	if rep.ScaleClamped {
		log.Printf("[Preprocess] scale factor clamped to %.3f (declared height %.1f cm)", rep.ScaleFactor, heightCM)
	}

	rep.PelvisShift = p.CenterOnPelvis(out)
	return out, rep, nil
}

// pelvisShift returns the translation that puts the pelvis at the origin.
// The pelvis is located as the centroid of the largest cross-section loop
// at the configured stature fraction; if the slice yields no loops the
// bounding box center is used instead.
func (p *Preprocessor) pelvisShift(m *Mesh, slice SliceParams) geom.Vec {
	min, max := m.Bounds()
	pelvisZ := min.Z + p.tun.GetPelvisHeightFraction()*(max.Z-min.Z)
	loops := SliceLoops(m, pelvisZ, slice)
	if big, ok := LargestLoop(loops); ok {
		c := big.Centroid()
		return geom.V(-c.X, -c.Y, -pelvisZ)
	}
	log.Printf("[Preprocess] no pelvis loop at z=%.3f, centering on bounding box", pelvisZ)
	return geom.V(-(min.X+max.X)/2, -(min.Y+max.Y)/2, -pelvisZ)
}
