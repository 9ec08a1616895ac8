package fit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/landmarks"
	"github.com/atelier-data/bodyfit/internal/measure"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/pose"
)

// Input is one fitting request. Height and gender come from the user;
// keypoints are optional externally detected joints that override the
// geometric extraction where supplied.
type Input struct {
	HeightCM  float64
	Gender    anny.Gender
	Keypoints map[landmarks.JointID]geom.Vec
}

// StageTime records wall time spent in one pipeline stage.
type StageTime struct {
	Stage  string  `json:"stage"`
	Millis float64 `json:"millis"`
}

// Result is the durable output of one fitting run.
type Result struct {
	Measurements   measure.Measurements   `json:"measurements"`
	Classification measure.Classification `json:"classification"`
	Size           measure.Size           `json:"size"`
	Silhouettes    []measure.Silhouette   `json:"silhouettes"`
	Avoid          []measure.Silhouette   `json:"silhouettes_avoid,omitempty"`
	Confidence     float64                `json:"confidence"`
	Flags          []Flag                 `json:"flags,omitempty"`

	Phenotype       anny.Phenotype  `json:"phenotype"`
	ResidualMM      float64         `json:"residual_mm"`
	RecoveredJoints int             `json:"recovered_joints"`
	SolvedChains    int             `json:"solved_chains"`
	ShapeIterations int             `json:"shape_iterations"`
	Norm            mesh.NormReport `json:"norm"`
	Align           AlignStats      `json:"align"`
	Stages          []StageTime     `json:"stages,omitempty"`
}

// HasFlag reports whether the result carries the flag.
func (r *Result) HasFlag(f Flag) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// scanSamplePoints caps how many scan vertices feed rigid alignment.
const scanSamplePoints = 3000

// Pipeline wires the six fitting stages. It is safe for concurrent use:
// per-run state lives in Run and the shared template model is read-only.
type Pipeline struct {
	tun   *config.Tuning
	model *anny.Model
	pre   *mesh.Preprocessor
	marks *landmarks.Extractor
	poser *pose.Solver
	meas  *measure.Extractor
	corr  Corrector
}

func NewPipeline(tun *config.Tuning) *Pipeline {
	model := anny.NewModel()
	return &Pipeline{
		tun:   tun,
		model: model,
		pre:   mesh.NewPreprocessor(tun),
		marks: landmarks.NewExtractor(tun),
		poser: pose.NewSolver(tun),
		meas:  measure.NewExtractor(model, tun),
		corr:  CorrectorFromTuning(tun),
	}
}

// SetCorrector swaps the post-alignment corrector. Pass nil to disable.
func (p *Pipeline) SetCorrector(c Corrector) { p.corr = c }

// Run fits a raw scan and returns measurements. Only orientation
// ambiguity, invalid input, or context cancellation fail the run; every
// other condition degrades into flags and a lower confidence on a
// complete result.
func (p *Pipeline) Run(ctx context.Context, raw *mesh.Mesh, in Input) (*Result, error) {
	start := time.Now()
	res := &Result{}
	last := start
	mark := func(stage string) {
		now := time.Now()
		res.Stages = append(res.Stages, StageTime{
			Stage:  stage,
			Millis: float64(now.Sub(last).Microseconds()) / 1000,
		})
		last = now
	}

	if in.HeightCM <= 0 {
		return nil, &StageError{Stage: "preprocess", Err: fmt.Errorf("height must be positive, got %.1f", in.HeightCM)}
	}

	work := raw.Clone()
	p.pre.ConvertCoordinates(work)
	norm, normRep, err := p.pre.Normalize(work, in.HeightCM)
	if err != nil {
		return nil, &StageError{Stage: "preprocess", Err: err}
	}
	res.Norm = normRep
	if normRep.ScaleClamped {
		res.Flags = append(res.Flags, FlagScaleClamped)
	}
	if !normRep.Orientation.IsIdentity() {
		res.Flags = append(res.Flags, FlagOrientationCorrected)
	}
	mark("preprocess")
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: "preprocess", Err: err}
	}

	lm, lmErr := p.marks.Extract(norm)
	if lmErr != nil && !errors.Is(lmErr, landmarks.ErrInsufficientLandmarks) {
		return nil, &StageError{Stage: "landmarks", Err: lmErr}
	}
	if len(in.Keypoints) > 0 {
		lm.Joints.Inject(in.Keypoints)
	}
	recovered := lm.Joints.Recovered()
	res.RecoveredJoints = recovered
	missing := int(landmarks.NumJoints) - recovered
	if recovered < p.tun.GetMinMeasuredJoints() {
		res.Flags = append(res.Flags, FlagInsufficientLandmarks)
		log.Printf("[Pipeline] continuing with %d of %d joints", recovered, int(landmarks.NumJoints))
	}
	mark("landmarks")

	seed := anny.EstimatePhenotype(lm.Stature, in.Gender,
		lm.Levels.BustGirthM, lm.Levels.WaistGirthM, lm.Levels.HipGirthM)
	mark("estimate")

	body := p.model.Generate(seed)
	sol := p.poser.Solve(body, &lm.Joints)
	res.SolvedChains = sol.SolvedChains
	mark("pose")
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: "pose", Err: err}
	}

	posed := anny.Skin(body, sol.Locals)
	src := subsample(norm.Vertices, scanSamplePoints)
	rigid, alignStats, alignErr := AlignRigid(ctx, src, posed.Vertices, p.tun)
	timedOut := false
	if alignErr != nil {
		if !errors.Is(alignErr, ErrConvergenceTimeout) {
			return nil, &StageError{Stage: "align", Err: alignErr}
		}
		timedOut = true
		res.Flags = append(res.Flags, FlagConvergenceTimeout)
	}
	res.Align = alignStats
	if p.corr != nil {
		rigid = p.corr.Correct(rigid)
	}
	mark("align")

	scanPts := make([]geom.Vec, len(norm.Vertices))
	for i, v := range norm.Vertices {
		scanPts[i] = rigid.Apply(v)
	}
	shape, shapeErr := FitShape(ctx, scanPts, p.model, seed, sol.Locals, in.Gender, p.tun)
	if shapeErr != nil {
		switch {
		case errors.Is(shapeErr, ErrShapeSpaceSaturated):
			res.Flags = append(res.Flags, FlagShapeSpaceSaturated)
		case errors.Is(shapeErr, ErrConvergenceTimeout):
			if !timedOut {
				res.Flags = append(res.Flags, FlagConvergenceTimeout)
			}
			timedOut = true
		default:
			return nil, &StageError{Stage: "shape", Err: shapeErr}
		}
	}
	res.Phenotype = shape.Phenotype
	res.ResidualMM = shape.MeanResidualM * 1000
	res.ShapeIterations = shape.Iterations
	mark("shape")

	meas := p.meas.Measure(shape.Phenotype)
	cls := measure.Classify(meas)
	res.Measurements = meas
	res.Classification = cls
	res.Size = measure.SizeFor(meas)
	res.Silhouettes = measure.Silhouettes(cls.Type)
	res.Avoid = measure.SilhouettesToAvoid(cls.Type)
	res.Confidence = ComputeConfidence(shape.MeanResidualM, missing, shape.Saturated, timedOut, p.tun)
	mark("measure")

	log.Printf("[Pipeline] %s bust=%.1f waist=%.1f hips=%.1f conf=%.2f flags=%v in %dms",
		cls.Type, meas.BustCM, meas.WaistCM, meas.HipsCM, res.Confidence, res.Flags,
		time.Since(start).Milliseconds())
	return res, nil
}

// subsample spreads at most want points evenly across pts.
func subsample(pts []geom.Vec, want int) []geom.Vec {
	idx := sampleIndices(len(pts), want)
	out := make([]geom.Vec, len(idx))
	for i, k := range idx {
		out[i] = pts[k]
	}
	return out
}
