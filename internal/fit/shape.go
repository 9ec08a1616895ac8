package fit

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
)

// Tikhonov weights per phenotype axis. Heavily weighted axes resist
// moving away from their seed; the weight axis is nearly free because
// girth is what the scan actually constrains.
var tikhonovWeights = [anny.NumAxes]float64{
	anny.AxisGender:      100,
	anny.AxisAge:         10,
	anny.AxisHeight:      100,
	anny.AxisWeight:      0.5,
	anny.AxisMuscle:      5,
	anny.AxisProportions: 2,
}

// jacobianStep is the axis perturbation used for numeric derivatives.
const jacobianStep = 0.02

// maxAxisStep bounds how far one outer iteration may move an axis.
const maxAxisStep = 0.25

// ShapeResult is the outcome of phenotype regression.
type ShapeResult struct {
	Phenotype     anny.Phenotype
	Iterations    int
	MeanResidualM float64
	Converged     bool
	Saturated     bool
	SaturatedAxes []anny.Axis
}

// FitShape regresses the template phenotype so the posed template surface
// matches the aligned scan points. Height and muscle stay frozen: height
// is fixed by the declared stature and muscle is unobservable from a
// single static scan. A declared gender freezes the gender axis too.
//
// The scan is fixed; each outer iteration regenerates the template at the
// current phenotype, pairs sampled template vertices with their nearest
// scan points, and solves a Tikhonov-damped Gauss-Newton step from a
// numeric Jacobian.
func FitShape(ctx context.Context, scan []geom.Vec, model *anny.Model, seed anny.Phenotype, locals []geom.Rot, gender anny.Gender, tun *config.Tuning) (ShapeResult, error) {
	res := ShapeResult{Phenotype: seed.Clipped()}
	if len(scan) < 3 {
		return res, fmt.Errorf("shape regression needs scan points, got %d", len(scan))
	}

	free := freeAxes(gender)
	maxIter := tun.GetShapeMaxIterations()
	tolM := tun.GetShapeToleranceM()
	quantile := tun.GetICPOutlierQuantile()

	index := newPointIndex(scan, 0.05)

	generate := func(p anny.Phenotype) []geom.Vec {
		return anny.Skin(model.Generate(p), locals).Vertices
	}

	base := generate(res.Phenotype)
	sample := sampleIndices(len(base), 1500)

	// assess pairs sampled template vertices with their nearest scan
	// points and trims the worst-matched tail, which covers scan regions
	// the template has no counterpart for.
	assess := func() (match, keep []int, mean float64) {
		match = make([]int, len(sample))
		dists := make([]float64, len(sample))
		for si, vi := range sample {
			match[si], dists[si] = index.nearest(base[vi])
		}
		sorted := append([]float64(nil), dists...)
		sort.Float64s(sorted)
		cutoff := stat.Quantile(quantile, stat.Empirical, sorted, nil)

		keep = make([]int, 0, len(sample))
		var sum float64
		for si := range sample {
			if dists[si] > cutoff {
				continue
			}
			keep = append(keep, si)
			sum += dists[si]
		}
		if len(keep) == 0 {
			return match, keep, math.Inf(1)
		}
		return match, keep, sum / float64(len(keep))
	}

	var pinned []anny.Axis
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("shape regression interrupted: %w", err)
		}
		res.Iterations = iter + 1

		match, keep, mean := assess()
		if len(keep) == 0 {
			return res, fmt.Errorf("shape regression lost all correspondences at iteration %d", iter)
		}
		res.MeanResidualM = mean

		if res.MeanResidualM < tolM {
			res.Converged = true
			pinned = nil
			break
		}

		rows := 3 * len(keep)
		r := mat.NewVecDense(rows, nil)
		for k, si := range keep {
			d := scan[match[si]].Sub(base[sample[si]])
			r.SetVec(3*k, d.X)
			r.SetVec(3*k+1, d.Y)
			r.SetVec(3*k+2, d.Z)
		}

		jac := mat.NewDense(rows, len(free), nil)
		for col, axis := range free {
			h := jacobianStep
			if res.Phenotype.Axis(axis)+h > 1 {
				h = -jacobianStep
			}
			probe := res.Phenotype
			probe.SetAxis(axis, probe.Axis(axis)+h)
			moved := generate(probe)
			for k, si := range keep {
				d := moved[sample[si]].Sub(base[sample[si]])
				jac.Set(3*k, col, d.X/h)
				jac.Set(3*k+1, col, d.Y/h)
				jac.Set(3*k+2, col, d.Z/h)
			}
		}

		var a mat.Dense
		a.Mul(jac.T(), jac)
		for col, axis := range free {
			a.Set(col, col, a.At(col, col)+tikhonovWeights[axis])
		}
		var b mat.VecDense
		b.MulVec(jac.T(), r)

		var dx mat.VecDense
		if err := dx.SolveVec(&a, &b); err != nil {
			log.Printf("[Shape] normal equations singular at iteration %d: %v", iter, err)
			break
		}

		pinned = nil
		var maxStep float64
		for col, axis := range free {
			step := geom.Clamp(dx.AtVec(col), -maxAxisStep, maxAxisStep)
			raw := res.Phenotype.Axis(axis) + step
			next := geom.Clamp(raw, 0, 1)
			if (next == 0 && raw < 0) || (next == 1 && raw > 1) {
				pinned = append(pinned, axis)
			}
			if d := math.Abs(next - res.Phenotype.Axis(axis)); d > maxStep {
				maxStep = d
			}
			res.Phenotype.SetAxis(axis, next)
		}
		base = generate(res.Phenotype)

		if maxStep < 1e-4 {
			res.Converged = true
			break
		}
	}

	// The loop steps after measuring, so on budget exhaustion the recorded
	// residual is one step behind the returned phenotype.
	if !res.Converged {
		if _, keep, mean := assess(); len(keep) > 0 {
			res.MeanResidualM = mean
			if mean < tolM {
				res.Converged = true
				pinned = nil
			}
		}
	}

	if len(pinned) > 0 {
		res.Saturated = true
		res.SaturatedAxes = pinned
		log.Printf("[Shape] saturated axes %v after %d iterations, residual %.4fm",
			pinned, res.Iterations, res.MeanResidualM)
		return res, fmt.Errorf("axes %v: %w", pinned, ErrShapeSpaceSaturated)
	}
	if !res.Converged {
		return res, fmt.Errorf("shape regression after %d iterations at %.4fm: %w",
			res.Iterations, res.MeanResidualM, ErrConvergenceTimeout)
	}
	log.Printf("[Shape] converged in %d iterations, residual %.4fm, phenotype %s",
		res.Iterations, res.MeanResidualM, res.Phenotype)
	return res, nil
}

// freeAxes returns the regressed axes. Height and muscle never move;
// gender moves only when the caller did not declare one.
func freeAxes(gender anny.Gender) []anny.Axis {
	free := []anny.Axis{anny.AxisAge, anny.AxisWeight, anny.AxisProportions}
	if gender == anny.GenderUnknown {
		free = append(free, anny.AxisGender)
	}
	return free
}

// sampleIndices spreads at most want indices evenly across n vertices.
func sampleIndices(n, want int) []int {
	step := n/want + 1
	out := make([]int, 0, n/step+1)
	for i := 0; i < n; i += step {
		out = append(out, i)
	}
	return out
}
