// Package fit runs the measurement pipeline: rigid alignment of the scan
// to the posed template, iterative phenotype regression, and the
// orchestration of all six stages from raw mesh to measurements.
package fit

import (
	"errors"
	"fmt"

	"github.com/atelier-data/bodyfit/internal/landmarks"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

// Pipeline error taxonomy. The two sentinels owned by earlier stages are
// aliased here so callers can match the whole taxonomy against this
// package.
//
// Severity: orientation ambiguity is fatal and aborts the run with no
// result. The other three are non-fatal; the pipeline completes with a
// flagged result and a confidence penalty.
var (
	ErrOrientationAmbiguous  = mesh.ErrOrientationAmbiguous
	ErrInsufficientLandmarks = landmarks.ErrInsufficientLandmarks
	ErrShapeSpaceSaturated   = errors.New("shape space saturated at parameter bound")
	ErrConvergenceTimeout    = errors.New("iteration budget exhausted before convergence")
)

// StageError attributes a pipeline failure to the stage that raised it.
// It unwraps to the underlying sentinel so errors.Is keeps working.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Flag marks a non-fatal condition on a completed result.
type Flag string

const (
	FlagScaleClamped          Flag = "scale_clamped"
	FlagOrientationCorrected  Flag = "orientation_corrected"
	FlagInsufficientLandmarks Flag = "insufficient_landmarks"
	FlagShapeSpaceSaturated   Flag = "shape_space_saturated"
	FlagConvergenceTimeout    Flag = "convergence_timeout"
)
