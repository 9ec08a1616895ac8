package fit

import (
	"math"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
)

// Corrector adjusts the solved rigid transform for systematic bias in a
// deployment, such as a tilted capture rig or a depth sensor offset.
// Implementations must be safe for concurrent use.
type Corrector interface {
	Correct(RigidTransform) RigidTransform
}

// StaticCorrector applies a fixed rotation about the X and Z axes plus a
// translation after alignment. The angles and offset come from per-site
// calibration against ground-truth tape measurements.
type StaticCorrector struct {
	rot    geom.Rot
	offset geom.Vec
}

// NewStaticCorrector builds a corrector from rotation angles in degrees
// and a translation offset in meters.
func NewStaticCorrector(rotXDeg, rotZDeg float64, offset geom.Vec) *StaticCorrector {
	rx := geom.AxisAngle(geom.V(1, 0, 0), rotXDeg*math.Pi/180)
	rz := geom.AxisAngle(geom.V(0, 0, 1), rotZDeg*math.Pi/180)
	return &StaticCorrector{rot: rz.Mul(rx), offset: offset}
}

func (c *StaticCorrector) Correct(t RigidTransform) RigidTransform {
	return t.then(RigidTransform{Rot: c.rot, Trans: c.offset})
}

// CorrectorFromTuning builds the configured static corrector, or nil when
// the empirical correction is disabled.
func CorrectorFromTuning(tun *config.Tuning) Corrector {
	if !tun.GetCorrectionEnabled() {
		return nil
	}
	x, y, z := tun.GetCorrectionOffset()
	return NewStaticCorrector(tun.GetCorrectionRotXDeg(), tun.GetCorrectionRotZDeg(), geom.V(x, y, z))
}
