package fit

import (
	"math"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
)

// ComputeConfidence maps fit quality onto [0,1]. The base score decays
// linearly with the mean surface residual and reaches zero at the
// configured residual scale. Non-fatal conditions then discount it: a
// linear penalty per joint that fell back to its prior, a multiplier for
// iteration budget exhaustion, and a hard cap when the shape space
// saturated.
func ComputeConfidence(residualM float64, missingJoints int, saturated, timedOut bool, tun *config.Tuning) float64 {
	residMM := residualM * 1000
	conf := geom.Clamp(1-residMM/tun.GetResidualScaleMM(), 0, 1)

	if missingJoints > 0 {
		factor := 1 - tun.GetMissingJointPenalty()*float64(missingJoints)
		conf *= math.Max(0, factor)
	}
	if timedOut {
		conf *= tun.GetTimeoutPenalty()
	}
	if saturated && conf > tun.GetSaturationCap() {
		conf = tun.GetSaturationCap()
	}
	return geom.Clamp(conf, 0, 1)
}
