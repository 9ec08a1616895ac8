package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atelier-data/bodyfit/internal/geom"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Tuning is the root configuration for the fitting pipeline. Every damping
// factor, axis-flip convention, threshold and iteration budget the stages
// consume lives here; stage code never carries these as inline literals.
// The schema matches the /api/params endpoint so the same JSON serves both
// startup configuration and runtime updates.
type Tuning struct {
	// Coordinate convention between the upstream reconstruction frame
	// and the canonical body frame. Each component is +1 or -1.
	AxisFlipX *float64 `json:"axis_flip_x,omitempty"`
	AxisFlipY *float64 `json:"axis_flip_y,omitempty"`
	AxisFlipZ *float64 `json:"axis_flip_z,omitempty"`

	// Preprocessor params
	OrientationMinSpread *float64 `json:"orientation_min_spread,omitempty"`
	PelvisHeightFraction *float64 `json:"pelvis_height_fraction,omitempty"`
	ScaleFactorMin       *float64 `json:"scale_factor_min,omitempty"`
	ScaleFactorMax       *float64 `json:"scale_factor_max,omitempty"`

	// Cross-section params
	SliceBandM    *float64 `json:"slice_band_m,omitempty"`
	LoopEpsM      *float64 `json:"loop_eps_m,omitempty"`
	LoopMinPoints *int     `json:"loop_min_points,omitempty"`

	// Landmark extractor params
	MinMeasuredJoints *int     `json:"min_measured_joints,omitempty"`
	BustScanTop       *float64 `json:"bust_scan_top,omitempty"`
	BustScanBottom    *float64 `json:"bust_scan_bottom,omitempty"`
	HipScanTop        *float64 `json:"hip_scan_top,omitempty"`
	HipScanBottom     *float64 `json:"hip_scan_bottom,omitempty"`
	ArmTrackGateM     *float64 `json:"arm_track_gate_m,omitempty"`

	// Pose solver damping (legs keep flexion; twist and abduction are
	// scaled down by these factors)
	LegTwistDamping     *float64 `json:"leg_twist_damping,omitempty"`
	LegAbductionDamping *float64 `json:"leg_abduction_damping,omitempty"`

	// Rigid alignment params
	ICPRotationDamping *float64 `json:"icp_rotation_damping,omitempty"`
	ICPMaxIterations   *int     `json:"icp_max_iterations,omitempty"`
	ICPConvergenceM    *float64 `json:"icp_convergence_m,omitempty"`
	ICPOutlierQuantile *float64 `json:"icp_outlier_quantile,omitempty"`

	// Shape regression params
	ShapeMaxIterations *int     `json:"shape_max_iterations,omitempty"`
	ShapeToleranceM    *float64 `json:"shape_tolerance_m,omitempty"`

	// Post-alignment calibration correction (empirical, per deployment)
	CorrectionEnabled *bool    `json:"correction_enabled,omitempty"`
	CorrectionRotXDeg *float64 `json:"correction_rot_x_deg,omitempty"`
	CorrectionRotZDeg *float64 `json:"correction_rot_z_deg,omitempty"`
	CorrectionOffsetX *float64 `json:"correction_offset_x,omitempty"`
	CorrectionOffsetY *float64 `json:"correction_offset_y,omitempty"`
	CorrectionOffsetZ *float64 `json:"correction_offset_z,omitempty"`

	// Confidence model params
	ResidualScaleMM     *float64 `json:"residual_scale_mm,omitempty"`
	MissingJointPenalty *float64 `json:"missing_joint_penalty,omitempty"`
	SaturationCap       *float64 `json:"saturation_cap,omitempty"`
	TimeoutPenalty      *float64 `json:"timeout_penalty,omitempty"`

	// Landmark height-fraction prior overrides, keyed by joint level name
	// (head, neck, shoulder, bust, waist, hip, knee, ankle, pelvis, elbow,
	// wrist). Omitted keys keep the built-in proportion table.
	PriorFractions map[string]float64 `json:"prior_fractions,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuning returns a Tuning with all fields set to nil. The Get*
// accessors supply defaults for every nil field, so an empty config is a
// fully working default configuration.
func EmptyTuning() *Tuning {
	return &Tuning{}
}

// LoadTuning loads a Tuning from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON retain their defaults,
// so partial configs are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveTuning writes the tuning to path as indented JSON through a temp
// file and rename, so a concurrent reader never observes a partial
// config. The config is validated before anything touches the disk.
func SaveTuning(path string, cfg *Tuning) error {
	if ext := filepath.Ext(path); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move config into place: %w", err)
	}
	return nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *Tuning {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuning(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Tuning) Validate() error {
	if err := c.GetAxisFlip().Validate(); err != nil {
		return err
	}
	if c.OrientationMinSpread != nil && *c.OrientationMinSpread <= 1 {
		return fmt.Errorf("orientation_min_spread must be greater than 1, got %f", *c.OrientationMinSpread)
	}
	if c.PelvisHeightFraction != nil {
		if *c.PelvisHeightFraction <= 0 || *c.PelvisHeightFraction >= 1 {
			return fmt.Errorf("pelvis_height_fraction must be in (0,1), got %f", *c.PelvisHeightFraction)
		}
	}
	if c.SliceBandM != nil && *c.SliceBandM <= 0 {
		return fmt.Errorf("slice_band_m must be positive, got %f", *c.SliceBandM)
	}
	if c.LoopEpsM != nil && *c.LoopEpsM <= 0 {
		return fmt.Errorf("loop_eps_m must be positive, got %f", *c.LoopEpsM)
	}
	if c.LoopMinPoints != nil && *c.LoopMinPoints < 1 {
		return fmt.Errorf("loop_min_points must be at least 1, got %d", *c.LoopMinPoints)
	}
	if c.MinMeasuredJoints != nil {
		if *c.MinMeasuredJoints < 0 || *c.MinMeasuredJoints > 15 {
			return fmt.Errorf("min_measured_joints must be in [0,15], got %d", *c.MinMeasuredJoints)
		}
	}
	for name, v := range map[string]*float64{
		"leg_twist_damping":     c.LegTwistDamping,
		"leg_abduction_damping": c.LegAbductionDamping,
		"icp_rotation_damping":  c.ICPRotationDamping,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be in [0,1], got %f", name, *v)
		}
	}
	if c.ICPMaxIterations != nil && *c.ICPMaxIterations < 1 {
		return fmt.Errorf("icp_max_iterations must be at least 1, got %d", *c.ICPMaxIterations)
	}
	if c.ICPOutlierQuantile != nil {
		if *c.ICPOutlierQuantile <= 0 || *c.ICPOutlierQuantile > 1 {
			return fmt.Errorf("icp_outlier_quantile must be in (0,1], got %f", *c.ICPOutlierQuantile)
		}
	}
	if c.ShapeMaxIterations != nil && *c.ShapeMaxIterations < 1 {
		return fmt.Errorf("shape_max_iterations must be at least 1, got %d", *c.ShapeMaxIterations)
	}
	for name, v := range map[string]*float64{
		"saturation_cap":  c.SaturationCap,
		"timeout_penalty": c.TimeoutPenalty,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be in [0,1], got %f", name, *v)
		}
	}
	for name, f := range c.PriorFractions {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("prior_fractions[%q] must be in (0,1), got %f", name, f)
		}
	}
	return nil
}

// GetPriorFractions returns the landmark prior overrides, possibly nil.
func (c *Tuning) GetPriorFractions() map[string]float64 {
	return c.PriorFractions
}

// GetAxisFlip returns the configured coordinate convention or the default
// (mirror X only).
func (c *Tuning) GetAxisFlip() geom.AxisFlip {
	f := geom.DefaultAxisFlip()
	if c.AxisFlipX != nil {
		f.X = *c.AxisFlipX
	}
	if c.AxisFlipY != nil {
		f.Y = *c.AxisFlipY
	}
	if c.AxisFlipZ != nil {
		f.Z = *c.AxisFlipZ
	}
	return f
}

// GetOrientationMinSpread returns the minimum ratio between the largest
// and second-largest principal extents below which orientation detection
// reports ambiguity.
func (c *Tuning) GetOrientationMinSpread() float64 {
	if c.OrientationMinSpread == nil {
		return 1.3
	}
	return *c.OrientationMinSpread
}

// GetPelvisHeightFraction returns the stature fraction at which the pelvis
// cross-section is taken.
func (c *Tuning) GetPelvisHeightFraction() float64 {
	if c.PelvisHeightFraction == nil {
		return 0.52
	}
	return *c.PelvisHeightFraction
}

// GetScaleFactorMin returns the lower clamp for the height scale factor.
func (c *Tuning) GetScaleFactorMin() float64 {
	if c.ScaleFactorMin == nil {
		return 0.05
	}
	return *c.ScaleFactorMin
}

// GetScaleFactorMax returns the upper clamp for the height scale factor.
func (c *Tuning) GetScaleFactorMax() float64 {
	if c.ScaleFactorMax == nil {
		return 50.0
	}
	return *c.ScaleFactorMax
}

// GetSliceBandM returns the half-thickness of a cross-section band in
// meters.
func (c *Tuning) GetSliceBandM() float64 {
	if c.SliceBandM == nil {
		return 0.012
	}
	return *c.SliceBandM
}

// GetLoopEpsM returns the neighborhood radius for loop clustering in
// meters.
func (c *Tuning) GetLoopEpsM() float64 {
	if c.LoopEpsM == nil {
		return 0.035
	}
	return *c.LoopEpsM
}

// GetLoopMinPoints returns the minimum cluster size for a slice loop.
func (c *Tuning) GetLoopMinPoints() int {
	if c.LoopMinPoints == nil {
		return 4
	}
	return *c.LoopMinPoints
}

// GetMinMeasuredJoints returns the minimum number of geometrically
// recovered joints below which the landmark stage reports insufficiency.
func (c *Tuning) GetMinMeasuredJoints() int {
	if c.MinMeasuredJoints == nil {
		return 8
	}
	return *c.MinMeasuredJoints
}

// GetBustScanTop returns the stature fraction where the bust scan starts.
func (c *Tuning) GetBustScanTop() float64 {
	if c.BustScanTop == nil {
		return 0.80
	}
	return *c.BustScanTop
}

// GetBustScanBottom returns the stature fraction where the bust scan ends.
func (c *Tuning) GetBustScanBottom() float64 {
	if c.BustScanBottom == nil {
		return 0.65
	}
	return *c.BustScanBottom
}

// GetHipScanTop returns the stature fraction where the hip scan starts.
func (c *Tuning) GetHipScanTop() float64 {
	if c.HipScanTop == nil {
		return 0.62
	}
	return *c.HipScanTop
}

// GetHipScanBottom returns the stature fraction where the hip scan ends.
func (c *Tuning) GetHipScanBottom() float64 {
	if c.HipScanBottom == nil {
		return 0.52
	}
	return *c.HipScanBottom
}

// GetArmTrackGateM returns the 2D proximity gate used when tracking arm
// loops down consecutive slices, in meters.
func (c *Tuning) GetArmTrackGateM() float64 {
	if c.ArmTrackGateM == nil {
		return 0.15
	}
	return *c.ArmTrackGateM
}

// GetLegTwistDamping returns the scale applied to the twist component of
// leg bone rotations.
func (c *Tuning) GetLegTwistDamping() float64 {
	if c.LegTwistDamping == nil {
		return 0.5
	}
	return *c.LegTwistDamping
}

// GetLegAbductionDamping returns the scale applied to the abduction
// component of leg bone rotations.
func (c *Tuning) GetLegAbductionDamping() float64 {
	if c.LegAbductionDamping == nil {
		return 0.5
	}
	return *c.LegAbductionDamping
}

// GetICPRotationDamping returns the per-iteration rotation damping factor
// for rigid alignment.
func (c *Tuning) GetICPRotationDamping() float64 {
	if c.ICPRotationDamping == nil {
		return 0.3
	}
	return *c.ICPRotationDamping
}

// GetICPMaxIterations returns the rigid alignment iteration budget.
func (c *Tuning) GetICPMaxIterations() int {
	if c.ICPMaxIterations == nil {
		return 50
	}
	return *c.ICPMaxIterations
}

// GetICPConvergenceM returns the mean correspondence distance below which
// rigid alignment stops, in meters.
func (c *Tuning) GetICPConvergenceM() float64 {
	if c.ICPConvergenceM == nil {
		return 0.001
	}
	return *c.ICPConvergenceM
}

// GetICPOutlierQuantile returns the correspondence distance quantile above
// which pairs are rejected each iteration.
func (c *Tuning) GetICPOutlierQuantile() float64 {
	if c.ICPOutlierQuantile == nil {
		return 0.9
	}
	return *c.ICPOutlierQuantile
}

// GetShapeMaxIterations returns the outer iteration budget for phenotype
// regression.
func (c *Tuning) GetShapeMaxIterations() int {
	if c.ShapeMaxIterations == nil {
		return 5
	}
	return *c.ShapeMaxIterations
}

// GetShapeToleranceM returns the mean surface residual below which shape
// regression stops, in meters.
func (c *Tuning) GetShapeToleranceM() float64 {
	if c.ShapeToleranceM == nil {
		return 0.004
	}
	return *c.ShapeToleranceM
}

// GetCorrectionEnabled reports whether the empirical post-alignment
// correction stage is applied.
func (c *Tuning) GetCorrectionEnabled() bool {
	if c.CorrectionEnabled == nil {
		return true
	}
	return *c.CorrectionEnabled
}

// GetCorrectionRotXDeg returns the empirical correction rotation about X
// in degrees.
func (c *Tuning) GetCorrectionRotXDeg() float64 {
	if c.CorrectionRotXDeg == nil {
		return -3.0
	}
	return *c.CorrectionRotXDeg
}

// GetCorrectionRotZDeg returns the empirical correction rotation about Z
// in degrees.
func (c *Tuning) GetCorrectionRotZDeg() float64 {
	if c.CorrectionRotZDeg == nil {
		return -5.0
	}
	return *c.CorrectionRotZDeg
}

// GetCorrectionOffset returns the empirical translation correction in
// meters.
func (c *Tuning) GetCorrectionOffset() (x, y, z float64) {
	x, y, z = 0.01, -0.03, 0.03
	if c.CorrectionOffsetX != nil {
		x = *c.CorrectionOffsetX
	}
	if c.CorrectionOffsetY != nil {
		y = *c.CorrectionOffsetY
	}
	if c.CorrectionOffsetZ != nil {
		z = *c.CorrectionOffsetZ
	}
	return x, y, z
}

// GetResidualScaleMM returns the surface residual, in millimeters, at
// which base confidence reaches zero.
func (c *Tuning) GetResidualScaleMM() float64 {
	if c.ResidualScaleMM == nil {
		return 50.0
	}
	return *c.ResidualScaleMM
}

// GetMissingJointPenalty returns the confidence penalty per joint that had
// to fall back to a height-fraction prior.
func (c *Tuning) GetMissingJointPenalty() float64 {
	if c.MissingJointPenalty == nil {
		return 0.04
	}
	return *c.MissingJointPenalty
}

// GetSaturationCap returns the confidence ceiling applied when the shape
// space saturates.
func (c *Tuning) GetSaturationCap() float64 {
	if c.SaturationCap == nil {
		return 0.45
	}
	return *c.SaturationCap
}

// GetTimeoutPenalty returns the confidence multiplier applied when an
// iterative stage exhausts its budget.
func (c *Tuning) GetTimeoutPenalty() float64 {
	if c.TimeoutPenalty == nil {
		return 0.85
	}
	return *c.TimeoutPenalty
}
