// Package landmarks extracts skeletal joint positions and tape-measure
// levels (bust, waist, hip) from a normalized body mesh by cross-section
// analysis. Joints that cannot be recovered from geometry fall back to
// height-fraction priors so the pipeline always has a full joint set to
// work with.
package landmarks

import (
	"fmt"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
)

// JointID names one of the fifteen skeletal landmarks.
type JointID int

const (
	JointHead JointID = iota
	JointNeck
	JointShoulderL
	JointShoulderR
	JointElbowL
	JointElbowR
	JointWristL
	JointWristR
	JointHipL
	JointHipR
	JointKneeL
	JointKneeR
	JointAnkleL
	JointAnkleR
	JointPelvis
	NumJoints
)

var jointNames = [NumJoints]string{
	"head", "neck",
	"shoulder_l", "shoulder_r",
	"elbow_l", "elbow_r",
	"wrist_l", "wrist_r",
	"hip_l", "hip_r",
	"knee_l", "knee_r",
	"ankle_l", "ankle_r",
	"pelvis",
}

func (j JointID) String() string {
	if j < 0 || j >= NumJoints {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// ParseJointName maps the wire name of a joint back to its ID.
func ParseJointName(s string) (JointID, error) {
	for i, n := range jointNames {
		if n == s {
			return JointID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown joint %q", s)
}

// Source records how a joint position was obtained.
type Source int

const (
	// SourcePrior marks a joint placed from height-fraction priors.
	SourcePrior Source = iota
	// SourceMeasured marks a joint recovered from cross-section geometry.
	SourceMeasured
	// SourceKeypoint marks a joint overridden by upstream keypoints.
	SourceKeypoint
)

func (s Source) String() string {
	switch s {
	case SourceMeasured:
		return "measured"
	case SourceKeypoint:
		return "keypoint"
	}
	return "prior"
}

// Joint is one landmark position with its provenance.
type Joint struct {
	Pos    geom.Vec `json:"pos"`
	Source Source   `json:"source"`
}

// JointSet holds all fifteen joints, indexed by JointID.
type JointSet struct {
	Joints [NumJoints]Joint
}

// Get returns a joint by ID.
func (js *JointSet) Get(id JointID) Joint { return js.Joints[id] }

// Set stores a joint.
func (js *JointSet) Set(id JointID, pos geom.Vec, src Source) {
	js.Joints[id] = Joint{Pos: pos, Source: src}
}

// Recovered counts the joints not placed from priors; keypoint overrides
// count as recovered.
func (js *JointSet) Recovered() int {
	n := 0
	for _, j := range js.Joints {
		if j.Source != SourcePrior {
			n++
		}
	}
	return n
}

// Inject overrides joints with upstream keypoints, marking them
// SourceKeypoint. Unknown IDs in the map are ignored.
func (js *JointSet) Inject(overrides map[JointID]geom.Vec) {
	for id, pos := range overrides {
		if id >= 0 && id < NumJoints {
			js.Set(id, pos, SourceKeypoint)
		}
	}
}

// Levels are the tape-measure heights and the girths measured there on the
// input mesh. Heights are absolute canonical Z; girths are meters. The
// *FromPrior flags record level detections that fell back to priors.
type Levels struct {
	BustZ  float64 `json:"bust_z"`
	WaistZ float64 `json:"waist_z"`
	HipZ   float64 `json:"hip_z"`

	BustGirthM  float64 `json:"bust_girth_m"`
	WaistGirthM float64 `json:"waist_girth_m"`
	HipGirthM   float64 `json:"hip_girth_m"`

	BustFromPrior  bool `json:"bust_from_prior,omitempty"`
	WaistFromPrior bool `json:"waist_from_prior,omitempty"`
	HipFromPrior   bool `json:"hip_from_prior,omitempty"`
}

// Priors are the height-fraction fallbacks, as fractions of stature from
// the mesh bottom. The slice-scan bands in the tuning config reference the
// same anatomy.
type Priors struct {
	Head     float64
	Neck     float64
	Shoulder float64
	Bust     float64
	Waist    float64
	Hip      float64
	Knee     float64
	Ankle    float64
	Pelvis   float64
	Elbow    float64
	Wrist    float64
	Crotch   float64
}

// DefaultPriors returns the standard proportion table.
func DefaultPriors() Priors {
	return Priors{
		Head:     0.95,
		Neck:     0.85,
		Shoulder: 0.80,
		Bust:     0.72,
		Waist:    0.62,
		Hip:      0.53,
		Knee:     0.28,
		Ankle:    0.05,
		Pelvis:   0.52,
		Elbow:    0.62,
		Wrist:    0.47,
		Crotch:   0.50,
	}
}

// PriorsFromTuning returns the proportion table with any configured
// per-level overrides applied. Unknown level names are ignored.
func PriorsFromTuning(tun *config.Tuning) Priors {
	pri := DefaultPriors()
	for name, f := range tun.GetPriorFractions() {
		switch name {
		case "head":
			pri.Head = f
		case "neck":
			pri.Neck = f
		case "shoulder":
			pri.Shoulder = f
		case "bust":
			pri.Bust = f
		case "waist":
			pri.Waist = f
		case "hip":
			pri.Hip = f
		case "knee":
			pri.Knee = f
		case "ankle":
			pri.Ankle = f
		case "pelvis":
			pri.Pelvis = f
		case "elbow":
			pri.Elbow = f
		case "wrist":
			pri.Wrist = f
		case "crotch":
			pri.Crotch = f
		}
	}
	return pri
}

// Lateral prior offsets for side joints, as fractions of stature. Used
// when a joint falls back to priors so the pose solver still sees a
// plausible limb direction.
const (
	priorShoulderX = 0.115
	priorElbowX    = 0.154
	priorWristX    = 0.186
	priorHipX      = 0.055
	priorKneeX     = 0.049
	priorAnkleX    = 0.043
)
