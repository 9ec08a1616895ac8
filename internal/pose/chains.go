// Package pose aligns the template skeleton to extracted joints. Each
// kinematic chain maps a pair of landmarks to one bone rotation; chains
// are solved parent-first in a single pass, with the configured damping
// applied to leg bones.
package pose

import (
	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/landmarks"
)

// Chain drives one bone from two extracted joints. Parent is the bone
// index of the upstream chain whose world delta pre-rotates this chain's
// rest direction, or -1 when the chain hangs off the root.
type Chain struct {
	Start  landmarks.JointID
	End    landmarks.JointID
	Bone   int
	Parent int
	Leg    bool
}

// Chains returns the kinematic chain table in solve order: every chain's
// parent chain appears before it.
func Chains() []Chain {
	return []Chain{
		{Start: landmarks.JointNeck, End: landmarks.JointHead, Bone: anny.BoneNeck, Parent: -1},
		{Start: landmarks.JointShoulderL, End: landmarks.JointElbowL, Bone: anny.BoneUpperArmL, Parent: -1},
		{Start: landmarks.JointShoulderR, End: landmarks.JointElbowR, Bone: anny.BoneUpperArmR, Parent: -1},
		{Start: landmarks.JointElbowL, End: landmarks.JointWristL, Bone: anny.BoneForearmL, Parent: anny.BoneUpperArmL},
		{Start: landmarks.JointElbowR, End: landmarks.JointWristR, Bone: anny.BoneForearmR, Parent: anny.BoneUpperArmR},
		{Start: landmarks.JointHipL, End: landmarks.JointKneeL, Bone: anny.BoneUpperLegL, Parent: -1, Leg: true},
		{Start: landmarks.JointHipR, End: landmarks.JointKneeR, Bone: anny.BoneUpperLegR, Parent: -1, Leg: true},
		{Start: landmarks.JointKneeL, End: landmarks.JointAnkleL, Bone: anny.BoneLowerLegL, Parent: anny.BoneUpperLegL, Leg: true},
		{Start: landmarks.JointKneeR, End: landmarks.JointAnkleR, Bone: anny.BoneLowerLegR, Parent: anny.BoneUpperLegR, Leg: true},
	}
}

// templateJoint maps a landmark ID to its rest position on the template
// skeleton. These are the positions the extractor would measure on an
// unposed template, so chain rest directions match extraction directly.
func templateJoint(s *anny.Skeleton, id landmarks.JointID) geom.Vec {
	b := s.Bones
	switch id {
	case landmarks.JointHead:
		return b[anny.BoneHead].Tail
	case landmarks.JointNeck:
		return b[anny.BoneNeck].Head
	case landmarks.JointShoulderL:
		return b[anny.BoneUpperArmL].Head
	case landmarks.JointShoulderR:
		return b[anny.BoneUpperArmR].Head
	case landmarks.JointElbowL:
		return b[anny.BoneForearmL].Head
	case landmarks.JointElbowR:
		return b[anny.BoneForearmR].Head
	case landmarks.JointWristL:
		return b[anny.BoneForearmL].Tail
	case landmarks.JointWristR:
		return b[anny.BoneForearmR].Tail
	case landmarks.JointHipL:
		return b[anny.BoneUpperLegL].Head
	case landmarks.JointHipR:
		return b[anny.BoneUpperLegR].Head
	case landmarks.JointKneeL:
		return b[anny.BoneLowerLegL].Head
	case landmarks.JointKneeR:
		return b[anny.BoneLowerLegR].Head
	case landmarks.JointAnkleL:
		return b[anny.BoneLowerLegL].Tail
	case landmarks.JointAnkleR:
		return b[anny.BoneLowerLegR].Tail
	}
	return b[anny.BoneRoot].Head
}
