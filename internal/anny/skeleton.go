package anny

import (
	"fmt"

	"github.com/atelier-data/bodyfit/internal/geom"
)

// Bone indices into the skeleton arena. The order is construction order:
// every bone's parent has a smaller index, so a single forward pass over
// the arena visits parents before children.
const (
	BoneRoot = iota
	BoneSpine
	BoneNeck
	BoneHead
	BoneClavicleL
	BoneClavicleR
	BoneUpperArmL
	BoneUpperArmR
	BoneForearmL
	BoneForearmR
	BoneHandL
	BoneHandR
	BoneUpperLegL
	BoneUpperLegR
	BoneLowerLegL
	BoneLowerLegR
	BoneFootL
	BoneFootR
	BoneBreastL
	BoneBreastR
	NumBones
)

var boneNames = [NumBones]string{
	"root", "spine", "neck01", "head",
	"clavicle.L", "clavicle.R", "upperarm.L", "upperarm.R",
	"forearm.L", "forearm.R", "hand.L", "hand.R",
	"upperleg.L", "upperleg.R", "lowerleg.L", "lowerleg.R",
	"foot.L", "foot.R", "breast.L", "breast.R",
}

// BoneName returns the rig name for an arena index.
func BoneName(i int) string {
	if i < 0 || i >= NumBones {
		return fmt.Sprintf("bone(%d)", i)
	}
	return boneNames[i]
}

// Bone is one entry of the skeleton arena. Head and Tail are rest
// positions in the canonical frame; Rest is the rotation taking the local
// bone axis +Y to the rest bone direction. In the bone's local frame X is
// flexion, Y twist, and Z abduction, which is what the pose damping
// configuration refers to.
type Bone struct {
	Name   string
	Parent int // arena index, -1 for the root
	Head   geom.Vec
	Tail   geom.Vec
	Rest   geom.Rot
}

// Dir returns the normalized rest direction, head to tail. Zero-length
// bones report +Y, the local bone axis.
func (b Bone) Dir() geom.Vec {
	d, ok := geom.SafeNormalize(b.Tail.Sub(b.Head))
	if !ok {
		return geom.V(0, 1, 0)
	}
	return d
}

// Length returns the rest bone length.
func (b Bone) Length() float64 {
	return b.Tail.Sub(b.Head).Norm()
}

// Skeleton is a flat, indexed bone arena. Bones are stored parents-first;
// WorldTransforms relies on that ordering for its single traversal.
type Skeleton struct {
	Bones []Bone
}

// BoneTransform is a posed world transform: Rot is the cumulative rotation
// of the bone's rest neighborhood, Pos the posed head position. A rest
// point q rigidly attached to the bone maps to Pos + Rot·(q − restHead).
type BoneTransform struct {
	Rot geom.Rot
	Pos geom.Vec
}

// Apply maps a rest-frame point attached to the bone with rest head at
// restHead into the posed frame.
func (t BoneTransform) Apply(q, restHead geom.Vec) geom.Vec {
	return t.Pos.Add(t.Rot.Apply(q.Sub(restHead)))
}

// WorldTransforms poses the skeleton in a single top-down pass. locals[i]
// is bone i's rotation in its own rest frame; identity entries (or a nil
// slice) reproduce the rest pose exactly. The returned slice is indexed
// like the arena.
func (s *Skeleton) WorldTransforms(locals []geom.Rot) []BoneTransform {
	out := make([]BoneTransform, len(s.Bones))
	for i, b := range s.Bones {
		local := geom.Identity()
		if locals != nil {
			local = locals[i]
		}
		// Conjugate the local rotation back into the world frame.
		delta := b.Rest.Mul(local).Mul(b.Rest.Inverse())
		if b.Parent < 0 {
			out[i] = BoneTransform{Rot: delta, Pos: b.Head}
			continue
		}
		p := out[b.Parent]
		pos := p.Apply(b.Head, s.Bones[b.Parent].Head)
		// Deltas compose parent-first: the parent's world delta turns
		// the whole subtree, then this bone's own delta is applied in
		// the world frame.
		out[i] = BoneTransform{Rot: delta.Mul(p.Rot), Pos: pos}
	}
	return out
}

// RestLocals returns an identity local rotation per bone, the rest pose.
func (s *Skeleton) RestLocals() []geom.Rot {
	locals := make([]geom.Rot, len(s.Bones))
	for i := range locals {
		locals[i] = geom.Identity()
	}
	return locals
}

// PosedTail returns the posed tail position of bone i given the world
// transforms from WorldTransforms.
func (s *Skeleton) PosedTail(world []BoneTransform, i int) geom.Vec {
	return world[i].Apply(s.Bones[i].Tail, s.Bones[i].Head)
}
