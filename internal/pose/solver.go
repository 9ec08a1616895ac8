package pose

import (
	"log"
	"math"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/landmarks"
)

// Solution is the solved pose: one local rotation per arena bone, identity
// for bones no chain drives.
type Solution struct {
	Locals       []geom.Rot
	RootYawRad   float64
	SolvedChains int
}

// Solver computes bone rotations aligning the template skeleton to the
// extracted joints.
type Solver struct {
	tun *config.Tuning
}

func NewSolver(tun *config.Tuning) *Solver {
	return &Solver{tun: tun}
}

// Solve runs one parent-first pass over the chain table. Chains whose
// joints were not measured are skipped and their bones stay at rest.
// The solve is closed-form per chain and always completes.
func (s *Solver) Solve(body *anny.Body, joints *landmarks.JointSet) Solution {
	skel := body.Skeleton
	sol := Solution{Locals: skel.RestLocals()}

	// World deltas per bone, identity where unsolved. The root's yaw
	// propagates to every chain hung directly off the root.
	deltas := make([]geom.Rot, len(skel.Bones))
	for i := range deltas {
		deltas[i] = geom.Identity()
	}

	sol.RootYawRad = rootYaw(skel, joints)
	rootDelta := geom.AxisAngle(geom.V(0, 0, 1), sol.RootYawRad)
	deltas[anny.BoneRoot] = rootDelta
	rootBone := skel.Bones[anny.BoneRoot]
	sol.Locals[anny.BoneRoot] = rootBone.Rest.Inverse().Mul(rootDelta).Mul(rootBone.Rest)

	twistDamp := s.tun.GetLegTwistDamping()
	abductDamp := s.tun.GetLegAbductionDamping()

	for _, ch := range Chains() {
		start, end := joints.Get(ch.Start), joints.Get(ch.End)
		if start.Source == landmarks.SourcePrior || end.Source == landmarks.SourcePrior {
			continue
		}
		target, ok := geom.SafeNormalize(end.Pos.Sub(start.Pos))
		if !ok {
			continue
		}

		parentDelta := rootDelta
		if ch.Parent >= 0 {
			parentDelta = deltas[ch.Parent]
		}

		bone := skel.Bones[ch.Bone]
		restDir, ok := geom.SafeNormalize(templateJoint(skel, ch.End).Sub(templateJoint(skel, ch.Start)))
		if !ok {
			continue
		}
		preDir := parentDelta.Apply(restDir)
		worldDelta := geom.Between(preDir, target)

		local := bone.Rest.Inverse().Mul(worldDelta).Mul(bone.Rest)
		if ch.Leg {
			local = dampLeg(local, twistDamp, abductDamp)
		}
		sol.Locals[ch.Bone] = local

		// Recompose the achieved world delta after damping so child
		// chains see the rotation that will actually be applied.
		achieved := bone.Rest.Mul(local).Mul(bone.Rest.Inverse())
		deltas[ch.Bone] = achieved.Mul(parentDelta)
		sol.SolvedChains++
	}

	log.Printf("[Pose] solved %d/%d chains, root yaw %.1f deg",
		sol.SolvedChains, len(Chains()), sol.RootYawRad*180/math.Pi)
	return sol
}

// rootYaw compares the extracted hip line to the template hip line in the
// horizontal plane. With hips on priors the extracted line matches the
// template and the yaw is zero.
func rootYaw(skel *anny.Skeleton, joints *landmarks.JointSet) float64 {
	lh := joints.Get(landmarks.JointHipL).Pos
	rh := joints.Get(landmarks.JointHipR).Pos
	dx, dy := lh.X-rh.X, lh.Y-rh.Y
	if math.Hypot(dx, dy) < 1e-9 {
		return 0
	}
	tl := skel.Bones[anny.BoneUpperLegL].Head
	tr := skel.Bones[anny.BoneUpperLegR].Head
	yaw := math.Atan2(dy, dx) - math.Atan2(tl.Y-tr.Y, tl.X-tr.X)
	for yaw > math.Pi {
		yaw -= 2 * math.Pi
	}
	for yaw < -math.Pi {
		yaw += 2 * math.Pi
	}
	return yaw
}

// dampLeg scales the twist (local Y) and abduction (local Z) components of
// a leg rotation, keeping flexion (local X) intact.
func dampLeg(local geom.Rot, twistDamp, abductDamp float64) geom.Rot {
	ax, ay, az := local.EulerXYZ()
	return geom.FromEulerXYZ(ax, ay*twistDamp, az*abductDamp)
}
