// Package testutil generates synthetic scan fixtures for pipeline and
// measurement tests. Scans are derived from the template model so every
// fixture is solvable by construction: a pipeline run against one should
// recover the phenotype it was generated from.
package testutil

import (
	"math"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

// HourglassPhenotype generates a 165cm female body whose bust, waist and
// hip tapes come out at 94cm, 70cm and 100cm.
func HourglassPhenotype() anny.Phenotype {
	return anny.Phenotype{
		Gender:      1.0,
		Age:         0.4,
		Height:      0.3,
		Weight:      0.60,
		Muscle:      0.5,
		Proportions: 0.714,
	}
}

// Scan generates a rest-pose body scan for a phenotype.
func Scan(p anny.Phenotype) *mesh.Mesh {
	return anny.NewModel().Generate(p).Mesh.Clone()
}

// ScanPosed generates a scan skinned with the given bone rotations.
func ScanPosed(p anny.Phenotype, locals []geom.Rot) *mesh.Mesh {
	return anny.Skin(anny.NewModel().Generate(p), locals)
}

// ScanWithoutArms strips everything from the shoulders out, leaving seven
// measurable joints: head, neck, pelvis, knees and ankles.
func ScanWithoutArms(p anny.Phenotype) *mesh.Mesh {
	return stripBones(anny.NewModel().Generate(p), map[int]bool{
		anny.BoneClavicleL: true, anny.BoneClavicleR: true,
		anny.BoneUpperArmL: true, anny.BoneUpperArmR: true,
		anny.BoneForearmL: true, anny.BoneForearmR: true,
		anny.BoneHandL: true, anny.BoneHandR: true,
	})
}

// ScanWithoutForearms strips the arms below the elbow. Elbows, wrists and
// hips fall back to priors but nine joints stay measurable, which keeps
// the joint set above the completeness threshold.
func ScanWithoutForearms(p anny.Phenotype) *mesh.Mesh {
	return stripBones(anny.NewModel().Generate(p), map[int]bool{
		anny.BoneForearmL: true, anny.BoneForearmR: true,
		anny.BoneHandL: true, anny.BoneHandR: true,
	})
}

// ScanWithGown drapes an A-line skirt from the hips down: every leg
// vertex and every trunk vertex below hip level is projected onto a cone
// widening toward the hem, merging the legs into one cross-section loop.
func ScanWithGown(p anny.Phenotype) *mesh.Mesh {
	body := anny.NewModel().Generate(p)
	s := body.Dims.Stature
	zHip := 0.01 * s  // hip level sits one stature percent above the pelvis origin
	zHem := -0.50 * s // canonical sole level
	hipR := body.Dims.HipGirth / (2 * math.Pi)
	hemR := 1.8 * hipR

	legBones := map[int]bool{
		anny.BoneUpperLegL: true, anny.BoneUpperLegR: true,
		anny.BoneLowerLegL: true, anny.BoneLowerLegR: true,
		anny.BoneFootL: true, anny.BoneFootR: true,
	}

	out := body.Mesh.Clone()
	for i, v := range out.Vertices {
		covered := legBones[body.Weights[i].Bone[0]] ||
			(body.Weights[i].Bone[0] == anny.BoneSpine && v.Z < zHip)
		if !covered {
			continue
		}
		t := (zHip - v.Z) / (zHip - zHem)
		r := hipR + t*(hemR-hipR)
		ang := math.Atan2(v.Y, v.X)
		out.Vertices[i] = geom.V(r*math.Cos(ang), r*math.Sin(ang), v.Z)
	}
	return out
}

// ScanInflatedXY scales the scan outward in the horizontal plane, growing
// every girth by the factor while leaving stature alone. Generating at
// the weight ceiling and inflating produces a body the shape space cannot
// express.
func ScanInflatedXY(p anny.Phenotype, factor float64) *mesh.Mesh {
	m := Scan(p)
	m.TransformVerts(func(v geom.Vec) geom.Vec {
		return geom.V(v.X*factor, v.Y*factor, v.Z)
	})
	return m
}

// ScanPermuted remaps axes: out[k] = sign[k] * in[perm[k]]. Used to feed
// the orientation detector scrambled captures.
func ScanPermuted(m *mesh.Mesh, perm [3]int, sign [3]float64) *mesh.Mesh {
	out := m.Clone()
	out.TransformVerts(func(v geom.Vec) geom.Vec {
		in := [3]float64{v.X, v.Y, v.Z}
		return geom.V(sign[0]*in[perm[0]], sign[1]*in[perm[1]], sign[2]*in[perm[2]])
	})
	return out
}

// stripBones removes vertices whose dominant skinning bone is in drop,
// along with faces touching them, reindexing the rest.
func stripBones(body *anny.Body, drop map[int]bool) *mesh.Mesh {
	keep := make([]int, len(body.Mesh.Vertices))
	out := &mesh.Mesh{}
	for i, v := range body.Mesh.Vertices {
		if drop[body.Weights[i].Bone[0]] {
			keep[i] = -1
			continue
		}
		keep[i] = len(out.Vertices)
		out.Vertices = append(out.Vertices, v)
	}
	for _, f := range body.Mesh.Faces {
		a, b, c := keep[f[0]], keep[f[1]], keep[f[2]]
		if a < 0 || b < 0 || c < 0 {
			continue
		}
		out.Faces = append(out.Faces, [3]int{a, b, c})
	}
	return out
}
