package anny

import (
	"math"
	"testing"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

func TestDimsStatureAffineInHeight(t *testing.T) {
	p := DefaultPhenotype()
	p.Height = 0
	if s := Dims(p).Stature; math.Abs(s-1.50) > 1e-12 {
		t.Errorf("stature at height 0 = %.4f, want 1.50", s)
	}
	p.Height = 1
	if s := Dims(p).Stature; math.Abs(s-2.00) > 1e-12 {
		t.Errorf("stature at height 1 = %.4f, want 2.00", s)
	}
}

func TestDimsMonotoneInWeight(t *testing.T) {
	p := DefaultPhenotype()
	p.Weight = 0
	prev := Dims(p)
	for w := 0.1; w <= 1.0; w += 0.1 {
		p.Weight = w
		d := Dims(p)
		if d.BustGirth <= prev.BustGirth || d.WaistGirth <= prev.WaistGirth || d.HipGirth <= prev.HipGirth {
			t.Fatalf("girths not strictly increasing at weight %.1f", w)
		}
		prev = d
	}
}

func TestDimsMeanGirthIdentity(t *testing.T) {
	// The three torso girths average exactly to the weight-driven girth
	// scale; the phenotype estimator inverts this.
	for _, w := range []float64{0.1, 0.35, 0.6, 0.9} {
		p := DefaultPhenotype()
		p.Weight = w
		d := Dims(p)
		mean := (d.BustGirth + d.WaistGirth + d.HipGirth) / 3
		want := (52 + 60*w) / 100
		if math.Abs(mean-want) > 1e-9 {
			t.Errorf("weight %.2f: mean girth %.5f, want %.5f", w, mean, want)
		}
	}
}

func TestDimsProportionsShiftWaist(t *testing.T) {
	narrow := DefaultPhenotype()
	narrow.Proportions = 0.9
	wide := DefaultPhenotype()
	wide.Proportions = 0.1
	dn, dw := Dims(narrow), Dims(wide)
	if dn.WaistGirth/dn.HipGirth >= dw.WaistGirth/dw.HipGirth {
		t.Error("higher proportions did not narrow the waist-to-hip ratio")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	m := NewModel()
	p := DefaultPhenotype()
	a, b := m.Generate(p), m.Generate(p)
	if len(a.Mesh.Vertices) != len(b.Mesh.Vertices) {
		t.Fatal("vertex counts differ between identical generations")
	}
	for i := range a.Mesh.Vertices {
		if a.Mesh.Vertices[i] != b.Mesh.Vertices[i] {
			t.Fatalf("vertex %d differs between identical generations", i)
		}
	}
}

func TestGenerateTopologyStableAcrossPhenotypes(t *testing.T) {
	// The shape fitter's numeric Jacobian needs identical topology at
	// every phenotype.
	m := NewModel()
	slim := DefaultPhenotype()
	slim.Weight = 0.1
	heavy := DefaultPhenotype()
	heavy.Weight = 0.9
	a, b := m.Generate(slim), m.Generate(heavy)
	if len(a.Mesh.Vertices) != len(b.Mesh.Vertices) || len(a.Mesh.Faces) != len(b.Mesh.Faces) {
		t.Errorf("topology differs: %d/%d verts, %d/%d faces",
			len(a.Mesh.Vertices), len(b.Mesh.Vertices), len(a.Mesh.Faces), len(b.Mesh.Faces))
	}
}

func TestGenerateMeshSpansStature(t *testing.T) {
	body := NewModel().Generate(DefaultPhenotype())
	lo, hi := body.Mesh.Bounds()
	want := (fracCrown - fracSole) * body.Dims.Stature
	if got := hi.Z - lo.Z; math.Abs(got-want) > 0.02 {
		t.Errorf("mesh z extent %.3f, want %.3f", got, want)
	}
}

func TestGenerateTrunkLoopSurvivesSlicing(t *testing.T) {
	// The ring density must keep circumferential point spacing under the
	// loop clustering radius at the widest tape level, or the trunk cross
	// section dissolves into noise and girth consumers fall through to an
	// arm loop.
	tun := config.EmptyTuning()
	sp := mesh.SliceParams{
		HalfBand: tun.GetSliceBandM(),
		Eps:      tun.GetLoopEpsM(),
		MinPts:   tun.GetLoopMinPoints(),
	}
	for _, w := range []float64{0.3, 0.6, 1.0} {
		p := DefaultPhenotype()
		p.Weight = w
		body := NewModel().Generate(p)
		z := zOf(fracHip, body.Dims.Stature)
		loops := mesh.SliceLoops(body.Mesh, z, sp)
		trunk, ok := mesh.MostCentralLoop(loops)
		if !ok {
			t.Fatalf("weight %.1f: no loops at hip height", w)
		}
		c := trunk.Centroid()
		if math.Hypot(c.X, c.Y) > 0.02 {
			t.Fatalf("weight %.1f: central loop off-axis at (%.3f, %.3f)", w, c.X, c.Y)
		}
		if got := trunk.Perimeter(); math.Abs(got-body.Dims.HipGirth) > 0.08*body.Dims.HipGirth {
			t.Errorf("weight %.1f: hip loop perimeter %.3fm, want near %.3fm", w, got, body.Dims.HipGirth)
		}
	}
}

func TestSkeletonParentsFirst(t *testing.T) {
	body := NewModel().Generate(DefaultPhenotype())
	for i, b := range body.Skeleton.Bones {
		if b.Parent >= i {
			t.Errorf("bone %s (%d) has parent index %d", b.Name, i, b.Parent)
		}
	}
	if len(body.Skeleton.Bones) != NumBones {
		t.Errorf("arena holds %d bones, want %d", len(body.Skeleton.Bones), NumBones)
	}
}

func TestSkinIdentityReproducesRestMesh(t *testing.T) {
	body := NewModel().Generate(DefaultPhenotype())
	posed := Skin(body, body.Skeleton.RestLocals())
	for i := range body.Mesh.Vertices {
		d := posed.Vertices[i].Sub(body.Mesh.Vertices[i]).Norm()
		if d > 1e-9 {
			t.Fatalf("vertex %d moved %.2e under identity skinning", i, d)
		}
	}
}

func TestWorldTransformsRotateSubtree(t *testing.T) {
	body := NewModel().Generate(DefaultPhenotype())
	sk := body.Skeleton

	// Bend the left upper leg: the ankle must move with the whole chain.
	locals := sk.RestLocals()
	locals[BoneUpperLegL] = geom.AxisAngle(geom.V(1, 0, 0), 0.4).ConjugateBy(sk.Bones[BoneUpperLegL].Rest)

	rest := sk.WorldTransforms(nil)
	posed := sk.WorldTransforms(locals)

	restAnkle := sk.PosedTail(rest, BoneLowerLegL)
	posedAnkle := sk.PosedTail(posed, BoneLowerLegL)
	if posedAnkle.Sub(restAnkle).Norm() < 0.05 {
		t.Error("ankle did not follow the upper leg rotation")
	}

	// The right leg is untouched.
	restR := sk.PosedTail(rest, BoneLowerLegR)
	posedR := sk.PosedTail(posed, BoneLowerLegR)
	if posedR.Sub(restR).Norm() > 1e-9 {
		t.Error("right ankle moved without a rotation on its chain")
	}
}

func TestWorldTransformsHingeAtBoneHead(t *testing.T) {
	body := NewModel().Generate(DefaultPhenotype())
	sk := body.Skeleton

	locals := sk.RestLocals()
	locals[BoneUpperLegL] = geom.AxisAngle(geom.V(0, 1, 0), 0.3)

	posed := sk.WorldTransforms(locals)
	head := sk.Bones[BoneUpperLegL].Head
	if posed[BoneUpperLegL].Pos.Sub(head).Norm() > 1e-9 {
		t.Error("rotating a bone moved its own head")
	}
	// The bone length is preserved under the rigid transform.
	tail := sk.PosedTail(posed, BoneUpperLegL)
	if math.Abs(tail.Sub(head).Norm()-sk.Bones[BoneUpperLegL].Length()) > 1e-9 {
		t.Error("bone length changed under posing")
	}
}
