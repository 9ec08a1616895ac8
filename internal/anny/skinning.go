package anny

import (
	"github.com/atelier-data/bodyfit/internal/geom"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

// VertexWeight binds a vertex to at most two bones. Weights sum to 1;
// Bone[1] is -1 when only one bone influences the vertex.
type VertexWeight struct {
	Bone [2]int
	W    [2]float64
}

func soloWeight(bone int) VertexWeight {
	return VertexWeight{Bone: [2]int{bone, -1}, W: [2]float64{1, 0}}
}

func blendWeight(b0, b1 int, w0 float64) VertexWeight {
	if w0 < 0 {
		w0 = 0
	} else if w0 > 1 {
		w0 = 1
	}
	return VertexWeight{Bone: [2]int{b0, b1}, W: [2]float64{w0, 1 - w0}}
}

// Skin poses the body mesh by linear blend skinning: each vertex is the
// weight-blended image of its rest position under its bones' world
// transforms. Identity locals reproduce the rest mesh exactly.
func Skin(b *Body, locals []geom.Rot) *mesh.Mesh {
	world := b.Skeleton.WorldTransforms(locals)
	out := b.Mesh.Clone()
	for i, v := range b.Mesh.Vertices {
		w := b.Weights[i]
		var posed geom.Vec
		for k := 0; k < 2; k++ {
			bi := w.Bone[k]
			if bi < 0 || w.W[k] == 0 {
				continue
			}
			rest := b.Skeleton.Bones[bi].Head
			posed = posed.Add(world[bi].Apply(v, rest).Mul(w.W[k]))
		}
		out.Vertices[i] = posed
	}
	return out
}
