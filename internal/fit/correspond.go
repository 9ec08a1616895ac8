package fit

import (
	"math"

	"github.com/atelier-data/bodyfit/internal/geom"
)

// pointIndex is a uniform hash grid over 3D points used for nearest
// neighbor lookups during alignment and shape regression. Cell keys use
// the same zigzag plus Szudzik pairing as the slice-plane index, nested
// once more for the third coordinate.
type pointIndex struct {
	cellSize float64
	pts      []geom.Vec
	grid     map[int64][]int
}

func szudzikPair(x, y int64) int64 {
	if x >= y {
		return x*x + x + y
	}
	return y*y + x
}

func zigzag(c int64) int64 {
	if c >= 0 {
		return 2 * c
	}
	return -2*c - 1
}

func cellKey(cx, cy, cz int64) int64 {
	return szudzikPair(szudzikPair(zigzag(cx), zigzag(cy)), zigzag(cz))
}

func newPointIndex(pts []geom.Vec, cellSize float64) *pointIndex {
	ix := &pointIndex{
		cellSize: cellSize,
		pts:      pts,
		grid:     make(map[int64][]int, len(pts)),
	}
	for i, p := range pts {
		k := ix.keyOf(p)
		ix.grid[k] = append(ix.grid[k], i)
	}
	return ix
}

func (ix *pointIndex) keyOf(p geom.Vec) int64 {
	cx := int64(math.Floor(p.X / ix.cellSize))
	cy := int64(math.Floor(p.Y / ix.cellSize))
	cz := int64(math.Floor(p.Z / ix.cellSize))
	return cellKey(cx, cy, cz)
}

// nearest returns the index of the closest point to q and its distance.
// The search widens cell ring by cell ring; a query farther than a few
// cells from every point falls back to a linear scan.
func (ix *pointIndex) nearest(q geom.Vec) (int, float64) {
	cx := int64(math.Floor(q.X / ix.cellSize))
	cy := int64(math.Floor(q.Y / ix.cellSize))
	cz := int64(math.Floor(q.Z / ix.cellSize))

	best := -1
	bestD2 := math.Inf(1)
	for _, r := range []int64{1, 2, 4} {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				for dz := -r; dz <= r; dz++ {
					ids, ok := ix.grid[cellKey(cx+dx, cy+dy, cz+dz)]
					if !ok {
						continue
					}
					for _, i := range ids {
						d2 := distSq(ix.pts[i], q)
						if d2 < bestD2 {
							bestD2 = d2
							best = i
						}
					}
				}
			}
		}
		// A hit inside radius r is only safely the global nearest once
		// its distance fits within the searched ring.
		if best >= 0 && math.Sqrt(bestD2) <= float64(r)*ix.cellSize {
			return best, math.Sqrt(bestD2)
		}
	}
	if best >= 0 {
		return best, math.Sqrt(bestD2)
	}
	for i, p := range ix.pts {
		d2 := distSq(p, q)
		if d2 < bestD2 {
			bestD2 = d2
			best = i
		}
	}
	return best, math.Sqrt(bestD2)
}

func distSq(a, b geom.Vec) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}
