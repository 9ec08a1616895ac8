package mesh

import (
	"math"
	"sort"
)

// SlicePoint is a mesh vertex projected onto a horizontal cutting plane.
type SlicePoint struct {
	X float64
	Y float64
}

// Loop is one connected component of a cross section: a ring of points from
// a single body part (torso, one leg, one arm) at the slice height.
type Loop struct {
	Points []SlicePoint
}

// Centroid returns the mean point of the loop.
func (l Loop) Centroid() SlicePoint {
	if len(l.Points) == 0 {
		return SlicePoint{}
	}
	var sx, sy float64
	for _, p := range l.Points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(l.Points))
	return SlicePoint{X: sx / n, Y: sy / n}
}

// Perimeter returns the closed polygon length of the loop. Points are
// bucketed into angular bins around the centroid and averaged per bin
// before summing; a slice band thick enough to catch two vertex rings
// would otherwise zigzag radially between them and inflate the girth.
// Body cross sections are star-shaped about their centroid, so the
// angular ordering recovers the ring from the unordered band.
func (l Loop) Perimeter() float64 {
	if len(l.Points) < 3 {
		return 0
	}
	c := l.Centroid()
	nBins := len(l.Points)
	if nBins > 256 {
		nBins = 256
	}
	type bin struct {
		sx, sy float64
		n      int
	}
	bins := make([]bin, nBins)
	for _, p := range l.Points {
		ang := math.Atan2(p.Y-c.Y, p.X-c.X)
		i := int((ang + math.Pi) / (2 * math.Pi) * float64(nBins))
		if i >= nBins {
			i = nBins - 1
		}
		bins[i].sx += p.X
		bins[i].sy += p.Y
		bins[i].n++
	}
	ordered := make([]SlicePoint, 0, nBins)
	for _, b := range bins {
		if b.n > 0 {
			ordered = append(ordered, SlicePoint{X: b.sx / float64(b.n), Y: b.sy / float64(b.n)})
		}
	}
	if len(ordered) < 3 {
		return 0
	}
	var sum float64
	for i := range ordered {
		next := ordered[(i+1)%len(ordered)]
		sum += math.Hypot(next.X-ordered[i].X, next.Y-ordered[i].Y)
	}
	return sum
}

// MeanRadius returns the average distance from the centroid, a cheap proxy
// for loop size that is robust to uneven point density.
func (l Loop) MeanRadius() float64 {
	if len(l.Points) == 0 {
		return 0
	}
	c := l.Centroid()
	var sum float64
	for _, p := range l.Points {
		sum += math.Hypot(p.X-c.X, p.Y-c.Y)
	}
	return sum / float64(len(l.Points))
}

// SliceAt collects the vertices within halfBand of the cutting plane at
// height z, projected to the plane. The returned points are unordered and
// may mix several body parts; SliceLoops separates them.
func (m *Mesh) SliceAt(z, halfBand float64) []SlicePoint {
	var pts []SlicePoint
	for _, v := range m.Vertices {
		if math.Abs(v.Z-z) <= halfBand {
			pts = append(pts, SlicePoint{X: v.X, Y: v.Y})
		}
	}
	return pts
}

// SliceParams tunes loop assembly. Values come from the tuning config.
type SliceParams struct {
	HalfBand float64 // half-thickness of the slab around the cutting plane, meters
	Eps      float64 // neighborhood radius separating distinct loops, meters
	MinPts   int     // minimum neighborhood size for a core point
}

// SliceLoops cuts the mesh at height z and groups the band points into
// loops by density clustering. Sparse stragglers (seam vertices, scan
// noise) are discarded as noise. Loops are ordered largest first.
func SliceLoops(m *Mesh, z float64, p SliceParams) []Loop {
	pts := m.SliceAt(z, p.HalfBand)
	return AssembleLoops(pts, p.Eps, p.MinPts)
}

// AssembleLoops clusters slice points into loops with density-based
// clustering over a spatial hash grid. Points labelled noise are dropped.
func AssembleLoops(pts []SlicePoint, eps float64, minPts int) []Loop {
	if len(pts) == 0 {
		return nil
	}
	if minPts < 1 {
		minPts = 1
	}
	idx := newSectionIndex(eps)
	idx.build(pts)

	// Labels: 0 = unvisited, -1 = noise, >0 = loop ID.
	labels := make([]int, len(pts))
	nextID := 0
	for i := range pts {
		if labels[i] != 0 {
			continue
		}
		neighbors := idx.regionQuery(pts, pts[i], eps)
		if len(neighbors) < minPts {
			labels[i] = -1
			continue
		}
		nextID++
		expandLoop(pts, labels, idx, i, neighbors, nextID, eps, minPts)
	}

	loops := make([]Loop, nextID)
	for i, lab := range labels {
		if lab > 0 {
			loops[lab-1].Points = append(loops[lab-1].Points, pts[i])
		}
	}
	out := loops[:0]
	for _, l := range loops {
		if len(l.Points) >= minPts {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Points) != len(out[j].Points) {
			return len(out[i].Points) > len(out[j].Points)
		}
		ci, cj := out[i].Centroid(), out[j].Centroid()
		if ci.X != cj.X {
			return ci.X < cj.X
		}
		return ci.Y < cj.Y
	})
	return out
}

// expandLoop grows a loop from a core point using a queue. Points earlier
// marked noise are absorbed as border points when reached.
func expandLoop(pts []SlicePoint, labels []int, idx *sectionIndex, seed int, neighbors []int, id int, eps float64, minPts int) {
	labels[seed] = id
	queue := append([]int(nil), neighbors...)
	for qi := 0; qi < len(queue); qi++ {
		j := queue[qi]
		if labels[j] == -1 {
			labels[j] = id
		}
		if labels[j] != 0 {
			continue
		}
		labels[j] = id
		jn := idx.regionQuery(pts, pts[j], eps)
		if len(jn) >= minPts {
			queue = append(queue, jn...)
		}
	}
}

// LargestLoop returns the loop with the greatest perimeter.
func LargestLoop(loops []Loop) (Loop, bool) {
	if len(loops) == 0 {
		return Loop{}, false
	}
	best := 0
	bestPerim := loops[0].Perimeter()
	for i := 1; i < len(loops); i++ {
		if p := loops[i].Perimeter(); p > bestPerim {
			best, bestPerim = i, p
		}
	}
	return loops[best], true
}

// MostCentralLoop returns the loop whose centroid is nearest the body axis
// (the Z axis in the canonical frame). At torso heights this selects the
// trunk over arms hanging beside it.
func MostCentralLoop(loops []Loop) (Loop, bool) {
	if len(loops) == 0 {
		return Loop{}, false
	}
	best := 0
	bestDist := math.Inf(1)
	for i, l := range loops {
		c := l.Centroid()
		d := math.Hypot(c.X, c.Y)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return loops[best], true
}

// sectionIndex is a uniform hash grid over the cutting plane used to make
// neighborhood queries cheap during loop assembly.
type sectionIndex struct {
	cellSize float64
	grid     map[int64][]int
}

func newSectionIndex(cellSize float64) *sectionIndex {
	if cellSize <= 0 {
		cellSize = 0.01
	}
	return &sectionIndex{cellSize: cellSize, grid: make(map[int64][]int)}
}

func (si *sectionIndex) build(pts []SlicePoint) {
	for i, p := range pts {
		id := si.cellID(p.X, p.Y)
		si.grid[id] = append(si.grid[id], i)
	}
}

// cellID maps a plane position to a single hash key.
func (si *sectionIndex) cellID(x, y float64) int64 {
	return si.cellIDAt(int64(math.Floor(x/si.cellSize)), int64(math.Floor(y/si.cellSize)))
}

// cellIDAt packs integer cell coordinates into one key. Coordinates are
// zigzag-encoded to fold negatives into naturals, then combined with the
// Szudzik pairing function, which packs two values collision-free.
func (si *sectionIndex) cellIDAt(cx, cy int64) int64 {
	var a, b uint64
	if cx >= 0 {
		a = uint64(2 * cx)
	} else {
		a = uint64(-2*cx - 1)
	}
	if cy >= 0 {
		b = uint64(2 * cy)
	} else {
		b = uint64(-2*cy - 1)
	}

	if a >= b {
		return int64(a*a + a + b)
	}
	return int64(a + b*b)
}

// regionQuery returns the indices of all points within eps of center,
// scanning the 3x3 block of cells around it.
func (si *sectionIndex) regionQuery(pts []SlicePoint, center SlicePoint, eps float64) []int {
	var out []int
	eps2 := eps * eps
	ccx := int64(math.Floor(center.X / si.cellSize))
	ccy := int64(math.Floor(center.Y / si.cellSize))
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, i := range si.grid[si.cellIDAt(ccx+dx, ccy+dy)] {
				ddx := pts[i].X - center.X
				ddy := pts[i].Y - center.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					out = append(out, i)
				}
			}
		}
	}
	return out
}
