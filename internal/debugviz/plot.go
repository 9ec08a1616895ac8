// Package debugviz renders PNG diagnostics for the fitting pipeline:
// cross-section scatter plots with loop coloring and landmark overlays,
// and front/side silhouette profiles. These are engineering aids for
// tuning the cross-section parameters, not product output.
package debugviz

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/atelier-data/bodyfit/internal/landmarks"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

// loopPalette cycles across loops in one cross section.
var loopPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
}

// PlotCrossSection renders the loops of one slice to a PNG. Each loop gets
// its own color; the loop centroids are marked with crosses.
func PlotCrossSection(loops []mesh.Loop, z float64, outPath string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cross section at z=%.3fm (%d loops)", z, len(loops))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	for i, loop := range loops {
		pts := make(plotter.XYs, len(loop.Points))
		for j, sp := range loop.Points {
			pts[j].X = sp.X
			pts[j].Y = sp.Y
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("loop %d scatter: %w", i, err)
		}
		sc.GlyphStyle.Color = loopPalette[i%len(loopPalette)]
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("loop %d (%.2fm)", i, loop.Perimeter()), sc)

		c := loop.Centroid()
		cross, err := plotter.NewScatter(plotter.XYs{{X: c.X, Y: c.Y}})
		if err != nil {
			return fmt.Errorf("loop %d centroid: %w", i, err)
		}
		cross.GlyphStyle.Shape = draw.CrossGlyph{}
		cross.GlyphStyle.Radius = vg.Points(4)
		cross.GlyphStyle.Color = color.RGBA{A: 255}
		p.Add(cross)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, outPath)
}

// PlotProfile renders the front (X extent) and side (Y extent) silhouette
// of a normalized mesh against height, with the detected tape levels drawn
// as horizontal rules.
func PlotProfile(m *mesh.Mesh, levels landmarks.Levels, sp mesh.SliceParams, outPath string) error {
	lo, hi := m.Bounds()
	if hi.Z <= lo.Z {
		return fmt.Errorf("degenerate mesh, no height extent")
	}

	const steps = 120
	var front, side plotter.XYs
	for i := 0; i <= steps; i++ {
		z := lo.Z + (hi.Z-lo.Z)*float64(i)/steps
		pts := m.SliceAt(z, sp.HalfBand)
		if len(pts) == 0 {
			continue
		}
		var maxX, maxY float64
		for _, pt := range pts {
			if ax := abs(pt.X); ax > maxX {
				maxX = ax
			}
			if ay := abs(pt.Y); ay > maxY {
				maxY = ay
			}
		}
		front = append(front, plotter.XY{X: maxX, Y: z})
		side = append(side, plotter.XY{X: maxY, Y: z})
	}

	p := plot.New()
	p.Title.Text = "Silhouette profile"
	p.X.Label.Text = "half extent (m)"
	p.Y.Label.Text = "Z (m)"

	frontLine, err := plotter.NewLine(front)
	if err != nil {
		return fmt.Errorf("front profile: %w", err)
	}
	frontLine.Color = loopPalette[0]
	sideLine, err := plotter.NewLine(side)
	if err != nil {
		return fmt.Errorf("side profile: %w", err)
	}
	sideLine.Color = loopPalette[1]
	p.Add(frontLine, sideLine)
	p.Legend.Add("front (|X|)", frontLine)
	p.Legend.Add("side (|Y|)", sideLine)

	for _, lv := range []struct {
		name string
		z    float64
	}{
		{"bust", levels.BustZ},
		{"waist", levels.WaistZ},
		{"hip", levels.HipZ},
	} {
		rule := plotter.XYs{{X: 0, Y: lv.z}, {X: 0.5, Y: lv.z}}
		line, err := plotter.NewLine(rule)
		if err != nil {
			return fmt.Errorf("%s rule: %w", lv.name, err)
		}
		line.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		line.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
		p.Add(line)
		p.Legend.Add(lv.name, line)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return p.Save(5*vg.Inch, 8*vg.Inch, outPath)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
