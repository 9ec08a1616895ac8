// Command meshinfo inspects a body scan mesh: extents, orientation
// detection, and a cross-section loop census. Useful for triaging scans
// that fail the fitting pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/debugviz"
	"github.com/atelier-data/bodyfit/internal/mesh"
)

var (
	meshPath   = flag.String("mesh", "", "scan mesh file (.obj or .stl)")
	configPath = flag.String("config", "", "tuning config JSON (built-in defaults when empty)")
	census     = flag.Int("census", 10, "number of evenly spaced cross-section levels to report")
	plotAt     = flag.Float64("plot-at", -1, "height fraction in [0,1] to render a cross-section plot for")
	plotOut    = flag.String("plot-out", "cross_section.png", "cross-section plot output file")
)

func main() {
	flag.Parse()

	if *meshPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	tun := config.EmptyTuning()
	if *configPath != "" {
		var err error
		tun, err = config.LoadTuning(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	m, err := mesh.Load(*meshPath)
	if err != nil {
		log.Fatalf("load mesh: %v", err)
	}

	lo, hi := m.Bounds()
	fmt.Printf("file:      %s\n", *meshPath)
	fmt.Printf("vertices:  %d\n", len(m.Vertices))
	fmt.Printf("faces:     %d\n", len(m.Faces))
	fmt.Printf("bounds:    x [%.3f, %.3f]  y [%.3f, %.3f]  z [%.3f, %.3f]\n",
		lo.X, hi.X, lo.Y, hi.Y, lo.Z, hi.Z)
	fmt.Printf("height:    %.3f (z extent, source units)\n", m.Height())
	c := m.Centroid()
	fmt.Printf("centroid:  (%.3f, %.3f, %.3f)\n", c.X, c.Y, c.Z)

	sp := mesh.SliceParams{
		HalfBand: tun.GetSliceBandM(),
		Eps:      tun.GetLoopEpsM(),
		MinPts:   tun.GetLoopMinPoints(),
	}

	orient, err := mesh.DetectOrientation(m, mesh.OrientationParams{
		MinSpread: tun.GetOrientationMinSpread(),
		Slice:     sp,
	})
	if err != nil {
		fmt.Printf("orientation: FAILED: %v\n", err)
	} else {
		fmt.Printf("orientation: perm=%v sign=%v spread=%.2f upFlipped=%v identity=%v\n",
			orient.Perm, orient.Sign, orient.Spread, orient.UpFlipped, orient.IsIdentity())
	}

	// Census runs on the raw mesh; loops tell legs (2) from torso (1)
	// from torso-plus-arms (3).
	if *census > 0 {
		fmt.Printf("\ncross-section census (%d levels):\n", *census)
		for i := 0; i < *census; i++ {
			frac := (float64(i) + 0.5) / float64(*census)
			z := lo.Z + frac*(hi.Z-lo.Z)
			loops := mesh.SliceLoops(m, z, sp)
			line := fmt.Sprintf("  z=%8.3f (%.0f%%): %d loop(s)", z, frac*100, len(loops))
			if lg, ok := mesh.LargestLoop(loops); ok {
				line += fmt.Sprintf(", largest perimeter %.3f", lg.Perimeter())
			}
			fmt.Println(line)
		}
	}

	if *plotAt >= 0 && *plotAt <= 1 {
		z := lo.Z + *plotAt*(hi.Z-lo.Z)
		loops := mesh.SliceLoops(m, z, sp)
		if err := debugviz.PlotCrossSection(loops, z, *plotOut); err != nil {
			log.Fatalf("plot cross-section: %v", err)
		}
		fmt.Printf("\nwrote cross-section plot at z=%.3f to %s\n", z, *plotOut)
	}
}
