package debugviz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/landmarks"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/testutil"
)

func TestPlotCrossSection(t *testing.T) {
	tun := config.MustLoadDefaultConfig()
	m := testutil.Scan(testutil.HourglassPhenotype())
	sp := mesh.SliceParams{
		HalfBand: tun.GetSliceBandM(),
		Eps:      tun.GetLoopEpsM(),
		MinPts:   tun.GetLoopMinPoints(),
	}
	loops := mesh.SliceLoops(m, 0.05, sp)
	if len(loops) == 0 {
		t.Fatal("expected loops at waist height")
	}

	out := filepath.Join(t.TempDir(), "section.png")
	if err := PlotCrossSection(loops, 0.05, out); err != nil {
		t.Fatalf("PlotCrossSection: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("empty plot file")
	}
}

func TestPlotProfile(t *testing.T) {
	tun := config.MustLoadDefaultConfig()
	m := testutil.Scan(testutil.HourglassPhenotype())
	ext := landmarks.NewExtractor(tun)
	res, err := ext.Extract(m)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	out := filepath.Join(t.TempDir(), "profile.png")
	sp := mesh.SliceParams{
		HalfBand: tun.GetSliceBandM(),
		Eps:      tun.GetLoopEpsM(),
		MinPts:   tun.GetLoopMinPoints(),
	}
	if err := PlotProfile(m, res.Levels, sp, out); err != nil {
		t.Fatalf("PlotProfile: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("stat output: %v", err)
	}
}
