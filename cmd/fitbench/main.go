// Command fitbench runs the fitting pipeline over every scan in a
// directory and reports per-scan results and aggregate timing. The last
// column flags runs whose confidence fell below the threshold, which is
// how fixture regressions show up after tuning changes.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/fit"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/security"
)

var (
	scanDir    = flag.String("dir", "", "directory of scan meshes (.obj, .stl)")
	height     = flag.Float64("height", 165, "declared height in cm, applied to every scan")
	gender     = flag.String("gender", "female", "declared gender, applied to every scan")
	configPath = flag.String("config", "", "tuning config JSON (built-in defaults when empty)")
	csvOut     = flag.String("csv", "", "write per-scan results to this CSV file")
	minConf    = flag.Float64("min-confidence", 0.5, "flag runs below this confidence")
	timeout    = flag.Duration("timeout", 2*time.Minute, "per-scan fitting timeout")
)

type benchRow struct {
	file       string
	durationMS float64
	bust       float64
	waist      float64
	hips       float64
	bodyType   string
	confidence float64
	flags      string
	err        error
}

func main() {
	flag.Parse()

	if *scanDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	g, err := anny.ParseGender(*gender)
	if err != nil {
		log.Fatalf("bad -gender: %v", err)
	}
	tun := config.EmptyTuning()
	if *configPath != "" {
		tun, err = config.LoadTuning(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	entries, err := os.ReadDir(*scanDir)
	if err != nil {
		log.Fatalf("read scan directory: %v", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".obj", ".stl":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		log.Fatalf("no .obj or .stl files in %s", *scanDir)
	}

	pipeline := fit.NewPipeline(tun)
	rows := make([]benchRow, 0, len(files))

	for _, name := range files {
		path := filepath.Join(*scanDir, name)
		if err := security.ValidatePathWithinDirectory(path, *scanDir); err != nil {
			log.Printf("[Bench] skipping %s: %v", name, err)
			continue
		}
		rows = append(rows, runOne(pipeline, path, g))
	}

	printSummary(rows)

	if *csvOut != "" {
		if err := writeCSV(*csvOut, rows); err != nil {
			log.Fatalf("write csv: %v", err)
		}
		log.Printf("[Bench] wrote %s", *csvOut)
	}
}

func runOne(pipeline *fit.Pipeline, path string, g anny.Gender) benchRow {
	row := benchRow{file: filepath.Base(path)}

	scan, err := mesh.Load(path)
	if err != nil {
		row.err = err
		return row
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	res, err := pipeline.Run(ctx, scan, fit.Input{HeightCM: *height, Gender: g})
	row.durationMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		row.err = err
		return row
	}

	row.bust = res.Measurements.BustCM
	row.waist = res.Measurements.WaistCM
	row.hips = res.Measurements.HipsCM
	row.bodyType = string(res.Classification.Type)
	row.confidence = res.Confidence
	fs := make([]string, len(res.Flags))
	for i, f := range res.Flags {
		fs[i] = string(f)
	}
	row.flags = strings.Join(fs, "|")
	return row
}

func printSummary(rows []benchRow) {
	var ok, failed, low int
	var totalMS float64

	fmt.Printf("%-28s %9s %7s %7s %7s %-14s %6s  %s\n",
		"file", "ms", "bust", "waist", "hips", "type", "conf", "notes")
	for _, r := range rows {
		if r.err != nil {
			failed++
			fmt.Printf("%-28s %9.1f %7s %7s %7s %-14s %6s  ERROR: %v\n",
				r.file, r.durationMS, "-", "-", "-", "-", "-", r.err)
			continue
		}
		ok++
		totalMS += r.durationMS
		note := r.flags
		if r.confidence < *minConf {
			low++
			note = strings.TrimSpace("LOW-CONFIDENCE " + note)
		}
		fmt.Printf("%-28s %9.1f %7.1f %7.1f %7.1f %-14s %6.2f  %s\n",
			r.file, r.durationMS, r.bust, r.waist, r.hips, r.bodyType, r.confidence, note)
	}

	fmt.Printf("\n%d scans: %d ok, %d failed, %d below confidence %.2f\n",
		len(rows), ok, failed, low, *minConf)
	if ok > 0 {
		fmt.Printf("mean fit time: %.1f ms\n", totalMS/float64(ok))
	}
}

func writeCSV(path string, rows []benchRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"file", "duration_ms", "bust_cm", "waist_cm", "hips_cm", "body_type", "confidence", "flags", "error"}); err != nil {
		return err
	}
	for _, r := range rows {
		errStr := ""
		if r.err != nil {
			errStr = r.err.Error()
		}
		rec := []string{
			r.file,
			fmt.Sprintf("%.1f", r.durationMS),
			fmt.Sprintf("%.1f", r.bust),
			fmt.Sprintf("%.1f", r.waist),
			fmt.Sprintf("%.1f", r.hips),
			r.bodyType,
			fmt.Sprintf("%.3f", r.confidence),
			r.flags,
			errStr,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}
