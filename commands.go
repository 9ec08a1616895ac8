package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/api"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/fit"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/store"
	"github.com/atelier-data/bodyfit/internal/version"
)

// command is one CLI subcommand.
type command struct {
	name string
	help string
	run  func(args []string) error
}

// commands is the subcommand registry, in help display order.
var commands = []command{
	{"serve", "run the fitting API server", runServe},
	{"fit", "fit a single scan file and print the result as JSON", runFit},
	{"migrate", "manage run-store schema migrations (up, down, status, force N)", runMigrate},
	{"report", "render the HTML measurement report for a stored run", runReport},
	{"version", "print the build version", runVersion},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command> [flags]\n\ncommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.help)
	}
}

// loadTuning reads the tuning file at path, or returns the built-in
// defaults when path is empty.
func loadTuning(path string) (*config.Tuning, error) {
	if path == "" {
		return config.EmptyTuning(), nil
	}
	return config.LoadTuning(path)
}

func runFit(args []string) error {
	fs := flag.NewFlagSet("fit", flag.ExitOnError)
	meshPath := fs.String("mesh", "", "scan mesh file (.obj or .stl)")
	height := fs.Float64("height", 0, "declared height in cm")
	gender := fs.String("gender", "", "declared gender (female, male, or empty for unknown)")
	configPath := fs.String("config", "", "tuning config JSON (built-in defaults when empty)")
	dbPath := fs.String("db", "", "also record the run in this store")
	fs.Parse(args)

	if *meshPath == "" {
		return fmt.Errorf("fit: -mesh is required")
	}
	if *height <= 0 {
		return fmt.Errorf("fit: -height must be positive")
	}
	g, err := anny.ParseGender(*gender)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	tun, err := loadTuning(*configPath)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	scan, err := mesh.Load(*meshPath)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	start := time.Now()
	res, err := fit.NewPipeline(tun).Run(context.Background(), scan, fit.Input{
		HeightCM: *height,
		Gender:   g,
	})
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			return fmt.Errorf("fit: open store: %w", err)
		}
		defer st.Close()
		id, err := st.SaveRun(*height, string(g), res, time.Since(start))
		if err != nil {
			return fmt.Errorf("fit: save run: %w", err)
		}
		log.Printf("[Fit] saved run %s", id)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "run store path")
	dir := fs.String("migrations", "migrations", "migrations directory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("migrate: want a verb: up, down, status, or force N")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer st.Close()

	switch verb := fs.Arg(0); verb {
	case "up":
		if err := st.MigrateUp(*dir); err != nil {
			return err
		}
		log.Printf("[Migrate] schema up to date")
	case "down":
		if err := st.MigrateDown(*dir); err != nil {
			return err
		}
		log.Printf("[Migrate] rolled back one version")
	case "status":
		v, dirty, err := st.MigrateVersion(*dir)
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%v\n", v, dirty)
	case "force":
		if fs.NArg() < 2 {
			return fmt.Errorf("migrate force: want a version number")
		}
		v, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("migrate force: bad version %q", fs.Arg(1))
		}
		if err := st.MigrateForce(*dir, v); err != nil {
			return err
		}
		log.Printf("[Migrate] forced to version %d", v)
	default:
		return fmt.Errorf("migrate: unknown verb %q", verb)
	}
	return nil
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "run store path")
	id := fs.String("id", "", "run id")
	out := fs.String("out", "", "output HTML file (stdout when empty)")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("report: -id is required")
	}
	st, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer st.Close()

	run, err := st.GetRun(*id)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	doc, err := api.RenderReport(run)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if *out == "" {
		_, err = os.Stdout.Write(doc)
		return err
	}
	return os.WriteFile(*out, doc, 0644)
}

func runVersion(args []string) error {
	fmt.Printf("bodyfit %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	return nil
}
