package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/atelier-data/bodyfit/internal/api"
	"github.com/atelier-data/bodyfit/internal/fit"
	"github.com/atelier-data/bodyfit/internal/store"
)

const defaultDBFile = "bodyfit.db"

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	name := flag.Arg(0)
	for _, c := range commands {
		if c.name == name {
			if err := c.run(flag.Args()[1:]); err != nil {
				log.Fatalf("%s: %v", name, err)
			}
			return
		}
	}
	log.Printf("unknown command %q", name)
	usage()
	os.Exit(2)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", ":8080", "listen address")
	dbPath := fs.String("db", defaultDBFile, "run store path")
	configPath := fs.String("config", "", "tuning config JSON (built-in defaults when empty)")
	migrationsDir := fs.String("migrations", "migrations", "migrations directory, applied at startup")
	fs.Parse(args)

	tun, err := loadTuning(*configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, statErr := os.Stat(*migrationsDir); statErr == nil {
		if err := st.MigrateUp(*migrationsDir); err != nil {
			return err
		}
	} else {
		log.Printf("[Serve] no migrations directory at %s, running on baseline schema", *migrationsDir)
	}

	pipeline := fit.NewPipeline(tun)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// admin debugging routes (accessible only in dev mode or over Tailscale)
		st.AttachAdminRoutes(mux)

		apiMux := api.NewServer(pipeline, st, tun).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("[Serve] listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return nil
}
