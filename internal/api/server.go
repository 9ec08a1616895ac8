// Package api serves the fitting pipeline over HTTP: scan upload and fit,
// stored run retrieval, HTML measurement reports, and the tuning
// parameters endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atelier-data/bodyfit/internal/anny"
	"github.com/atelier-data/bodyfit/internal/config"
	"github.com/atelier-data/bodyfit/internal/fit"
	"github.com/atelier-data/bodyfit/internal/httputil"
	"github.com/atelier-data/bodyfit/internal/mesh"
	"github.com/atelier-data/bodyfit/internal/store"
	"github.com/atelier-data/bodyfit/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxUploadBytes bounds the multipart scan upload. Reconstruction meshes
// run a few MB; anything bigger is a client error.
const maxUploadBytes = 64 << 20

type Server struct {
	pipeline *fit.Pipeline
	store    *store.Store
	tun      *config.Tuning
}

func NewServer(pipeline *fit.Pipeline, st *store.Store, tun *config.Tuning) *Server {
	return &Server{
		pipeline: pipeline,
		store:    st,
		tun:      tun,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. The caller mounts this under /api.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/fits", s.handleFits)
	mux.HandleFunc("/fits/", s.handleFitByID)
	mux.HandleFunc("/params", s.handleParams)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleParams returns the effective tuning configuration.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tun)
}

// handleFits routes the collection endpoints: POST runs a fit on an
// uploaded scan, GET lists stored runs.
func (s *Server) handleFits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createFit(w, r)
	case http.MethodGet:
		s.listFits(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// createFit runs the pipeline on a multipart upload: a "mesh" file part
// (.obj or .stl) plus "height_cm" and "gender" fields.
func (s *Server) createFit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	heightCM, err := strconv.ParseFloat(r.FormValue("height_cm"), 64)
	if err != nil || heightCM <= 0 {
		httputil.BadRequest(w, "height_cm must be a positive number")
		return
	}
	gender, err := anny.ParseGender(r.FormValue("gender"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	file, header, err := r.FormFile("mesh")
	if err != nil {
		httputil.BadRequest(w, "mesh file part is required")
		return
	}
	defer file.Close()

	var scan *mesh.Mesh
	switch ext := strings.ToLower(filepath.Ext(header.Filename)); ext {
	case ".obj":
		scan, err = mesh.DecodeOBJ(file)
	case ".stl":
		scan, err = mesh.DecodeSTL(file)
	default:
		httputil.BadRequest(w, fmt.Sprintf("unsupported mesh format %q, want .obj or .stl", ext))
		return
	}
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to decode mesh: %v", err))
		return
	}

	start := time.Now()
	res, err := s.pipeline.Run(r.Context(), scan, fit.Input{HeightCM: heightCM, Gender: gender})
	if err != nil {
		if errors.Is(err, fit.ErrOrientationAmbiguous) {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}

	id, err := s.store.SaveRun(heightCM, string(gender), res, time.Since(start))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to save run: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"id":     id,
		"result": res,
	}); err != nil {
		log.Printf("failed to encode fit response: %v", err)
	}
}

func (s *Server) listFits(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// handleFitByID routes /fits/{id} and /fits/{id}/report.
func (s *Server) handleFitByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/fits/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		httputil.NotFound(w, "missing run id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.getFit(w, id)
	case sub == "" && r.Method == http.MethodDelete:
		s.deleteFit(w, id)
	case sub == "report" && r.Method == http.MethodGet:
		s.reportFit(w, id)
	case sub == "" || sub == "report":
		httputil.MethodNotAllowed(w)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown resource %q", sub))
	}
}

func (s *Server) getFit(w http.ResponseWriter, id string) {
	run, err := s.store.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) deleteFit(w http.ResponseWriter, id string) {
	if err := s.store.DeleteRun(id); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"deleted": id})
}
