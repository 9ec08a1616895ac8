// Package store persists fitting runs and calibration sets in SQLite.
// Every completed pipeline run is recorded with its inputs, measurements
// and diagnostics so results can be re-served, re-reported, and compared
// against ground-truth tapes when calibration data arrives.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/atelier-data/bodyfit/internal/fit"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("fit run not found")

type Store struct {
	*sql.DB
	path string
}

// Open opens (or creates) the store at path and ensures the baseline
// schema exists. Schema upgrades beyond the baseline are applied with
// MigrateUp.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fit_runs (
			run_id          TEXT PRIMARY KEY,
			created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			height_cm       DOUBLE,
			gender          TEXT,
			bust_cm         DOUBLE,
			waist_cm        DOUBLE,
			hips_cm         DOUBLE,
			shoulder_cm     DOUBLE,
			body_type       TEXT,
			confidence      DOUBLE,
			residual_mm     DOUBLE,
			flags           TEXT,
			result_json     TEXT,
			duration_ms     BIGINT
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("baseline schema: %w", err)
	}

	return &Store{DB: db, path: path}, nil
}

// Run is one persisted fitting run. Result carries the full pipeline
// output; the scalar columns duplicate the headline numbers so listings
// and reports do not need to decode JSON.
type Run struct {
	ID         string      `json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	HeightCM   float64     `json:"height_cm"`
	Gender     string      `json:"gender"`
	BustCM     float64     `json:"bust_cm"`
	WaistCM    float64     `json:"waist_cm"`
	HipsCM     float64     `json:"hips_cm"`
	ShoulderCM float64     `json:"shoulder_cm"`
	BodyType   string      `json:"body_type"`
	Confidence float64     `json:"confidence"`
	ResidualMM float64     `json:"residual_mm"`
	Flags      []fit.Flag  `json:"flags,omitempty"`
	Result     *fit.Result `json:"result,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// SaveRun records a completed pipeline run and returns its new id.
func (s *Store) SaveRun(heightCM float64, gender string, res *fit.Result, duration time.Duration) (string, error) {
	id := uuid.New().String()

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	flagsJSON, err := json.Marshal(res.Flags)
	if err != nil {
		return "", fmt.Errorf("encode flags: %w", err)
	}

	_, err = s.Exec(
		`INSERT INTO fit_runs (
			run_id, height_cm, gender, bust_cm, waist_cm, hips_cm,
			shoulder_cm, body_type, confidence, residual_mm, flags,
			result_json, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, heightCM, gender,
		res.Measurements.BustCM, res.Measurements.WaistCM, res.Measurements.HipsCM,
		res.Measurements.ShoulderWidthCM, string(res.Classification.Type),
		res.Confidence, res.ResidualMM, string(flagsJSON),
		string(resultJSON), duration.Milliseconds(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetRun loads one run, including its full decoded result.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.QueryRow(
		`SELECT run_id, created_at, height_cm, gender, bust_cm, waist_cm,
			hips_cm, shoulder_cm, body_type, confidence, residual_mm,
			flags, result_json, duration_ms
		FROM fit_runs WHERE run_id = ?`, id)

	var r Run
	var flagsJSON, resultJSON string
	err := row.Scan(&r.ID, &r.CreatedAt, &r.HeightCM, &r.Gender,
		&r.BustCM, &r.WaistCM, &r.HipsCM, &r.ShoulderCM, &r.BodyType,
		&r.Confidence, &r.ResidualMM, &flagsJSON, &resultJSON, &r.DurationMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if flagsJSON != "" {
		if err := json.Unmarshal([]byte(flagsJSON), &r.Flags); err != nil {
			return nil, fmt.Errorf("decode flags for %s: %w", id, err)
		}
	}
	if resultJSON != "" {
		r.Result = &fit.Result{}
		if err := json.Unmarshal([]byte(resultJSON), r.Result); err != nil {
			return nil, fmt.Errorf("decode result for %s: %w", id, err)
		}
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first, without the full
// result payload.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.Query(
		`SELECT run_id, created_at, height_cm, gender, bust_cm, waist_cm,
			hips_cm, shoulder_cm, body_type, confidence, residual_mm,
			flags, duration_ms
		FROM fit_runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var flagsJSON string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.HeightCM, &r.Gender,
			&r.BustCM, &r.WaistCM, &r.HipsCM, &r.ShoulderCM, &r.BodyType,
			&r.Confidence, &r.ResidualMM, &flagsJSON, &r.DurationMS); err != nil {
			return nil, err
		}
		if flagsJSON != "" {
			if err := json.Unmarshal([]byte(flagsJSON), &r.Flags); err != nil {
				return nil, fmt.Errorf("decode flags for %s: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes one run. Deleting a missing run is not an error.
func (s *Store) DeleteRun(id string) error {
	_, err := s.Exec(`DELETE FROM fit_runs WHERE run_id = ?`, id)
	return err
}
