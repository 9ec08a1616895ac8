package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCalibrationNotFound is returned when a named calibration set does
// not exist.
var ErrCalibrationNotFound = errors.New("calibration set not found")

// Calibration is one named post-alignment correction set, collected from
// ground-truth tape sessions at a deployment site. The calibrations table
// arrives with migration 1; Open's baseline schema does not create it.
type Calibration struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	RotXDeg   float64   `json:"rot_x_deg"`
	RotZDeg   float64   `json:"rot_z_deg"`
	OffsetX   float64   `json:"offset_x"`
	OffsetY   float64   `json:"offset_y"`
	OffsetZ   float64   `json:"offset_z"`
	Notes     string    `json:"notes,omitempty"`
}

// SaveCalibration inserts or replaces a named calibration set.
func (s *Store) SaveCalibration(c Calibration) error {
	_, err := s.Exec(
		`INSERT INTO calibrations (name, rot_x_deg, rot_z_deg, offset_x, offset_y, offset_z, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			rot_x_deg = excluded.rot_x_deg,
			rot_z_deg = excluded.rot_z_deg,
			offset_x = excluded.offset_x,
			offset_y = excluded.offset_y,
			offset_z = excluded.offset_z,
			notes = excluded.notes`,
		c.Name, c.RotXDeg, c.RotZDeg, c.OffsetX, c.OffsetY, c.OffsetZ, c.Notes)
	return err
}

// GetCalibration loads a named calibration set.
func (s *Store) GetCalibration(name string) (*Calibration, error) {
	row := s.QueryRow(
		`SELECT name, created_at, rot_x_deg, rot_z_deg, offset_x, offset_y, offset_z, notes
		FROM calibrations WHERE name = ?`, name)
	var c Calibration
	err := row.Scan(&c.Name, &c.CreatedAt, &c.RotXDeg, &c.RotZDeg,
		&c.OffsetX, &c.OffsetY, &c.OffsetZ, &c.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCalibrationNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCalibrations returns every stored calibration set ordered by name.
func (s *Store) ListCalibrations() ([]Calibration, error) {
	rows, err := s.Query(
		`SELECT name, created_at, rot_x_deg, rot_z_deg, offset_x, offset_y, offset_z, notes
		FROM calibrations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Calibration
	for rows.Next() {
		var c Calibration
		if err := rows.Scan(&c.Name, &c.CreatedAt, &c.RotXDeg, &c.RotZDeg,
			&c.OffsetX, &c.OffsetY, &c.OffsetZ, &c.Notes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
