// Package db persists calibration data: labeled sample segments recorded
// during guided calibration runs, and the versioned threshold sets derived
// from them. Backed by SQLite.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/synapse-data/gaze.report/internal/eeg"
)

// ErrNoThresholds is returned by LatestThresholds when no threshold set
// has been saved yet.
var ErrNoThresholds = errors.New("db: no threshold sets stored")

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the calibration database at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS calibration_sessions (
			session_id        TEXT PRIMARY KEY,
			notes             TEXT,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS calibration_samples (
			session_id        TEXT,
			segment           BIGINT,
			label             TEXT,
			idx               BIGINT,
			af3               DOUBLE,
			af4               DOUBLE,
			ppg               DOUBLE,
			FOREIGN KEY(session_id) REFERENCES calibration_sessions(session_id)
		);
		CREATE TABLE IF NOT EXISTS threshold_sets (
			threshold_id      INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id        TEXT,
			max_coeff         DOUBLE,
			auc               DOUBLE,
			amplitude         DOUBLE,
			velocity          DOUBLE,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES calibration_sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_samples_session
			ON calibration_samples(session_id, segment);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create calibration schema: %w", err)
	}

	return &DB{db}, nil
}

// CreateSession inserts a new calibration session and returns its ID.
func (db *DB) CreateSession(notes string) (string, error) {
	id := uuid.NewString()
	if _, err := db.Exec(
		`INSERT INTO calibration_sessions (session_id, notes, created_at) VALUES (?, ?, ?)`,
		id, notes, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// InsertSegment records one labeled segment as one row per sample index.
// The three slices may differ in length; missing PPG values are stored as
// NULL.
func (db *DB) InsertSegment(sessionID string, segment int, label string, af3, af4, ppg []float64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO calibration_samples (session_id, segment, label, idx, af3, af4, ppg)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	defer stmt.Close()

	n := len(af3)
	if len(af4) > n {
		n = len(af4)
	}
	for i := 0; i < n; i++ {
		var a3, a4, pg interface{}
		if i < len(af3) {
			a3 = af3[i]
		}
		if i < len(af4) {
			a4 = af4[i]
		}
		if i < len(ppg) {
			pg = ppg[i]
		}
		if _, err := stmt.Exec(sessionID, segment, label, i, a3, a4, pg); err != nil {
			return fmt.Errorf("insert segment sample %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// SegmentSamples loads one segment's channel data back, NULLs skipped.
func (db *DB) SegmentSamples(sessionID string, segment int) (af3, af4, ppg []float64, err error) {
	rows, err := db.Query(
		`SELECT af3, af4, ppg FROM calibration_samples
		 WHERE session_id = ? AND segment = ? ORDER BY idx`,
		sessionID, segment,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load segment: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a3, a4, pg sql.NullFloat64
		if err := rows.Scan(&a3, &a4, &pg); err != nil {
			return nil, nil, nil, fmt.Errorf("scan segment row: %w", err)
		}
		if a3.Valid {
			af3 = append(af3, a3.Float64)
		}
		if a4.Valid {
			af4 = append(af4, a4.Float64)
		}
		if pg.Valid {
			ppg = append(ppg, pg.Float64)
		}
	}
	return af3, af4, ppg, rows.Err()
}

// SaveThresholds appends a new threshold-set version for the session.
func (db *DB) SaveThresholds(sessionID string, ts eeg.ThresholdSet) error {
	if _, err := db.Exec(
		`INSERT INTO threshold_sets (session_id, max_coeff, auc, amplitude, velocity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, ts.MaxCoeff, ts.AUC, ts.Amplitude, ts.Velocity, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("save thresholds: %w", err)
	}
	return nil
}

// LatestThresholds returns the most recently saved threshold set, or
// ErrNoThresholds when none exist.
func (db *DB) LatestThresholds() (eeg.ThresholdSet, error) {
	var ts eeg.ThresholdSet
	err := db.QueryRow(
		`SELECT max_coeff, auc, amplitude, velocity FROM threshold_sets
		 ORDER BY threshold_id DESC LIMIT 1`,
	).Scan(&ts.MaxCoeff, &ts.AUC, &ts.Amplitude, &ts.Velocity)
	if errors.Is(err, sql.ErrNoRows) {
		return eeg.ThresholdSet{}, ErrNoThresholds
	}
	if err != nil {
		return eeg.ThresholdSet{}, fmt.Errorf("load thresholds: %w", err)
	}
	return ts, nil
}
