// Package storage persists runs and their accounting records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/galevo/internal/evolve"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = errors.New("storage: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	payload    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	snapshot INTEGER NOT NULL,
	payload  TEXT NOT NULL,
	PRIMARY KEY (run_id, snapshot)
);`

type RunMetadata struct {
	ID        string    `json:"id"`
	Preset    string    `json:"preset"`
	Timestamp time.Time `json:"timestamp"`
	Seed      int64     `json:"seed"`
	Feedback  string    `json:"feedback"`

	Snapshots            int           `json:"snapshots"`
	Galaxies             int           `json:"galaxies"`
	GalaxyEvaluations    uint64        `json:"galaxy_evaluations"`
	StarburstEvaluations uint64        `json:"starburst_evaluations"`
	Warnings             uint64        `json:"warnings"`
	FailedGalaxies       int           `json:"failed_galaxies"`
	Duration             time.Duration `json:"duration"`

	Metrics  map[string]float64 `json:"metrics"`
	Counters map[string]float64 `json:"counters,omitempty"`
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores a run and its records in one transaction and returns the run
// id, generating one when meta.ID is empty.
func (s *Store) Save(ctx context.Context, meta RunMetadata, records []evolve.Record) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, payload) VALUES (?, ?, ?)`,
		meta.ID, meta.Timestamp.UnixMilli(), string(payload),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (run_id, snapshot, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encode record %d: %w", r.Snapshot, err)
		}
		if _, err := stmt.ExecContext(ctx, meta.ID, r.Snapshot, string(data)); err != nil {
			return "", fmt.Errorf("insert record %d: %w", r.Snapshot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return meta.ID, nil
}

// List returns every run, newest first.
func (s *Store) List(ctx context.Context) ([]RunMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var meta RunMetadata
		if err := json.Unmarshal([]byte(payload), &meta); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *Store) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var meta RunMetadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &meta, nil
}

// Records returns the accounting records of a run by ascending snapshot.
func (s *Store) Records(ctx context.Context, runID string) ([]evolve.Record, error) {
	if _, err := s.Load(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM records WHERE run_id = ? ORDER BY snapshot`, runID)
	if err != nil {
		return nil, fmt.Errorf("load records of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []evolve.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r evolve.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Log rebuilds the log of a stored run.
func (s *Store) Log(ctx context.Context, runID string) (*evolve.Log, error) {
	records, err := s.Records(ctx, runID)
	if err != nil {
		return nil, err
	}
	log := evolve.NewLog()
	for _, r := range records {
		if err := log.Append(r); err != nil {
			return nil, err
		}
	}
	return log, nil
}

// Delete removes a run and its records.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}
