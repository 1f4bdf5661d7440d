// Package storage keeps finished coupled runs on disk.
//
// Every run gets a directory under the base directory holding its resolved
// configuration (config.yaml) and the per coarse step history
// (history.csv). A SQLite index (runs.db) lists the runs with their
// summary metrics.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/san-kum/cosim/internal/analysis"
	"github.com/san-kum/cosim/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const (
	IndexFile   = "runs.db"
	ConfigFile  = "config.yaml"
	HistoryFile = "history.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type RunMetadata struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Timestamp           time.Time          `json:"timestamp"`
	TimestepRatio       int                `json:"timestep_ratio"`
	Steps               int                `json:"steps"`
	StartTime           float64            `json:"start_time"`
	EndTime             float64            `json:"end_time"`
	OriginTimeStep      float64            `json:"origin_time_step"`
	DestinationTimeStep float64            `json:"destination_time_step"`
	EquilibriumVariable string             `json:"equilibrium_variable"`
	CouplingDisabled    bool               `json:"coupling_disabled"`
	Elapsed             time.Duration      `json:"elapsed"`
	Metrics             map[string]float64 `json:"metrics"`
}

type Store struct {
	baseDir string
	db      *sql.DB
}

// Open creates the base directory and the run index if needed.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filepath.Join(baseDir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open run index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to run index: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{baseDir: baseDir, db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) RunDir(id string) string { return filepath.Join(s.baseDir, id) }

func newRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Save writes the run files and indexes the run. It returns the run id.
func (s *Store) Save(ctx context.Context, cfg *config.Config, result *analysis.Result) (string, error) {
	id := newRunID()
	dir := s.RunDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(dir, ConfigFile), cfg); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	if err := writeHistory(filepath.Join(dir, HistoryFile), result); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	sv := cfg.SolverSettings
	meta := RunMetadata{
		ID:                  id,
		Name:                result.Name,
		Timestamp:           time.Now().UTC(),
		TimestepRatio:       result.Ratio,
		Steps:               result.Steps,
		StartTime:           cfg.ProblemData.StartTime,
		EndTime:             cfg.ProblemData.EndTime,
		OriginTimeStep:      sv.Solvers.Origin.TimeStep,
		DestinationTimeStep: sv.Solvers.Destination.TimeStep,
		EquilibriumVariable: sv.EquilibriumVariable,
		CouplingDisabled:    sv.IsDisableCoupling,
		Elapsed:             result.Duration,
		Metrics:             result.Metrics,
	}
	if err := s.insert(ctx, meta); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return id, nil
}

func (s *Store) insert(ctx context.Context, m RunMetadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, created_at, timestep_ratio, steps, start_time, end_time,
			origin_time_step, destination_time_step, equilibrium_variable, coupling_disabled, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Timestamp.Format(time.RFC3339Nano), m.TimestepRatio, m.Steps, m.StartTime, m.EndTime,
		m.OriginTimeStep, m.DestinationTimeStep, m.EquilibriumVariable, m.CouplingDisabled, int64(m.Elapsed))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", m.ID, err)
	}

	for name, v := range m.Metrics {
		// NaN has no SQLite representation
		var value sql.NullFloat64
		if !math.IsNaN(v) {
			value = sql.NullFloat64{Float64: v, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, name, value) VALUES (?, ?, ?)`, m.ID, name, value); err != nil {
			return fmt.Errorf("insert metric %s: %w", name, err)
		}
	}
	return tx.Commit()
}

const selectRuns = `
	SELECT id, name, created_at, timestep_ratio, steps, start_time, end_time,
		origin_time_step, destination_time_step, equilibrium_variable, coupling_disabled, elapsed_ns
	FROM runs`

// List returns all runs, newest first.
func (s *Store) List(ctx context.Context) ([]RunMetadata, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Metrics, err = s.metrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Load accepts a full run id or a unique prefix or suffix of one.
func (s *Store) Load(ctx context.Context, id string) (*RunMetadata, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` WHERE id LIKE ? || '%' OR id LIKE '%' || ? ORDER BY id = ? DESC, id LIMIT 2`, id, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []RunMetadata
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(found) > 1 && found[0].ID != id:
		return nil, fmt.Errorf("storage: run id %s is ambiguous", id)
	}

	m := found[0]
	if m.Metrics, err = s.metrics(ctx, m.ID); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadConfig returns the resolved configuration the run was made with.
func (s *Store) LoadConfig(id string) (*config.Config, error) {
	return config.Load(filepath.Join(s.RunDir(id), ConfigFile))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunMetadata, error) {
	var (
		m       RunMetadata
		created string
		elapsed int64
	)
	err := row.Scan(&m.ID, &m.Name, &created, &m.TimestepRatio, &m.Steps, &m.StartTime, &m.EndTime,
		&m.OriginTimeStep, &m.DestinationTimeStep, &m.EquilibriumVariable, &m.CouplingDisabled, &elapsed)
	if err != nil {
		return m, err
	}
	m.Timestamp, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return m, fmt.Errorf("run %s: bad timestamp %q: %w", m.ID, created, err)
	}
	m.Elapsed = time.Duration(elapsed)
	return m, nil
}

func (s *Store) metrics(ctx context.Context, id string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM run_metrics WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name  string
			value sql.NullFloat64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		if value.Valid {
			out[name] = value.Float64
		} else {
			out[name] = math.NaN()
		}
	}
	return out, rows.Err()
}

// Delete drops the run from the index and removes its directory.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return os.RemoveAll(s.RunDir(id))
}

// MetricNames is the sorted union of metric names over runs.
func MetricNames(runs []RunMetadata) []string {
	seen := map[string]bool{}
	for _, r := range runs {
		for name := range r.Metrics {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
