package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded for each deletion target
const (
	ActionDelete  = "DELETE"  // file removed
	ActionMissing = "MISSING" // already absent, not a failure
	ActionError   = "ERROR"   // removal failed
	ActionBlocked = "BLOCKED" // rejected by the safety validator, counted as failed
)

// DeletionDB manages the SQLite database for run and deletion history
type DeletionDB struct {
	db *sql.DB
}

// RunRecord is one invocation of the cleanup runner
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Mode         string
	State        string
	BaseDir      string
	ManifestPath string
	Planned      int
	Deleted      int
	Failed       int
	Missing      int
}

// DeletionRecord represents a single deletion attempt
type DeletionRecord struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Action       string
	Category     string
	FileName     string
	Path         string
	ErrorMessage string
}

// NewDeletionDB creates a new database connection and initializes schema
func NewDeletionDB(dbPath string) (*DeletionDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// file: prefix with _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Executing a query instead of Ping() makes sure the file gets created
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	ddb := &DeletionDB{db: db}
	if err = ddb.initSchema(); err != nil {
		return nil, err
	}

	return ddb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *DeletionDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		mode TEXT NOT NULL,
		state TEXT NOT NULL,
		base_dir TEXT NOT NULL,
		manifest_path TEXT NOT NULL,
		planned INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		missing INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		category TEXT,
		file_name TEXT NOT NULL,
		path TEXT,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_deletions_run_id ON deletions(run_id);
	CREATE INDEX IF NOT EXISTS idx_deletions_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_deletions_action ON deletions(action);
	CREATE INDEX IF NOT EXISTS idx_deletions_category ON deletions(category);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// StartRun inserts the run row before any deletion is recorded
func (d *DeletionDB) StartRun(ctx context.Context, run *RunRecord) error {
	_, err := d.db.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, mode, state, base_dir, manifest_path, planned)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Mode, run.State, run.BaseDir, run.ManifestPath, run.Planned)
	return err
}

// FinishRun stores the final state and counters of a run
func (d *DeletionDB) FinishRun(ctx context.Context, run *RunRecord) error {
	res, err := d.db.ExecContext(ctx, `
	UPDATE runs
	SET finished_at = ?, state = ?, deleted = ?, failed = ?, missing = ?
	WHERE id = ?
	`, run.FinishedAt, run.State, run.Deleted, run.Failed, run.Missing, run.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// RecordDeletion inserts a deletion attempt into the database
func (d *DeletionDB) RecordDeletion(ctx context.Context, rec DeletionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := d.db.ExecContext(ctx, `
	INSERT INTO deletions (run_id, timestamp, action, category, file_name, path, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Timestamp, rec.Action, rec.Category, rec.FileName, rec.Path, rec.ErrorMessage)
	return err
}

// Close closes the database connection
func (d *DeletionDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database
func (d *DeletionDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}
