package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"labels-obstech/internal/models"
)

// DB wraps the history database connection
type DB struct {
	conn *sql.DB
}

// LabelFilter narrows ListLabels results. Zero values match everything.
type LabelFilter struct {
	Hardware string
	HWID     string
	Limit    int
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps pragmas applied to every statement
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.applyPragmas(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the database tables if they don't exist
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		hardware TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS labels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		hardware TEXT NOT NULL,
		hwid TEXT NOT NULL,
		path TEXT NOT NULL,
		generated_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_labels_hwid ON labels(hardware, hwid);
	CREATE INDEX IF NOT EXISTS idx_labels_run_id ON labels(run_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// StartRun registers a new run and returns its ID
func (db *DB) StartRun(ctx context.Context, source, hardware string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO runs (id, source, hardware, started_at) VALUES (?, ?, ?, ?)",
		id, source, hardware, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordLabel stores a generated label archive. GeneratedAt defaults to now.
func (db *DB) RecordLabel(ctx context.Context, record models.LabelRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("failed to record label %s: run id is required", record.HWID)
	}
	generatedAt := record.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO labels (run_id, hardware, hwid, path, generated_at) VALUES (?, ?, ?, ?, ?)",
		record.RunID, record.Hardware, record.HWID, record.Path, generatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record label %s: %w", record.HWID, err)
	}
	return nil
}

// GetRun returns a run by its ID
func (db *DB) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	var startedAt int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, source, hardware, started_at FROM runs WHERE id = ?",
		id,
	).Scan(&run.ID, &run.Source, &run.Hardware, &startedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.StartedAt = time.Unix(0, startedAt)
	return &run, nil
}

// ListLabels returns recorded labels, newest first
func (db *DB) ListLabels(ctx context.Context, filter LabelFilter) ([]models.LabelRecord, error) {
	query := "SELECT id, run_id, hardware, hwid, path, generated_at FROM labels"

	var conds []string
	var args []interface{}
	if filter.Hardware != "" {
		conds = append(conds, "hardware = ?")
		args = append(args, filter.Hardware)
	}
	if filter.HWID != "" {
		conds = append(conds, "hwid = ?")
		args = append(args, filter.HWID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY generated_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var records []models.LabelRecord
	for rows.Next() {
		var r models.LabelRecord
		var generatedAt int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Hardware, &r.HWID, &r.Path, &generatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		r.GeneratedAt = time.Unix(0, generatedAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels: %w", err)
	}

	return records, nil
}
