// Package store persists simulation runs and their frame histories in
// SQLite so an external renderer can replay them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// Open opens (creating if needed) the SQLite database at dbPath and
// ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return &Store{db: db}, nil
}

func createSchemas(ctx context.Context, db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			total_steps INTEGER NOT NULL,
			initial_population INTEGER NOT NULL,
			config_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			population INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);`,
		`CREATE TABLE IF NOT EXISTS frame_cells (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			cell_type TEXT NOT NULL,
			PRIMARY KEY (run_id, step, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frame_cells_type ON frame_cells(run_id, cell_type);`,
	}

	for _, query := range schemas {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
