// Package store keeps the run history in a local sqlite database: one row
// per collection or submission run plus the artifacts each run produced.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	Pool *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite wants a single writer
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	if err := migrate(pool); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL,
  company TEXT NOT NULL DEFAULT '',
  range_start TEXT NOT NULL,
  range_end TEXT NOT NULL,
  status TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL DEFAULT ''
);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS artifacts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id INTEGER NOT NULL REFERENCES runs(id),
  filename TEXT NOT NULL,
  facet TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_company ON runs(company);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}
