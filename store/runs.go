package store

import (
	"fmt"
	"time"
)

// Run kinds.
const (
	KindCollection = "collection"
	KindSubmission = "submission"
)

// Run is one recorded collection or submission execution.
type Run struct {
	ID         int64    `json:"id"`
	TaskID     string   `json:"task_id,omitempty"`
	Kind       string   `json:"kind"`
	Company    string   `json:"company,omitempty"`
	RangeStart string   `json:"range_start"`
	RangeEnd   string   `json:"range_end"`
	Status     string   `json:"status"`
	Message    string   `json:"message,omitempty"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at,omitempty"`
	Files      []string `json:"files,omitempty"`
}

func now() string { return time.Now().Format(time.RFC3339) }

// BeginRun inserts a starting run row and returns its id.
func (d *DB) BeginRun(taskID, kind, company, rangeStart, rangeEnd string) (int64, error) {
	res, err := d.Pool.Exec(`
INSERT INTO runs (task_id, kind, company, range_start, range_end, status, started_at)
VALUES (?, ?, ?, ?, ?, 'running', ?);`,
		taskID, kind, company, rangeStart, rangeEnd, now())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun closes a run row with its terminal status.
func (d *DB) FinishRun(runID int64, status, message string) error {
	_, err := d.Pool.Exec(`
UPDATE runs SET status = ?, message = ?, finished_at = ? WHERE id = ?;`,
		status, message, now(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// AddArtifact records one produced file against a run.
func (d *DB) AddArtifact(runID int64, filename, facet string) error {
	_, err := d.Pool.Exec(`
INSERT INTO artifacts (run_id, filename, facet, created_at) VALUES (?, ?, ?, ?);`,
		runID, filename, facet, now())
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// RecentRuns lists the latest runs with their artifact filenames.
func (d *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Pool.Query(`
SELECT id, task_id, kind, company, range_start, range_end, status, message, started_at, finished_at
FROM runs ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Kind, &r.Company, &r.RangeStart, &r.RangeEnd,
			&r.Status, &r.Message, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		files, err := d.artifactFiles(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Files = files
	}
	return runs, nil
}

func (d *DB) artifactFiles(runID int64) ([]string, error) {
	rows, err := d.Pool.Query(`SELECT filename FROM artifacts WHERE run_id = ? ORDER BY id;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// LastSuccessFor returns the most recent completed run for a company, or
// sql.ErrNoRows.
func (d *DB) LastSuccessFor(company string) (Run, error) {
	var r Run
	err := d.Pool.QueryRow(`
SELECT id, task_id, kind, company, range_start, range_end, status, message, started_at, finished_at
FROM runs WHERE company = ? AND status = 'completed' ORDER BY id DESC LIMIT 1;`, company).
		Scan(&r.ID, &r.TaskID, &r.Kind, &r.Company, &r.RangeStart, &r.RangeEnd,
			&r.Status, &r.Message, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}
