package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning        = "running"
	RunSuccess        = "success"
	RunPartialFailure = "partial_failure"
	RunNoUpdate       = "no_update"
	RunFailed         = "failed"
)

// Run is one row of the runs table.
type Run struct {
	RunID            int64
	StartedAt        time.Time
	FinishedAt       *time.Time
	RootURL          string
	SourceURL        string
	PageTitle        string
	Status           string
	TablesExtracted  int
	RecordsExtracted int
	FilesWritten     int
	DiagnosticCount  int
	ErrorMessage     string
}

// RunResult is what FinishRun records about a completed run.
type RunResult struct {
	Status           string
	SourceURL        string
	PageTitle        string
	TablesExtracted  int
	RecordsExtracted int
	FilesWritten     int
	DiagnosticCount  int
	Err              error
}

// RunTable is one row of the run_tables table.
type RunTable struct {
	Position     int
	Title        string
	SectionLabel string
	RecordCount  int
	ColumnCount  int
	FileName     string
	ContentHash  string
}

// StartRun inserts a run in the running state and returns its run_id.
func (db *DB) StartRun(rootURL string) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (started_at, root_url, status)
		VALUES (?, ?, ?)
	`, time.Now().UTC(), rootURL, RunRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// FinishRun stores the outcome of a run.
func (db *DB) FinishRun(runID int64, r RunResult) error {
	var errMsg sql.NullString
	if r.Err != nil {
		errMsg = sql.NullString{String: r.Err.Error(), Valid: true}
	}

	res, err := db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, source_url = ?, page_title = ?,
		    tables_extracted = ?, records_extracted = ?, files_written = ?,
		    diagnostic_count = ?, error_message = ?
		WHERE run_id = ?
	`, time.Now().UTC(), r.Status, r.SourceURL, r.PageTitle,
		r.TablesExtracted, r.RecordsExtracted, r.FilesWritten,
		r.DiagnosticCount, errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

// InsertRunTable records a table written by runID.
func (db *DB) InsertRunTable(runID int64, t RunTable) error {
	_, err := db.Exec(`
		INSERT INTO run_tables (run_id, position, title, section_label, record_count, column_count, file_name, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, t.Position, t.Title, t.SectionLabel, t.RecordCount, t.ColumnCount, t.FileName, t.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to insert run table: %w", err)
	}
	return nil
}

const runColumns = `run_id, started_at, finished_at, root_url, source_url, page_title, status,
	tables_extracted, records_extracted, files_written, diagnostic_count, error_message`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r          Run
		finishedAt sql.NullTime
		sourceURL  sql.NullString
		pageTitle  sql.NullString
		errMsg     sql.NullString
	)
	err := row.Scan(&r.RunID, &r.StartedAt, &finishedAt, &r.RootURL, &sourceURL, &pageTitle, &r.Status,
		&r.TablesExtracted, &r.RecordsExtracted, &r.FilesWritten, &r.DiagnosticCount, &errMsg)
	if err != nil {
		return Run{}, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	r.SourceURL = sourceURL.String
	r.PageTitle = pageTitle.String
	r.ErrorMessage = errMsg.String
	return r, nil
}

// GetRun returns a single run.
func (db *DB) GetRun(runID int64) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY run_id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunTables returns the tables of a run in position order.
func (db *DB) GetRunTables(runID int64) ([]RunTable, error) {
	rows, err := db.Query(`
		SELECT position, title, section_label, record_count, column_count, file_name, COALESCE(content_hash, '')
		FROM run_tables
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run tables: %w", err)
	}
	defer rows.Close()

	var tables []RunTable
	for rows.Next() {
		var t RunTable
		if err := rows.Scan(&t.Position, &t.Title, &t.SectionLabel, &t.RecordCount, &t.ColumnCount, &t.FileName, &t.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan run table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// LastSourceURL returns the source URL of the latest run that extracted one.
func (db *DB) LastSourceURL() (string, error) {
	var u string
	err := db.QueryRow(`
		SELECT source_url FROM runs
		WHERE source_url IS NOT NULL AND source_url != ''
		ORDER BY run_id DESC LIMIT 1
	`).Scan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last source URL: %w", err)
	}
	return u, nil
}
