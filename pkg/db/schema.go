package db

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

-- Runs: one row per pipeline invocation
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    root_url TEXT NOT NULL,
    source_url TEXT,
    page_title TEXT,
    status TEXT NOT NULL,          -- running, success, partial_failure, no_update, failed
    tables_extracted INTEGER DEFAULT 0,
    records_extracted INTEGER DEFAULT 0,
    files_written INTEGER DEFAULT 0,
    diagnostic_count INTEGER DEFAULT 0,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source_url);

-- Run tables: every table written by a run
CREATE TABLE IF NOT EXISTS run_tables (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    title TEXT NOT NULL,
    section_label TEXT NOT NULL,
    record_count INTEGER NOT NULL,
    column_count INTEGER NOT NULL,
    file_name TEXT NOT NULL,
    content_hash TEXT,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
    UNIQUE(run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_run_tables_run ON run_tables(run_id);
CREATE INDEX IF NOT EXISTS idx_run_tables_hash ON run_tables(content_hash);
`
