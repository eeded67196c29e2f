package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNoPath is returned by Open when history is not configured.
var ErrNoPath = errors.New("no history database path configured")

// DB is the run history store.
type DB struct {
	*sql.DB
	path string
}

func connect(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// runs are written sequentially; a single connection also keeps ":memory:" intact
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Open opens the history database at path, creating the file, its directory
// and the runs/run_tables schema as needed.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := connect(path)
	if err != nil {
		return nil, err
	}
	db := &DB{DB: conn, path: path}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path is the file the history lives in.
func (db *DB) Path() string {
	return db.path
}

// InitSchema creates the runs and run_tables tables. It is idempotent.
func (db *DB) InitSchema() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
