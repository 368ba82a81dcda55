package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// InitDatabase initializes SQLite database and creates tables
func InitDatabase(dbPath string) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open opens a SQLite database at dbPath and ensures the schema exists
func Open(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("Database initialized at: %s", dbPath)
	return conn, nil
}

// createTables creates all necessary tables
func createTables(conn *sql.DB) error {
	createImportsTable := `
	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		deck_name TEXT NOT NULL,
		source_path TEXT NOT NULL DEFAULT '',
		slide_count INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);`

	if _, err := conn.Exec(createImportsTable); err != nil {
		return fmt.Errorf("failed to create import_runs table: %w", err)
	}

	// Create index on deck name for per-deck history
	createIndex := `CREATE INDEX IF NOT EXISTS idx_import_deck ON import_runs(deck_name);`
	if _, err := conn.Exec(createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	createTimeIndex := `CREATE INDEX IF NOT EXISTS idx_import_started ON import_runs(started_at);`
	if _, err := conn.Exec(createTimeIndex); err != nil {
		return fmt.Errorf("failed to create started_at index: %w", err)
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
