package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"turbo-slide/internal/models"
)

// ImportLog records PDF import runs in SQLite
type ImportLog struct {
	database *sql.DB
}

// NewImportLog creates a new import log
func NewImportLog(database *sql.DB) *ImportLog {
	return &ImportLog{
		database: database,
	}
}

// Record stores one import result, assigning an ID if it has none
func (il *ImportLog) Record(result *models.ImportResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = time.Now().UTC()
	}
	if result.FinishedAt.IsZero() {
		result.FinishedAt = result.StartedAt
	}

	query := `INSERT INTO import_runs
		(id, deck_name, source_path, slide_count, success, skipped, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := il.database.Exec(query,
		result.ID,
		result.DeckName,
		result.SourcePath,
		result.SlideCount,
		result.Success,
		result.Skipped,
		result.Error,
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import run: %w", err)
	}

	return nil
}

// List returns the most recent import runs, newest first
func (il *ImportLog) List(limit int) ([]*models.ImportResult, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, deck_name, source_path, slide_count, success, skipped, error, started_at, finished_at
		FROM import_runs ORDER BY started_at DESC LIMIT ?`

	rows, err := il.database.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	results := []*models.ImportResult{}
	for rows.Next() {
		result, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// LastForDeck returns the newest import run for deck
func (il *ImportLog) LastForDeck(deck string) (*models.ImportResult, error) {
	query := `SELECT id, deck_name, source_path, slide_count, success, skipped, error, started_at, finished_at
		FROM import_runs WHERE deck_name = ? ORDER BY started_at DESC LIMIT 1`

	result, err := scanImportRun(il.database.QueryRow(query, deck))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, deck)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImportRun(row rowScanner) (*models.ImportResult, error) {
	var result models.ImportResult
	err := row.Scan(
		&result.ID,
		&result.DeckName,
		&result.SourcePath,
		&result.SlideCount,
		&result.Success,
		&result.Skipped,
		&result.Error,
		&result.StartedAt,
		&result.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import run: %w", err)
	}
	return &result, nil
}
