package services

import "errors"

var (
	// ErrDeckNotFound indicates the named deck has no directory under the decks root
	ErrDeckNotFound = errors.New("deck not found")

	// ErrInvalidDeckName indicates a deck name that is not a safe path segment
	ErrInvalidDeckName = errors.New("invalid deck name")

	// ErrBroadcasterClosed indicates the broadcaster has been shut down
	ErrBroadcasterClosed = errors.New("broadcaster is closed")

	// ErrImportInProgress indicates an import pass is already running
	ErrImportInProgress = errors.New("import already in progress")

	// ErrImportNotFound indicates no import run was recorded for a deck
	ErrImportNotFound = errors.New("import run not found")
)
