package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"turbo-slide/internal/models"
)

// MetadataFileName is the optional per-deck metadata file
const MetadataFileName = "deck.json"

// MetadataStore reads and writes deck.json files
type MetadataStore struct {
	mu sync.Mutex
}

// NewMetadataStore creates a new metadata store
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{}
}

// Load reads deck.json from deckDir. A missing or malformed file yields
// ok=false; malformed files are logged and otherwise ignored.
func (s *MetadataStore) Load(deckDir string) (meta *models.DeckMetadata, modTime time.Time, ok bool) {
	filePath := filepath.Join(deckDir, MetadataFileName)

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, time.Time{}, false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Printf("Warning: failed to read %s: %v", filePath, err)
		return nil, time.Time{}, false
	}

	var file models.DeckMetadata
	if err := json.Unmarshal(data, &file); err != nil {
		log.Printf("Warning: failed to parse %s, ignoring metadata: %v", filePath, err)
		return nil, time.Time{}, false
	}

	return &file, info.ModTime(), true
}

// Save atomically writes deck.json (temp file → rename)
func (s *MetadataStore) Save(deckDir string, meta *models.DeckMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(deckDir, meta)
}

// save must be called with lock held
func (s *MetadataStore) save(deckDir string, meta *models.DeckMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deck metadata: %w", err)
	}

	filePath := filepath.Join(deckDir, MetadataFileName)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	file, err := os.OpenFile(tempPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file for sync: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// RecordConversion merges the result of a PDF conversion into deck.json.
// User overrides may set title/author/timer; slideCount, kind and
// convertedAt always come from the conversion.
func (s *MetadataStore) RecordConversion(deckDir, deckName string, slideCount int, overrides *models.ImportOverrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := &models.DeckMetadata{}
	if existing, _, ok := s.Load(deckDir); ok {
		meta = existing
	} else if _, err := os.Stat(filepath.Join(deckDir, MetadataFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat deck metadata: %w", err)
	}

	if overrides != nil {
		if overrides.Title != "" {
			meta.Title = overrides.Title
		}
		if overrides.Author != "" {
			meta.Author = overrides.Author
		}
		if overrides.TimerSeconds > 0 {
			meta.TimerSeconds = overrides.TimerSeconds
		}
	}

	now := time.Now().UTC()
	meta.Name = deckName
	meta.SlideCount = slideCount
	meta.Kind = string(models.KindRasterImages)
	meta.Type = ""
	meta.ConvertedAt = &now

	if err := s.save(deckDir, meta); err != nil {
		return fmt.Errorf("failed to save deck metadata: %w", err)
	}

	log.Printf("Updated deck metadata: deck=%s, slides=%d", deckName, slideCount)
	return nil
}
