package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"turbo-slide/internal/models"
)

// DeckDefaults fill in deck attributes that metadata does not provide
type DeckDefaults struct {
	Title        string
	Author       string
	TimerSeconds int
}

// DeckRegistry enumerates the decks under the decks root. Nothing is held in
// memory: every call re-reads the directory tree.
type DeckRegistry struct {
	resolver    *SlideResolver
	defaultDeck string
	defaults    DeckDefaults
}

// NewDeckRegistry creates a registry over the resolver's decks root
func NewDeckRegistry(resolver *SlideResolver, defaultDeck string, defaults DeckDefaults) *DeckRegistry {
	return &DeckRegistry{
		resolver:    resolver,
		defaultDeck: defaultDeck,
		defaults:    defaults,
	}
}

// DefaultDeck returns the name of the deck served by the legacy routes
func (dr *DeckRegistry) DefaultDeck() string {
	return dr.defaultDeck
}

// ListDecks returns every deck directory in name order. A missing decks root
// yields an empty list.
func (dr *DeckRegistry) ListDecks() []models.DeckInfo {
	decks := []models.DeckInfo{}

	entries, err := os.ReadDir(dr.resolver.DecksDir())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: failed to list decks in %s: %v", dr.resolver.DecksDir(), err)
		}
		return decks
	}

	for _, entry := range entries {
		if !entry.IsDir() || !ValidDeckName(entry.Name()) {
			continue
		}
		decks = append(decks, dr.describe(entry.Name()))
	}

	return decks
}

// GetDeckInfo returns the deck named name. Unsafe names yield
// ErrInvalidDeckName and missing decks ErrDeckNotFound.
func (dr *DeckRegistry) GetDeckInfo(name string) (*models.DeckInfo, error) {
	if !ValidDeckName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeckName, name)
	}
	if !dr.DeckExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrDeckNotFound, name)
	}
	info := dr.describe(name)
	return &info, nil
}

// DeckExists reports whether name is a deck directory under the decks root
func (dr *DeckRegistry) DeckExists(name string) bool {
	if !ValidDeckName(name) {
		return false
	}
	info, err := os.Stat(filepath.Join(dr.resolver.DecksDir(), name))
	return err == nil && info.IsDir()
}

// describe merges disk state with deck.json for one deck
func (dr *DeckRegistry) describe(name string) models.DeckInfo {
	dir := filepath.Join(dr.resolver.DecksDir(), name)
	kind, count, meta, _ := dr.resolver.describe(dir)

	info := models.DeckInfo{
		Name:         name,
		Kind:         kind,
		SlideCount:   count,
		URL:          "/deck/" + name,
		Author:       dr.defaults.Author,
		TimerSeconds: dr.defaults.TimerSeconds,
	}

	if name == dr.defaultDeck {
		info.IsDefault = true
		info.URL = "/slide/1"
		info.Title = dr.defaults.Title
	}

	if meta != nil {
		if meta.Title != "" {
			info.Title = meta.Title
		}
		if meta.Author != "" {
			info.Author = meta.Author
		}
		if meta.TimerSeconds > 0 {
			info.TimerSeconds = meta.TimerSeconds
		}
	}

	return info
}
