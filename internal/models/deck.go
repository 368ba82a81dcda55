package models

import "time"

// DeckKind describes how a deck's slides are stored on disk
type DeckKind string

const (
	// KindHTMLFragments decks hold slide-01.html, slide-02.html, ...
	KindHTMLFragments DeckKind = "html-fragments"
	// KindRasterImages decks hold slide-01.png, slide-02.png, ... produced from a PDF
	KindRasterImages DeckKind = "raster-images"
)

// Valid reports whether k is one of the known kinds
func (k DeckKind) Valid() bool {
	return k == KindHTMLFragments || k == KindRasterImages
}

// FileExt returns the slide file extension used by the kind
func (k DeckKind) FileExt() string {
	if k == KindRasterImages {
		return ".png"
	}
	return ".html"
}

// ParseDeckKind accepts both the current kind names and the legacy
// "html"/"pdf" type values written by older importers.
func ParseDeckKind(s string) (DeckKind, bool) {
	if k := DeckKind(s); k.Valid() {
		return k, true
	}
	switch s {
	case "html":
		return KindHTMLFragments, true
	case "pdf", "png":
		return KindRasterImages, true
	default:
		return "", false
	}
}

// DeckMetadata represents the optional deck.json file stored in a deck directory
type DeckMetadata struct {
	Name         string     `json:"name,omitempty"`
	Title        string     `json:"title,omitempty"`
	Author       string     `json:"author,omitempty"`
	TimerSeconds int        `json:"timerSeconds,omitempty"`
	SlideCount   int        `json:"slideCount,omitempty"`
	Kind         string     `json:"kind,omitempty"`
	Type         string     `json:"type,omitempty"` // legacy field, read only
	ConvertedAt  *time.Time `json:"convertedAt,omitempty"`
}

// DeckInfo is the derived view of a deck directory
type DeckInfo struct {
	Name         string   `json:"name"`
	Kind         DeckKind `json:"type"`
	SlideCount   int      `json:"slideCount"`
	URL          string   `json:"url"`
	Title        string   `json:"title,omitempty"`
	Author       string   `json:"author,omitempty"`
	TimerSeconds int      `json:"timerSeconds"`
	IsDefault    bool     `json:"isDefault,omitempty"`
}

// DisplayTitle returns the title, falling back to the deck name
func (d *DeckInfo) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// ImportOverrides represents a <name>.json file placed next to a PDF in the
// import directory. SlideCount, Kind and ConvertedAt are owned by the importer
// and are never taken from here.
type ImportOverrides struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	TimerSeconds int    `json:"timerSeconds,omitempty"`
}

// ImportResult represents the outcome of one PDF conversion
type ImportResult struct {
	ID         string    `json:"id"`
	DeckName   string    `json:"deckName"`
	SourcePath string    `json:"sourcePath"`
	SlideCount int       `json:"slideCount"`
	Success    bool      `json:"success"`
	Skipped    bool      `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
