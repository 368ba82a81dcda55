package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"

	"turbo-slide/internal/models"
)

var (
	deckNamePattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	htmlSlidePattern = regexp.MustCompile(`^slide-\d+\.html$`)
	pngSlidePattern  = regexp.MustCompile(`^slide-\d+\.png$`)
)

// ValidDeckName reports whether name is usable both as a directory name
// and as a URL segment.
func ValidDeckName(name string) bool {
	return deckNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// ParseSlideIndex parses a 1-based slide index from a path or query value.
// Anything that is not a plain positive integer is rejected.
func ParseSlideIndex(raw string) (int, bool) {
	if raw == "" || strings.TrimSpace(raw) != raw {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// SlideFileName returns the on-disk name of slide index for kind. Indexes are
// padded to two digits; three-digit indexes simply widen.
func SlideFileName(kind models.DeckKind, index int) string {
	return fmt.Sprintf("slide-%02d%s", index, kind.FileExt())
}

// deckScan summarises the slide files found in one deck directory
type deckScan struct {
	htmlCount int
	pngCount  int
	newest    time.Time
}

// SlideResolver maps deck names and slide indexes onto files in the decks root
type SlideResolver struct {
	decksDir string
	mount    string
	metadata *MetadataStore
	cache    *bigcache.BigCache
}

// NewSlideResolver creates a resolver rooted at decksDir. Raster slides are
// referenced under /<mount>/<deck>/.
func NewSlideResolver(decksDir, mount string, metadata *MetadataStore) (*SlideResolver, error) {
	cfg := bigcache.DefaultConfig(30 * time.Minute)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 4096
	cfg.HardMaxCacheSize = 64
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create slide cache: %w", err)
	}

	if metadata == nil {
		metadata = NewMetadataStore()
	}

	return &SlideResolver{
		decksDir: decksDir,
		mount:    strings.Trim(mount, "/"),
		metadata: metadata,
		cache:    cache,
	}, nil
}

// Close releases the content cache
func (sr *SlideResolver) Close() error {
	return sr.cache.Close()
}

// DecksDir returns the decks root
func (sr *SlideResolver) DecksDir() string {
	return sr.decksDir
}

// DeckDir returns the directory backing deck
func (sr *SlideResolver) DeckDir(deck string) (string, error) {
	if !ValidDeckName(deck) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDeckName, deck)
	}
	return filepath.Join(sr.decksDir, deck), nil
}

// scan reads a deck directory once. A missing directory is an empty scan.
func (sr *SlideResolver) scan(dir string) (deckScan, error) {
	var result deckScan

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case htmlSlidePattern.MatchString(name):
			result.htmlCount++
		case pngSlidePattern.MatchString(name):
			result.pngCount++
		default:
			continue
		}
		if info, err := entry.Info(); err == nil && info.ModTime().After(result.newest) {
			result.newest = info.ModTime()
		}
	}

	return result, nil
}

// kindOf decides the deck kind: valid fresh metadata wins, then PNG presence.
// Metadata older than the newest slide file no longer describes the deck.
func kindOf(scan deckScan, meta *models.DeckMetadata, metaTime time.Time) models.DeckKind {
	if meta != nil && !metaTime.Before(scan.newest) {
		if kind, ok := models.ParseDeckKind(meta.Kind); ok {
			return kind
		}
		if kind, ok := models.ParseDeckKind(meta.Type); ok {
			return kind
		}
	}
	if scan.pngCount > 0 {
		return models.KindRasterImages
	}
	return models.KindHTMLFragments
}

// describe derives kind and slide count for a deck directory
func (sr *SlideResolver) describe(dir string) (models.DeckKind, int, *models.DeckMetadata, bool) {
	scan, err := sr.scan(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: failed to read deck directory %s: %v", dir, err)
		}
		return models.KindHTMLFragments, 0, nil, false
	}

	meta, metaTime, ok := sr.metadata.Load(dir)
	if !ok {
		meta = nil
	}

	kind := kindOf(scan, meta, metaTime)
	count := scan.htmlCount
	if kind == models.KindRasterImages {
		count = scan.pngCount
	}

	// Fresh metadata may shorten a deck but never claim files that are not there.
	if meta != nil && meta.SlideCount > 0 && meta.SlideCount <= count && !metaTime.Before(scan.newest) {
		count = meta.SlideCount
	}

	return kind, count, meta, true
}

// Kind returns how deck stores its slides
func (sr *SlideResolver) Kind(deck string) models.DeckKind {
	dir, err := sr.DeckDir(deck)
	if err != nil {
		return models.KindHTMLFragments
	}
	kind, _, _, _ := sr.describe(dir)
	return kind
}

// SlideCount returns the number of slides in deck, 0 for unknown decks
func (sr *SlideResolver) SlideCount(deck string) int {
	dir, err := sr.DeckDir(deck)
	if err != nil {
		return 0
	}
	_, count, _, _ := sr.describe(dir)
	return count
}

// IsValidSlideIndex reports whether 1 <= index <= SlideCount(deck)
func (sr *SlideResolver) IsValidSlideIndex(deck string, index int) bool {
	return index >= 1 && index <= sr.SlideCount(deck)
}

// SlideImageURL returns the public URL of a raster slide
func (sr *SlideResolver) SlideImageURL(deck string, index int) string {
	return fmt.Sprintf("/%s/%s/%s", sr.mount, deck, SlideFileName(models.KindRasterImages, index))
}

// LoadSlide returns the renderable markup for a slide. Missing files yield
// ok=false even when the index is within range.
func (sr *SlideResolver) LoadSlide(deck string, index int) (string, bool) {
	if index < 1 {
		return "", false
	}
	dir, err := sr.DeckDir(deck)
	if err != nil {
		return "", false
	}

	kind, _, _, exists := sr.describe(dir)
	if !exists {
		return "", false
	}

	filePath := filepath.Join(dir, SlideFileName(kind, index))
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		return "", false
	}

	if kind == models.KindRasterImages {
		return fmt.Sprintf(`
<div class="imported-slide-container">
  <img src="%s"
       class="imported-slide-image"
       alt="Slide %d" />
</div>`, sr.SlideImageURL(deck, index), index), true
	}

	content, err := sr.readCached(filePath, info)
	if err != nil {
		log.Printf("Warning: failed to read slide %s: %v", filePath, err)
		return "", false
	}

	return `<div class="slide">` + string(content) + `</div>`, true
}

// readCached returns file content, keyed on path, size and mtime so an
// edited file is never served stale.
func (sr *SlideResolver) readCached(filePath string, info os.FileInfo) ([]byte, error) {
	key := fmt.Sprintf("%s|%d|%d", filePath, info.ModTime().UnixNano(), info.Size())

	if data, err := sr.cache.Get(key); err == nil {
		return data, nil
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		log.Printf("Warning: slide cache lookup failed: %v", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	if err := sr.cache.Set(key, data); err != nil {
		log.Printf("Warning: failed to cache slide %s: %v", filePath, err)
	}

	return data, nil
}
