package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gen2brain/go-fitz"
	"golang.org/x/sync/singleflight"

	"turbo-slide/internal/metrics"
	"turbo-slide/internal/models"
)

// SourcePDFName is the PDF kept inside a deck directory
const SourcePDFName = "source.pdf"

// Rasterizer turns every page of a PDF into slide-NN.png files in outputDir
// and returns the number of pages written.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outputDir string) (int, error)
}

// FitzRasterizer renders pages with MuPDF
type FitzRasterizer struct {
	DPI float64
}

// Rasterize implements Rasterizer
func (r FitzRasterizer) Rasterize(ctx context.Context, pdfPath, outputDir string) (int, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 144
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer doc.Close()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	pages := doc.NumPage()
	for n := 0; n < pages; n++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		img, err := doc.ImageDPI(n, dpi)
		if err != nil {
			return n, fmt.Errorf("failed to render page %d: %w", n+1, err)
		}

		filePath := filepath.Join(outputDir, SlideFileName(models.KindRasterImages, n+1))
		file, err := os.Create(filePath)
		if err != nil {
			return n, fmt.Errorf("failed to create %s: %w", filePath, err)
		}
		if err := png.Encode(file, img); err != nil {
			file.Close()
			return n, fmt.Errorf("failed to encode page %d: %w", n+1, err)
		}
		if err := file.Close(); err != nil {
			return n, fmt.Errorf("failed to close %s: %w", filePath, err)
		}
	}

	return pages, nil
}

// PdfImporter converts PDFs into raster decks under the decks root
type PdfImporter struct {
	decksDir   string
	importDir  string
	rasterizer Rasterizer
	metadata   *MetadataStore
	importLog  *ImportLog
	group      singleflight.Group
	running    atomic.Bool

	// Debounce delays an import pass after the last import-dir change
	Debounce time.Duration
}

// NewPdfImporter creates an importer. importLog may be nil.
func NewPdfImporter(decksDir, importDir string, rasterizer Rasterizer, metadata *MetadataStore, importLog *ImportLog) *PdfImporter {
	if metadata == nil {
		metadata = NewMetadataStore()
	}
	return &PdfImporter{
		decksDir:   decksDir,
		importDir:  importDir,
		rasterizer: rasterizer,
		metadata:   metadata,
		importLog:  importLog,
		Debounce:   500 * time.Millisecond,
	}
}

// NeedsReconvert reports whether pdfPath is newer than the PNGs in outputDir
func (p *PdfImporter) NeedsReconvert(pdfPath, outputDir string) bool {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return true
	}

	var firstImage string
	for _, entry := range entries {
		if !entry.IsDir() && pngSlidePattern.MatchString(entry.Name()) {
			firstImage = entry.Name()
			break
		}
	}
	if firstImage == "" {
		return true
	}

	pdfInfo, err := os.Stat(pdfPath)
	if err != nil {
		return true
	}
	imageInfo, err := os.Stat(filepath.Join(outputDir, firstImage))
	if err != nil {
		return true
	}

	return pdfInfo.ModTime().After(imageInfo.ModTime())
}

// InitializeDecks converts <deck>/source.pdf for every deck whose images are
// missing or older than the PDF. A missing decks root is created.
func (p *PdfImporter) InitializeDecks(ctx context.Context) []models.ImportResult {
	results := []models.ImportResult{}

	entries, err := os.ReadDir(p.decksDir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(p.decksDir, 0755); err != nil {
			log.Printf("Failed to create decks directory %s: %v", p.decksDir, err)
		}
		return results
	}
	if err != nil {
		log.Printf("Failed to read decks directory %s: %v", p.decksDir, err)
		return results
	}

	for _, entry := range entries {
		if !entry.IsDir() || !ValidDeckName(entry.Name()) {
			continue
		}
		pdfPath := filepath.Join(p.decksDir, entry.Name(), SourcePDFName)
		if _, err := os.Stat(pdfPath); err != nil {
			continue
		}
		results = append(results, p.ImportPDF(ctx, pdfPath, entry.Name(), nil))
	}

	return results
}

// ImportDirectory converts every PDF in the import directory into a deck
// named after the file, applying a sibling <name>.json as overrides.
func (p *PdfImporter) ImportDirectory(ctx context.Context) []models.ImportResult {
	results := []models.ImportResult{}

	if p.importDir == "" {
		return results
	}

	entries, err := os.ReadDir(p.importDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to read import directory %s: %v", p.importDir, err)
		}
		return results
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}

		deckName := strings.TrimSuffix(name, filepath.Ext(name))
		if !ValidDeckName(deckName) {
			log.Printf("Warning: skipping %s: %q is not a valid deck name", name, deckName)
			continue
		}

		overrides := p.loadOverrides(deckName)
		results = append(results, p.ImportPDF(ctx, filepath.Join(p.importDir, name), deckName, overrides))
	}

	return results
}

// loadOverrides reads <import>/<deck>.json; a malformed file is ignored
func (p *PdfImporter) loadOverrides(deckName string) *models.ImportOverrides {
	configPath := filepath.Join(p.importDir, deckName+".json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil
	}

	var overrides models.ImportOverrides
	if err := json.Unmarshal(data, &overrides); err != nil {
		log.Printf("Warning: failed to parse %s: %v", configPath, err)
		return nil
	}
	return &overrides
}

// ImportPDF converts pdfPath into the deck deckName. Concurrent calls for the
// same deck share one conversion.
func (p *PdfImporter) ImportPDF(ctx context.Context, pdfPath, deckName string, overrides *models.ImportOverrides) models.ImportResult {
	v, _, _ := p.group.Do(deckName, func() (interface{}, error) {
		return p.importPDF(ctx, pdfPath, deckName, overrides), nil
	})
	return v.(models.ImportResult)
}

func (p *PdfImporter) importPDF(ctx context.Context, pdfPath, deckName string, overrides *models.ImportOverrides) (result models.ImportResult) {
	result = models.ImportResult{
		DeckName:   deckName,
		SourcePath: pdfPath,
		StartedAt:  time.Now().UTC(),
	}
	outputDir := filepath.Join(p.decksDir, deckName)

	defer func() {
		result.FinishedAt = time.Now().UTC()
		p.record(&result)
	}()

	if !p.NeedsReconvert(pdfPath, outputDir) {
		result.Success = true
		result.Skipped = true
		// overrides may have changed without the PDF changing
		if overrides != nil {
			count := countPNGSlides(outputDir)
			if err := p.metadata.RecordConversion(outputDir, deckName, count, overrides); err != nil {
				log.Printf("Failed to refresh metadata for %s: %v", deckName, err)
			}
			result.SlideCount = count
		}
		return result
	}

	log.Printf("Converting %s into deck %s", pdfPath, deckName)

	if err := p.prepareOutput(pdfPath, outputDir); err != nil {
		result.Error = err.Error()
		log.Printf("Failed to import %s: %v", pdfPath, err)
		return result
	}

	slideCount, err := p.rasterizer.Rasterize(ctx, pdfPath, outputDir)
	if err != nil {
		result.Error = err.Error()
		log.Printf("Failed to convert %s: %v", pdfPath, err)
		return result
	}

	if err := p.metadata.RecordConversion(outputDir, deckName, slideCount, overrides); err != nil {
		result.Error = err.Error()
		log.Printf("Failed to write metadata for %s: %v", deckName, err)
		return result
	}

	result.SlideCount = slideCount
	result.Success = true
	log.Printf("Created %d slides in %s/", slideCount, deckName)
	return result
}

// prepareOutput creates outputDir, removes stale PNGs and, for PDFs outside
// the deck, keeps a copy as source.pdf.
func (p *PdfImporter) prepareOutput(pdfPath, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create deck directory: %w", err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return fmt.Errorf("failed to read deck directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && pngSlidePattern.MatchString(entry.Name()) {
			if err := os.Remove(filepath.Join(outputDir, entry.Name())); err != nil {
				return fmt.Errorf("failed to remove stale slide: %w", err)
			}
		}
	}

	dest := filepath.Join(outputDir, SourcePDFName)
	if filepath.Clean(pdfPath) == filepath.Clean(dest) {
		return nil
	}
	return copyFile(pdfPath, dest)
}

func (p *PdfImporter) record(result *models.ImportResult) {
	status := "converted"
	switch {
	case !result.Success:
		status = "failed"
	case result.Skipped:
		status = "skipped"
	}
	metrics.ImportsTotal.WithLabelValues(status).Inc()

	if p.importLog == nil {
		return
	}
	if err := p.importLog.Record(result); err != nil {
		log.Printf("Failed to record import run: %v", err)
	}
}

// RunImports performs one full pass (deck sources, then the import directory).
// It fails with ErrImportInProgress when another pass is still running.
func (p *PdfImporter) RunImports(ctx context.Context) ([]models.ImportResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrImportInProgress
	}
	defer p.running.Store(false)

	results := p.InitializeDecks(ctx)
	results = append(results, p.ImportDirectory(ctx)...)
	return results, nil
}

// Watch re-runs ImportDirectory whenever PDFs or override files in the import
// directory change. It blocks until ctx is cancelled.
func (p *PdfImporter) Watch(ctx context.Context) error {
	if p.importDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.importDir, 0755); err != nil {
		return fmt.Errorf("failed to create import directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.importDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p.importDir, err)
	}
	log.Printf("Watching %s for PDF imports", p.importDir)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isImportEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(p.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(p.Debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Import watcher error: %v", err)

		case <-fire:
			fire = nil
			if _, err := p.RunImports(ctx); err != nil {
				log.Printf("Skipping import pass: %v", err)
			}
		}
	}
}

func isImportEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".pdf" || ext == ".json"
}

func countPNGSlides(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && pngSlidePattern.MatchString(entry.Name()) {
			count++
		}
	}
	return count
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source pdf: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy pdf: %w", err)
	}
	return out.Close()
}
