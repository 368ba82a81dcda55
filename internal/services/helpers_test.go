package services

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"turbo-slide/internal/models"
)

// writeDeck creates count slide files of kind in root/name
func writeDeck(t *testing.T, root, name string, kind models.DeckKind, count int) string {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for i := 1; i <= count; i++ {
		content := fmt.Sprintf("<h1>%s %d</h1>", name, i)
		if err := os.WriteFile(filepath.Join(dir, SlideFileName(kind, i)), []byte(content), 0644); err != nil {
			t.Fatalf("write slide: %v", err)
		}
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// age moves a file's mtime into the past
func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func newTestResolver(t *testing.T, root string) *SlideResolver {
	t.Helper()
	resolver, err := NewSlideResolver(root, "decks", NewMetadataStore())
	if err != nil {
		t.Fatalf("NewSlideResolver: %v", err)
	}
	t.Cleanup(func() { resolver.Close() })
	return resolver
}
