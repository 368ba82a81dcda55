package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"turbo-slide/internal/views"
)

// StaticHandler serves rasterized slide images, images referenced by HTML
// slides and public assets
type StaticHandler struct {
	decksDir  string
	mount     string
	publicDir string
	imagesDir string
}

// NewStaticHandler creates a new static handler
func NewStaticHandler(decksDir, mount, publicDir, imagesDir string) *StaticHandler {
	return &StaticHandler{
		decksDir:  decksDir,
		mount:     strings.Trim(mount, "/"),
		publicDir: publicDir,
		imagesDir: imagesDir,
	}
}

// Prefix is the URL prefix slide images are served under
func (h *StaticHandler) Prefix() string {
	return "/" + h.mount + "/"
}

// SlideImages serves /<mount>/<deck>/slide-NN.png. Only PNG files are exposed;
// deck.json, source PDFs and HTML fragments stay private.
func (h *StaticHandler) SlideImages() http.Handler {
	files := http.StripPrefix("/"+h.mount, http.FileServer(http.Dir(h.decksDir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path.Ext(r.URL.Path) != ".png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}

// Images serves /images/ from the images directory, for pictures embedded in
// HTML slides. An unset directory serves nothing.
func (h *StaticHandler) Images() http.Handler {
	if h.imagesDir == "" {
		return http.NotFoundHandler()
	}
	return http.StripPrefix("/images", http.FileServer(http.Dir(h.imagesDir)))
}

// Public serves the client scripts and stylesheets. Files in the public
// directory win; anything missing there falls back to the built-in assets.
func (h *StaticHandler) Public() http.Handler {
	disk := http.FileServer(http.Dir(h.publicDir))
	builtin := http.FileServer(http.FS(views.Assets()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if h.publicDir != "" {
			info, err := os.Stat(filepath.Join(h.publicDir, filepath.FromSlash(name)))
			if err == nil && !info.IsDir() {
				disk.ServeHTTP(w, r)
				return
			}
		}
		builtin.ServeHTTP(w, r)
	})
}
