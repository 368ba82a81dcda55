package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"turbo-slide/internal/models"
	"turbo-slide/internal/services"
)

type testApp struct {
	decksDir    string
	broadcaster *services.Broadcaster
	router      *mux.Router
}

// newTestApp serves a 5-slide HTML default deck and a 3-slide raster deck "intro"
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	root := t.TempDir()
	decksDir := filepath.Join(root, "decks")
	writeSlides(t, decksDir, "default", models.KindHTMLFragments, 5)
	writeSlides(t, decksDir, "intro", models.KindRasterImages, 3)

	resolver, err := services.NewSlideResolver(decksDir, "decks", services.NewMetadataStore())
	if err != nil {
		t.Fatalf("NewSlideResolver: %v", err)
	}
	t.Cleanup(func() { resolver.Close() })

	registry := services.NewDeckRegistry(resolver, "default", services.DeckDefaults{
		Title:        "Test Deck",
		TimerSeconds: 600,
	})
	nav := services.NewNavigationRenderer()
	broadcaster := services.NewBroadcaster()
	t.Cleanup(broadcaster.Close)

	router := SetupRoutes(
		NewSlideHandler(resolver, registry, nav, broadcaster, "Test Deck", false),
		NewAPIHandler(resolver, registry, broadcaster),
		NewEventsHandler(broadcaster, registry, time.Second, 0),
		NewImportHandler(nil, nil),
		NewStaticHandler(decksDir, "decks", filepath.Join(root, "public"), filepath.Join(root, "images")),
		NewHealthHandler(registry, broadcaster, nil),
	)

	return &testApp{
		decksDir:    decksDir,
		broadcaster: broadcaster,
		router:      router,
	}
}

func writeSlides(t *testing.T, root, deck string, kind models.DeckKind, count int) {
	t.Helper()
	dir := filepath.Join(root, deck)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for i := 1; i <= count; i++ {
		content := fmt.Sprintf("<h1>%s slide %d</h1>", deck, i)
		if err := os.WriteFile(filepath.Join(dir, services.SlideFileName(kind, i)), []byte(content), 0644); err != nil {
			t.Fatalf("write slide: %v", err)
		}
	}
}

func (a *testApp) do(t *testing.T, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

// readEvent returns the data of the next event, skipping keepalive comments
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading event stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			return data
		}
	}
}

func TestChangeSlideReachesEventStream(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	stream := bufio.NewReader(resp.Body)
	if got := readEvent(t, stream); got != "1" {
		t.Fatalf("bootstrap event = %q, want 1", got)
	}

	post, err := http.Post(server.URL+"/api/slide/3", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/slide/3: %v", err)
	}
	defer post.Body.Close()

	var body ChangeSlideResponse
	if err := json.NewDecoder(post.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if post.StatusCode != http.StatusOK || !body.Success || body.CurrentSlide != 3 {
		t.Errorf("response = %d %+v", post.StatusCode, body)
	}

	if got := readEvent(t, stream); got != "3" {
		t.Errorf("next event = %q, want 3", got)
	}
}

func TestLateSubscriberGetsCurrentSlide(t *testing.T) {
	app := newTestApp(t)
	app.broadcaster.SetCurrentSlide("intro", 2)
	server := httptest.NewServer(app.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/deck/intro/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := readEvent(t, bufio.NewReader(resp.Body)); got != "2" {
		t.Errorf("bootstrap event = %q, want 2", got)
	}
}

func TestEventStreamUnknownDeck(t *testing.T) {
	app := newTestApp(t)

	if rec := app.do(t, http.MethodGet, "/deck/missing/events", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/events?deck=missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChangeSlideRejectsInvalidID(t *testing.T) {
	app := newTestApp(t)
	app.broadcaster.SetCurrentSlide("default", 2)

	for _, id := range []string{"99", "0", "6", "abc"} {
		rec := app.do(t, http.MethodPost, "/api/slide/"+id, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST /api/slide/%s status = %d, want 400", id, rec.Code)
			continue
		}
		var body ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != "Invalid slide ID" {
			t.Errorf("error = %q", body.Error)
		}
	}

	if got := app.broadcaster.CurrentSlide("default"); got != 2 {
		t.Errorf("CurrentSlide = %d, want unchanged 2", got)
	}
}

func TestChangeDeckSlide(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/deck/intro/slide/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := app.broadcaster.CurrentSlide("intro"); got != 2 {
		t.Errorf("intro CurrentSlide = %d, want 2", got)
	}
	if got := app.broadcaster.CurrentSlide("default"); got != 1 {
		t.Errorf("default CurrentSlide = %d, want 1", got)
	}

	if rec := app.do(t, http.MethodPost, "/api/deck/intro/slide/4", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d, want 400", rec.Code)
	}

	rec = app.do(t, http.MethodPost, "/api/deck/missing/slide/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown deck status = %d, want 404", rec.Code)
	}
	var body ErrorResponse
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Error != "Deck not found" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestInvalidSlideRedirects(t *testing.T) {
	app := newTestApp(t)

	cases := map[string]string{
		"/slide/7":                   "/slide/1",
		"/slide/0":                   "/slide/1",
		"/slide/abc":                 "/slide/1",
		"/presenter/9":               "/presenter/1",
		"/viewer?slide=9":            "/viewer",
		"/deck/intro/slide/4":        "/deck/intro/slide/1",
		"/deck/intro/presenter/x":    "/deck/intro/presenter/1",
		"/deck/intro/viewer?slide=0": "/deck/intro/viewer",
		"/slide":                     "/slide/1",
		"/presenter":                 "/presenter/1",
		"/deck/intro":                "/deck/intro/slide/1",
		"/deck/intro/presenter":      "/deck/intro/presenter/1",
	}
	for target, location := range cases {
		t.Run(target, func(t *testing.T) {
			expectRedirect(t, app.do(t, http.MethodGet, target, nil), location)
		})
	}
}

func TestUnknownDeckPages(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{
		"/deck/missing",
		"/deck/missing/slide/1",
		"/deck/missing/presenter/1",
		"/deck/missing/viewer",
		"/deck/missing/print",
	} {
		if rec := app.do(t, http.MethodGet, target, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestSlidePage(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/slide/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		`<div class="slide"><h1>default slide 2</h1></div>`,
		`href="/slide/1"`,
		`href="/slide/3"`,
		"window.CURRENT_SLIDE = 2; window.TOTAL_SLIDES = 5;",
		"<title>Test Deck</title>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "PRESENTER_MODE") || strings.Contains(body, "VIEWER_MODE") {
		t.Error("slide page should not carry mode flags")
	}
}

func TestFrameRequestReturnsFragment(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/slide/3", http.Header{"Turbo-Frame": {"slide-content"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<turbo-frame id="slide-content">`) || !strings.Contains(body, "default slide 3") {
		t.Errorf("fragment = %s", body)
	}
	if strings.Contains(body, "<html") {
		t.Error("frame request should not return a full page")
	}
}

func TestPresenterPage(t *testing.T) {
	app := newTestApp(t)

	body := app.do(t, http.MethodGet, "/deck/intro/presenter/2", nil).Body.String()
	for _, want := range []string{
		"window.PRESENTER_MODE = true;",
		`window.DECK_NAME = "intro";`,
		"window.CURRENT_SLIDE = 2; window.TOTAL_SLIDES = 3;",
		`src="/decks/intro/slide-02.png"`,
		`href="/deck/intro/presenter/3"`,
		`window.CHANGE_SLIDE_URLS = {"next":"/api/deck/intro/slide/3","prev":"/api/deck/intro/slide/1"};`,
		`<a href="/deck/intro/print" class="btn" target="_blank">Print</a>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("presenter page missing %q", want)
		}
	}
}

func TestViewerFollowsBroadcaster(t *testing.T) {
	app := newTestApp(t)
	app.broadcaster.SetCurrentSlide("default", 4)

	body := app.do(t, http.MethodGet, "/viewer", nil).Body.String()
	for _, want := range []string{
		"window.VIEWER_MODE = true;",
		`window.VIEWER_URL = "/viewer";`,
		"window.CURRENT_SLIDE = 4;",
		"default slide 4",
		"deck-title-disabled",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("viewer page missing %q", want)
		}
	}
	if strings.Contains(body, `<a href="/" class="deck-title-link">`) {
		t.Error("viewer should not link home")
	}

	pinned := app.do(t, http.MethodGet, "/viewer?slide=2", nil).Body.String()
	if !strings.Contains(pinned, "window.CURRENT_SLIDE = 2;") {
		t.Error("?slide should pin the viewer")
	}
}

func TestPrintPage(t *testing.T) {
	app := newTestApp(t)

	body := app.do(t, http.MethodGet, "/print", nil).Body.String()
	if got := strings.Count(body, `<div class="print-slide">`); got != 5 {
		t.Errorf("print page has %d slides, want 5", got)
	}
	if !strings.Contains(body, "default slide 5") {
		t.Error("print page missing last slide")
	}
}

func TestEmptyDefaultDeck(t *testing.T) {
	app := newTestApp(t)
	if err := os.RemoveAll(filepath.Join(app.decksDir, "default")); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if rec := app.do(t, http.MethodGet, "/slide/1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := app.do(t, http.MethodPost, "/api/slide/1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListDecksAPI(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/decks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var decks []struct {
		Name       string `json:"name"`
		Type       string `json:"type"`
		SlideCount int    `json:"slideCount"`
		URL        string `json:"url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&decks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decks) != 2 {
		t.Fatalf("got %d decks", len(decks))
	}
	if decks[0].Name != "default" || decks[0].Type != "html-fragments" || decks[0].SlideCount != 5 || decks[0].URL != "/slide/1" {
		t.Errorf("decks[0] = %+v", decks[0])
	}
	if decks[1].Name != "intro" || decks[1].Type != "raster-images" || decks[1].SlideCount != 3 || decks[1].URL != "/deck/intro" {
		t.Errorf("decks[1] = %+v", decks[1])
	}
}

func TestGetDeckAPI(t *testing.T) {
	app := newTestApp(t)
	app.broadcaster.SetCurrentSlide("intro", 3)

	rec := app.do(t, http.MethodGet, "/api/deck/intro", nil)
	var status DeckStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Name != "intro" || status.CurrentSlide != 3 {
		t.Errorf("status = %+v", status)
	}

	if rec := app.do(t, http.MethodGet, "/api/deck/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHomeListsDecks(t *testing.T) {
	app := newTestApp(t)

	body := app.do(t, http.MethodGet, "/", nil).Body.String()
	for _, want := range []string{
		`href="/slide/1"`,
		`href="/presenter/1"`,
		`href="/viewer"`,
		`href="/deck/intro"`,
		`href="/deck/intro/presenter/1"`,
		"3 slides",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("home missing %q", want)
		}
	}
}

func TestSlideImagesOnlyServePNG(t *testing.T) {
	app := newTestApp(t)

	if rec := app.do(t, http.MethodGet, "/decks/intro/slide-01.png", nil); rec.Code != http.StatusOK {
		t.Errorf("png status = %d, want 200", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/decks/default/slide-01.html", nil); rec.Code != http.StatusNotFound {
		t.Errorf("html status = %d, want 404", rec.Code)
	}
}

func TestPublicAssetsFallBackToBuiltin(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/script.js", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("script.js status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CHANGE_SLIDE_URLS") {
		t.Error("built-in script.js not served")
	}
	if rec := app.do(t, http.MethodGet, "/style.css", nil); rec.Code != http.StatusOK {
		t.Errorf("style.css status = %d, want 200", rec.Code)
	}

	// a file in the public directory overrides the built-in one
	publicDir := filepath.Join(filepath.Dir(app.decksDir), "public")
	if err := os.MkdirAll(publicDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(publicDir, "script.js"), []byte("// custom"), 0644); err != nil {
		t.Fatal(err)
	}
	if body := app.do(t, http.MethodGet, "/script.js", nil).Body.String(); body != "// custom" {
		t.Errorf("script.js = %q, want the public override", body)
	}
}

func TestSlideContentImages(t *testing.T) {
	app := newTestApp(t)

	imagesDir := filepath.Join(filepath.Dir(app.decksDir), "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imagesDir, "diagram.svg"), []byte("<svg/>"), 0644); err != nil {
		t.Fatal(err)
	}

	if rec := app.do(t, http.MethodGet, "/images/diagram.svg", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/images/missing.png", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing image status = %d, want 404", rec.Code)
	}
}

func TestImportRoutesWithoutPipeline(t *testing.T) {
	app := newTestApp(t)

	if rec := app.do(t, http.MethodPost, "/api/imports", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/api/imports", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id not set")
	}

	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Decks != 2 {
		t.Errorf("health = %+v", health)
	}

	rec = app.do(t, http.MethodGet, "/health", http.Header{"X-Request-Id": {"abc-123"}})
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q, want client value", got)
	}
}

func TestScriptFlags(t *testing.T) {
	h := &SlideHandler{nav: services.NewNavigationRenderer()}

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"slide", h.scriptFlags("slide", "", 2, 5), "window.CURRENT_SLIDE = 2; window.TOTAL_SLIDES = 5;"},
		{"presenter first", h.scriptFlags("presenter", "intro", 1, 3), `window.PRESENTER_MODE = true; window.CHANGE_SLIDE_URLS = {"next":"/api/deck/intro/slide/2"}; window.DECK_NAME = "intro"; window.CURRENT_SLIDE = 1; window.TOTAL_SLIDES = 3;`},
		{"presenter middle", h.scriptFlags("presenter", "", 3, 5), `window.PRESENTER_MODE = true; window.CHANGE_SLIDE_URLS = {"next":"/api/slide/4","prev":"/api/slide/2"}; window.CURRENT_SLIDE = 3; window.TOTAL_SLIDES = 5;`},
		{"viewer", h.scriptFlags("viewer", "", 4, 5), `window.VIEWER_MODE = true; window.VIEWER_URL = "/viewer"; window.CURRENT_SLIDE = 4; window.TOTAL_SLIDES = 5;`},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, c.got, c.want)
		}
	}
}
