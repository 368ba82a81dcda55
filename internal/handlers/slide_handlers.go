package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"turbo-slide/internal/models"
	"turbo-slide/internal/services"
	"turbo-slide/internal/views"
)

// SlideHandler serves the slide, presenter, viewer and print pages
type SlideHandler struct {
	resolver    *services.SlideResolver
	registry    *services.DeckRegistry
	nav         *services.NavigationRenderer
	broadcaster *services.Broadcaster
	siteTitle   string
	legacyHome  bool
}

// NewSlideHandler creates a new slide handler
func NewSlideHandler(resolver *services.SlideResolver, registry *services.DeckRegistry, nav *services.NavigationRenderer, broadcaster *services.Broadcaster, siteTitle string, legacyHome bool) *SlideHandler {
	return &SlideHandler{
		resolver:    resolver,
		registry:    registry,
		nav:         nav,
		broadcaster: broadcaster,
		siteTitle:   siteTitle,
		legacyHome:  legacyHome,
	}
}

// deckTarget is the deck a page request addresses
type deckTarget struct {
	name    string // resolver and broadcaster key
	urlDeck string // empty for the default deck's short routes
	info    models.DeckInfo
	total   int
}

func (h *SlideHandler) defaultTarget() deckTarget {
	name := h.registry.DefaultDeck()
	info, err := h.registry.GetDeckInfo(name)
	if err != nil {
		info = &models.DeckInfo{Name: name, Title: h.siteTitle}
	}
	return deckTarget{
		name:  name,
		info:  *info,
		total: info.SlideCount,
	}
}

// namedTarget resolves {name}, writing a 404 when the deck does not exist
func (h *SlideHandler) namedTarget(w http.ResponseWriter, r *http.Request) (deckTarget, bool) {
	name := mux.Vars(r)["name"]
	info, err := h.registry.GetDeckInfo(name)
	if err != nil {
		http.Error(w, "Deck not found", deckErrorStatus(err))
		return deckTarget{}, false
	}
	return deckTarget{
		name:    name,
		urlDeck: name,
		info:    *info,
		total:   info.SlideCount,
	}, true
}

// Home lists the decks, or jumps straight to the default deck in legacy mode
// GET /
func (h *SlideHandler) Home(w http.ResponseWriter, r *http.Request) {
	if h.legacyHome {
		http.Redirect(w, r, h.nav.SlideURL(1, ""), http.StatusFound)
		return
	}

	decks := h.registry.ListDecks()
	if len(decks) == 0 {
		writeHTML(w, views.Home(h.siteTitle, views.NoDecks))
		return
	}

	var cards strings.Builder
	for _, deck := range decks {
		urlDeck := deck.Name
		if deck.IsDefault {
			urlDeck = ""
		}
		cards.WriteString(views.DeckCard(deck, views.DeckLinks{
			Slide:     deck.URL,
			Presenter: h.nav.PresenterURL(1, urlDeck),
			Viewer:    h.nav.ViewerURL(urlDeck, 0),
		}))
	}

	writeHTML(w, views.Home(h.siteTitle, cards.String()))
}

// RedirectSlide sends /slide to the first slide
// GET /slide
func (h *SlideHandler) RedirectSlide(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.nav.SlideURL(1, ""), http.StatusFound)
}

// Slide shows one slide of the default deck
// GET /slide/{id}
func (h *SlideHandler) Slide(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, h.defaultTarget(), services.ModeSlide)
}

// RedirectPresenter sends /presenter to the first slide
// GET /presenter
func (h *SlideHandler) RedirectPresenter(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.nav.PresenterURL(1, ""), http.StatusFound)
}

// Presenter shows the presenter view of the default deck
// GET /presenter/{id}
func (h *SlideHandler) Presenter(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, h.defaultTarget(), services.ModePresenter)
}

// Viewer shows the default deck following the presenter
// GET /viewer?slide={id}
func (h *SlideHandler) Viewer(w http.ResponseWriter, r *http.Request) {
	h.viewer(w, r, h.defaultTarget())
}

// Print shows every slide of the default deck on one page
// GET /print
func (h *SlideHandler) Print(w http.ResponseWriter, r *http.Request) {
	h.print(w, h.defaultTarget())
}

// RedirectDeck sends /deck/{name} to its first slide
// GET /deck/{name}
func (h *SlideHandler) RedirectDeck(w http.ResponseWriter, r *http.Request) {
	t, ok := h.namedTarget(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, h.nav.SlideURL(1, t.urlDeck), http.StatusFound)
}

// DeckSlide shows one slide of a named deck
// GET /deck/{name}/slide/{id}
func (h *SlideHandler) DeckSlide(w http.ResponseWriter, r *http.Request) {
	t, ok := h.namedTarget(w, r)
	if !ok {
		return
	}
	h.page(w, r, t, services.ModeSlide)
}

// RedirectDeckPresenter sends /deck/{name}/presenter to its first slide
// GET /deck/{name}/presenter
func (h *SlideHandler) RedirectDeckPresenter(w http.ResponseWriter, r *http.Request) {
	t, ok := h.namedTarget(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, h.nav.PresenterURL(1, t.urlDeck), http.StatusFound)
}

// DeckPresenter shows the presenter view of a named deck
// GET /deck/{name}/presenter/{id}
func (h *SlideHandler) DeckPresenter(w http.ResponseWriter, r *http.Request) {
	t, ok := h.namedTarget(w, r)
	if !ok {
		return
	}
	h.page(w, r, t, services.ModePresenter)
}

// DeckViewer shows a named deck following its presenter
// GET /deck/{name}/viewer?slide={id}
func (h *SlideHandler) DeckViewer(w http.ResponseWriter, r *http.Request) {
	t, ok := h.namedTarget(w, r)
	if !ok {
		return
	}
	h.viewer(w, r, t)
}

// DeckPrint shows every slide of a named deck on one page
// GET /deck/{name}/print
func (h *SlideHandler) DeckPrint(w http.ResponseWriter, r *http.Request) {
	t, ok := h.namedTarget(w, r)
	if !ok {
		return
	}
	h.print(w, t)
}

// page handles the {id} routes: invalid ids redirect to slide 1 of the same mode
func (h *SlideHandler) page(w http.ResponseWriter, r *http.Request, t deckTarget, mode services.Mode) {
	if t.total == 0 {
		http.Error(w, "No slides found", http.StatusNotFound)
		return
	}

	index, ok := services.ParseSlideIndex(mux.Vars(r)["id"])
	if !ok || index > t.total {
		first := h.nav.SlideURL(1, t.urlDeck)
		if mode == services.ModePresenter {
			first = h.nav.PresenterURL(1, t.urlDeck)
		}
		http.Redirect(w, r, first, http.StatusFound)
		return
	}

	h.render(w, r, t, mode, index)
}

// viewer picks the slide from ?slide=, defaulting to the deck's broadcast cursor
func (h *SlideHandler) viewer(w http.ResponseWriter, r *http.Request, t deckTarget) {
	if t.total == 0 {
		http.Error(w, "No slides found", http.StatusNotFound)
		return
	}

	var index int
	if raw := r.URL.Query().Get("slide"); raw != "" {
		var ok bool
		index, ok = services.ParseSlideIndex(raw)
		if !ok || index > t.total {
			http.Redirect(w, r, h.nav.ViewerURL(t.urlDeck, 0), http.StatusFound)
			return
		}
	} else {
		index = h.broadcaster.CurrentSlide(t.name)
		if index < 1 || index > t.total {
			index = 1
		}
	}

	h.render(w, r, t, services.ModeViewer, index)
}

func (h *SlideHandler) render(w http.ResponseWriter, r *http.Request, t deckTarget, mode services.Mode, index int) {
	content, ok := h.resolver.LoadSlide(t.name, index)
	if !ok {
		http.Error(w, "Slide not found", http.StatusNotFound)
		return
	}

	nav := h.nav.Render(index, t.total, mode, t.urlDeck)

	if isFrameRequest(r) {
		writeHTML(w, views.Frame(content, nav))
		return
	}

	printURL := ""
	if mode != services.ModeViewer {
		printURL = h.nav.PrintURL(t.urlDeck)
	}

	writeHTML(w, views.Layout(views.Page{
		Title:           t.info.DisplayTitle(),
		Content:         content,
		Nav:             nav,
		TotalSlides:     t.total,
		TimerSeconds:    t.info.TimerSeconds,
		EventsURL:       h.nav.EventsURL(t.urlDeck),
		PrintURL:        printURL,
		ScriptFlags:     h.scriptFlags(mode, t.urlDeck, index, t.total),
		DisableHomeLink: mode == services.ModeViewer,
	}))
}

func (h *SlideHandler) print(w http.ResponseWriter, t deckTarget) {
	var slides strings.Builder
	for i := 1; i <= t.total; i++ {
		if content, ok := h.resolver.LoadSlide(t.name, i); ok {
			slides.WriteString(views.PrintSlide(content))
		}
	}
	writeHTML(w, views.Print(t.info.DisplayTitle(), slides.String()))
}

// scriptFlags are the window globals the client scripts read on load.
// Presenters get the API endpoints for their prev/next links; viewers get
// the URL their frame is reloaded from.
func (h *SlideHandler) scriptFlags(mode services.Mode, urlDeck string, index, total int) string {
	var b strings.Builder
	switch mode {
	case services.ModePresenter:
		b.WriteString("window.PRESENTER_MODE = true; ")
		urls := map[string]string{}
		if index > 1 {
			urls["prev"] = h.nav.ChangeSlideURL(index-1, urlDeck)
		}
		if index < total {
			urls["next"] = h.nav.ChangeSlideURL(index+1, urlDeck)
		}
		encoded, _ := json.Marshal(urls)
		fmt.Fprintf(&b, "window.CHANGE_SLIDE_URLS = %s; ", encoded)
	case services.ModeViewer:
		b.WriteString("window.VIEWER_MODE = true; ")
		viewerURL, _ := json.Marshal(h.nav.ViewerURL(urlDeck, 0))
		fmt.Fprintf(&b, "window.VIEWER_URL = %s; ", viewerURL)
	}
	if urlDeck != "" {
		quoted, _ := json.Marshal(urlDeck)
		fmt.Fprintf(&b, "window.DECK_NAME = %s; ", quoted)
	}
	fmt.Fprintf(&b, "window.CURRENT_SLIDE = %d; window.TOTAL_SLIDES = %d;", index, total)
	return b.String()
}
