// Package views renders pages by substituting {{PLACEHOLDER}} markers in
// embedded HTML templates.
package views

import (
	"embed"
	"fmt"
	"html"
	"io/fs"
	"strconv"
	"strings"

	"turbo-slide/internal/models"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// Assets returns the built-in client script and stylesheet, served when the
// public directory does not override them.
func Assets() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(fmt.Sprintf("views: missing static assets: %v", err))
	}
	return sub
}

var (
	layoutTemplate = mustRead("templates/layout.html")
	homeTemplate   = mustRead("templates/home.html")
	printTemplate  = mustRead("templates/print.html")
)

func mustRead(name string) string {
	data, err := templates.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("views: missing template %s: %v", name, err))
	}
	return string(data)
}

// Page carries everything the slide layout needs
type Page struct {
	Title        string
	Content      string
	Nav          string
	TotalSlides  int
	TimerSeconds int
	EventsURL    string
	PrintURL     string // empty hides the print link
	ScriptFlags  string
	// DisableHomeLink renders the title as plain text (viewer mode)
	DisableHomeLink bool
}

// Layout renders a full slide page
func Layout(p Page) string {
	linkOpen := `<a href="/" class="deck-title-link">`
	linkClose := `</a>`
	if p.DisableHomeLink {
		linkOpen = `<span class="deck-title-link deck-title-disabled">`
		linkClose = `</span>`
	}

	printLink := ""
	if p.PrintURL != "" {
		printLink = fmt.Sprintf(`<a href="%s" class="btn" target="_blank">Print</a>`, p.PrintURL)
	}

	r := strings.NewReplacer(
		"{{DECK_TITLE}}", html.EscapeString(p.Title),
		"{{SLIDE_CONTENT}}", p.Content,
		"{{NAV_BUTTONS}}", p.Nav,
		"{{TOTAL_SLIDES}}", strconv.Itoa(p.TotalSlides),
		"{{TIMER_SECONDS}}", strconv.Itoa(p.TimerSeconds),
		"{{EVENTS_URL}}", p.EventsURL,
		"{{SCRIPT_FLAGS}}", p.ScriptFlags,
		"{{PRINT_LINK}}", printLink,
		"{{HOME_LINK_OPEN}}", linkOpen,
		"{{HOME_LINK_CLOSE}}", linkClose,
	)
	return r.Replace(layoutTemplate)
}

// Frame renders the content-only response for a Turbo frame request
func Frame(content, nav string) string {
	return fmt.Sprintf(`
<turbo-frame id="slide-content">
  %s
  <div class="nav" style="display: none;">
    %s
  </div>
</turbo-frame>
`, content, nav)
}

// DeckLinks are the entry points shown on a deck card
type DeckLinks struct {
	Slide     string
	Presenter string
	Viewer    string
}

// DeckCard renders one deck on the home page
func DeckCard(deck models.DeckInfo, links DeckLinks) string {
	typeClass := "html"
	if deck.Kind == models.KindRasterImages {
		typeClass = "pdf"
	}

	return fmt.Sprintf(`
<div class="deck-card">
  <div class="deck-header">
    <h2 class="deck-name">%s</h2>
    <span class="deck-type %s">%s</span>
  </div>
  <div class="deck-meta">
    <div class="deck-meta-item"><span>%d slides</span></div>
  </div>
  <div class="deck-actions">
    <div class="deck-actions-row">
      <a href="%s" class="deck-btn deck-btn-primary">Slide Mode</a>
      <a href="%s" class="deck-btn deck-btn-primary">Presenter</a>
    </div>
    <a href="%s" class="deck-btn deck-btn-secondary" target="_blank">Viewer</a>
  </div>
</div>`,
		html.EscapeString(deck.DisplayTitle()), typeClass, deck.Kind, deck.SlideCount,
		links.Slide, links.Presenter, links.Viewer)
}

// NoDecks is shown on the home page when the decks root is empty
const NoDecks = `
<div class="no-decks">
  <h2>No decks found</h2>
  <p>Add slide files to the decks directory to get started.</p>
</div>`

// Home renders the deck selection page
func Home(siteTitle, cards string) string {
	r := strings.NewReplacer(
		"{{SITE_TITLE}}", html.EscapeString(siteTitle),
		"{{DECK_CARDS}}", cards,
	)
	return r.Replace(homeTemplate)
}

// PrintSlide wraps one slide for the print page
func PrintSlide(content string) string {
	return `<div class="print-slide">` + content + "</div>\n"
}

// Print renders every slide of a deck on one page
func Print(title, slides string) string {
	r := strings.NewReplacer(
		"{{DECK_TITLE}}", html.EscapeString(title),
		"{{ALL_SLIDES}}", slides,
	)
	return r.Replace(printTemplate)
}
