package services

import (
	"fmt"
	"strings"
)

// Mode selects which surface a page is rendered for
type Mode string

const (
	ModeSlide     Mode = "slide"
	ModePresenter Mode = "presenter"
	ModeViewer    Mode = "viewer"
)

// NavigationRenderer builds prev/next controls and the URL grammar shared by
// every route. An empty deck name means the default deck, which keeps the
// short /slide, /presenter, /viewer URLs.
type NavigationRenderer struct{}

// NewNavigationRenderer creates a navigation renderer
func NewNavigationRenderer() *NavigationRenderer {
	return &NavigationRenderer{}
}

// Render returns the prev/next links for currentIndex. Boundary links are
// still emitted (possibly pointing at index 0 or total+1) but carry the
// disabled class; client scripts check that marker before following them.
func (n *NavigationRenderer) Render(currentIndex, totalSlides int, mode Mode, deck string) string {
	prevClass := "btn"
	if currentIndex == 1 {
		prevClass = "btn disabled"
	}
	nextClass := "btn"
	if currentIndex == totalSlides {
		nextClass = "btn disabled"
	}

	baseURL := n.baseURL(mode, deck)
	turboFrame := `data-turbo-frame="slide-content"`
	if mode == ModePresenter {
		turboFrame = ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n    <a href=\"%s/%d\" class=\"%s\" data-nav=\"prev\" %s>\n      &larr; Prev\n    </a>",
		baseURL, currentIndex-1, prevClass, turboFrame)
	fmt.Fprintf(&b, "\n    <a href=\"%s/%d\" class=\"%s\" data-nav=\"next\" %s>\n      Next &rarr;\n    </a>\n  ",
		baseURL, currentIndex+1, nextClass, turboFrame)
	return b.String()
}

func (n *NavigationRenderer) baseURL(mode Mode, deck string) string {
	segment := "slide"
	if mode == ModePresenter {
		segment = "presenter"
	}
	if deck != "" {
		return "/deck/" + deck + "/" + segment
	}
	return "/" + segment
}

// SlideURL returns the self-paced URL of a slide
func (n *NavigationRenderer) SlideURL(slideID int, deck string) string {
	return fmt.Sprintf("%s/%d", n.baseURL(ModeSlide, deck), slideID)
}

// PresenterURL returns the presenter URL of a slide
func (n *NavigationRenderer) PresenterURL(slideID int, deck string) string {
	return fmt.Sprintf("%s/%d", n.baseURL(ModePresenter, deck), slideID)
}

// ViewerURL returns the viewer URL, pinned to slideID when it is positive
func (n *NavigationRenderer) ViewerURL(deck string, slideID int) string {
	base := "/viewer"
	if deck != "" {
		base = "/deck/" + deck + "/viewer"
	}
	if slideID > 0 {
		return fmt.Sprintf("%s?slide=%d", base, slideID)
	}
	return base
}

// PrintURL returns the printable page of a deck
func (n *NavigationRenderer) PrintURL(deck string) string {
	if deck != "" {
		return "/deck/" + deck + "/print"
	}
	return "/print"
}

// EventsURL returns the push stream a viewer of deck should open
func (n *NavigationRenderer) EventsURL(deck string) string {
	if deck != "" {
		return "/deck/" + deck + "/events"
	}
	return "/events"
}

// ChangeSlideURL returns the API endpoint a presenter posts slide changes to
func (n *NavigationRenderer) ChangeSlideURL(slideID int, deck string) string {
	if deck != "" {
		return fmt.Sprintf("/api/deck/%s/slide/%d", deck, slideID)
	}
	return fmt.Sprintf("/api/slide/%d", slideID)
}
