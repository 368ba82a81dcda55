package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"turbo-slide/internal/models"
	"turbo-slide/internal/services"
)

// APIHandler handles slide changes and deck listings
type APIHandler struct {
	resolver    *services.SlideResolver
	registry    *services.DeckRegistry
	broadcaster *services.Broadcaster
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(resolver *services.SlideResolver, registry *services.DeckRegistry, broadcaster *services.Broadcaster) *APIHandler {
	return &APIHandler{
		resolver:    resolver,
		registry:    registry,
		broadcaster: broadcaster,
	}
}

// ChangeSlideResponse represents a successful slide change
type ChangeSlideResponse struct {
	Success      bool `json:"success"`
	CurrentSlide int  `json:"currentSlide"`
}

// DeckStatus is a deck plus its live broadcast state
type DeckStatus struct {
	models.DeckInfo
	CurrentSlide int `json:"currentSlide"`
	Subscribers  int `json:"subscribers"`
}

// ChangeSlide moves the default deck's presenter cursor
// POST /api/slide/{id}
func (h *APIHandler) ChangeSlide(w http.ResponseWriter, r *http.Request) {
	h.changeSlide(w, r, h.registry.DefaultDeck())
}

// ChangeDeckSlide moves a named deck's presenter cursor
// POST /api/deck/{name}/slide/{id}
func (h *APIHandler) ChangeDeckSlide(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !h.registry.DeckExists(name) {
		writeError(w, http.StatusNotFound, "Deck not found")
		return
	}
	h.changeSlide(w, r, name)
}

func (h *APIHandler) changeSlide(w http.ResponseWriter, r *http.Request, deck string) {
	index, ok := services.ParseSlideIndex(mux.Vars(r)["id"])
	if !ok || !h.resolver.IsValidSlideIndex(deck, index) {
		writeError(w, http.StatusBadRequest, "Invalid slide ID")
		return
	}

	delivered := h.broadcaster.Broadcast(deck, index)
	log.Printf("Slide changed: deck=%s slide=%d delivered=%d", deck, index, delivered)

	writeJSON(w, http.StatusOK, ChangeSlideResponse{
		Success:      true,
		CurrentSlide: index,
	})
}

// ListDecks returns every deck
// GET /api/decks
func (h *APIHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.ListDecks())
}

// GetDeck returns one deck with its current slide
// GET /api/deck/{name}
func (h *APIHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, err := h.registry.GetDeckInfo(name)
	if err != nil {
		writeError(w, deckErrorStatus(err), "Deck not found")
		return
	}

	writeJSON(w, http.StatusOK, DeckStatus{
		DeckInfo:     *info,
		CurrentSlide: h.broadcaster.CurrentSlide(name),
		Subscribers:  h.broadcaster.SubscriberCount(name),
	})
}
