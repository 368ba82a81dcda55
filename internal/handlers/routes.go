package handlers

import (
	"github.com/gorilla/mux"

	"turbo-slide/internal/metrics"
)

// SetupRoutes wires every handler onto a router
func SetupRoutes(slides *SlideHandler, api *APIHandler, events *EventsHandler, imports *ImportHandler, static *StaticHandler, health *HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware)

	// API
	router.HandleFunc("/api/slide/{id}", api.ChangeSlide).Methods("POST")
	router.HandleFunc("/api/deck/{name}/slide/{id}", api.ChangeDeckSlide).Methods("POST")
	router.HandleFunc("/api/decks", api.ListDecks).Methods("GET")
	router.HandleFunc("/api/deck/{name}", api.GetDeck).Methods("GET")
	router.HandleFunc("/api/imports", imports.TriggerImport).Methods("POST")
	router.HandleFunc("/api/imports", imports.ListImports).Methods("GET")
	router.HandleFunc("/api/imports/{deck}", imports.GetDeckImport).Methods("GET")

	// Push channels
	router.HandleFunc("/events", events.Events).Methods("GET")
	router.HandleFunc("/deck/{name}/events", events.DeckEvents).Methods("GET")
	router.HandleFunc("/ws", events.WebSocket)

	// Default deck pages
	router.HandleFunc("/", slides.Home).Methods("GET")
	router.HandleFunc("/slide", slides.RedirectSlide).Methods("GET")
	router.HandleFunc("/slide/{id}", slides.Slide).Methods("GET")
	router.HandleFunc("/presenter", slides.RedirectPresenter).Methods("GET")
	router.HandleFunc("/presenter/{id}", slides.Presenter).Methods("GET")
	router.HandleFunc("/viewer", slides.Viewer).Methods("GET")
	router.HandleFunc("/print", slides.Print).Methods("GET")

	// Named deck pages
	router.HandleFunc("/deck/{name}", slides.RedirectDeck).Methods("GET")
	router.HandleFunc("/deck/{name}/slide/{id}", slides.DeckSlide).Methods("GET")
	router.HandleFunc("/deck/{name}/presenter", slides.RedirectDeckPresenter).Methods("GET")
	router.HandleFunc("/deck/{name}/presenter/{id}", slides.DeckPresenter).Methods("GET")
	router.HandleFunc("/deck/{name}/viewer", slides.DeckViewer).Methods("GET")
	router.HandleFunc("/deck/{name}/print", slides.DeckPrint).Methods("GET")

	// Operations
	router.HandleFunc("/health", health.Health).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Static files
	router.PathPrefix(static.Prefix()).Handler(static.SlideImages())
	router.PathPrefix("/images/").Handler(static.Images())
	router.PathPrefix("/").Handler(static.Public())

	return router
}
