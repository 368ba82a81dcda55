package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"turbo-slide/internal/services"
)

// ErrorResponse is the body of every JSON error
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(body)); err != nil {
		log.Printf("Failed to write page: %v", err)
	}
}

// deckErrorStatus maps a deck lookup error onto an HTTP status. Unsafe names
// are reported as missing so they never reveal anything about the tree.
func deckErrorStatus(err error) int {
	if errors.Is(err, services.ErrDeckNotFound) || errors.Is(err, services.ErrInvalidDeckName) {
		return http.StatusNotFound
	}
	log.Printf("Deck lookup failed: %v", err)
	return http.StatusInternalServerError
}

// isFrameRequest reports whether the client only wants the slide frame
func isFrameRequest(r *http.Request) bool {
	return r.Header.Get("Turbo-Frame") != ""
}
