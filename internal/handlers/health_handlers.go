package handlers

import (
	"net/http"
	"time"

	"turbo-slide/internal/emitter"
	"turbo-slide/internal/services"
)

// HealthHandler reports liveness
type HealthHandler struct {
	registry    *services.DeckRegistry
	broadcaster *services.Broadcaster
	mqtt        *emitter.MQTTEmitter
	started     time.Time
}

// NewHealthHandler creates a new health handler. mqtt may be nil.
func NewHealthHandler(registry *services.DeckRegistry, broadcaster *services.Broadcaster, mqtt *emitter.MQTTEmitter) *HealthHandler {
	return &HealthHandler{
		registry:    registry,
		broadcaster: broadcaster,
		mqtt:        mqtt,
		started:     time.Now(),
	}
}

// HealthResponse represents the health check body
type HealthResponse struct {
	Status        string         `json:"status"`
	Decks         int            `json:"decks"`
	Subscribers   int            `json:"subscribers"`
	UptimeSeconds int64          `json:"uptimeSeconds"`
	MQTT          *emitter.Stats `json:"mqtt,omitempty"`
}

// Health returns process status
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Decks:         len(h.registry.ListDecks()),
		Subscribers:   h.broadcaster.TotalSubscribers(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.mqtt != nil {
		stats := h.mqtt.Stats()
		resp.MQTT = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}
