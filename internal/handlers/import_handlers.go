package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"turbo-slide/internal/models"
	"turbo-slide/internal/services"
)

// ImportHandler exposes the PDF import pipeline and its run ledger
type ImportHandler struct {
	importer  *services.PdfImporter
	importLog *services.ImportLog
}

// NewImportHandler creates a new import handler. Either dependency may be nil,
// in which case the matching routes answer 503.
func NewImportHandler(importer *services.PdfImporter, importLog *services.ImportLog) *ImportHandler {
	return &ImportHandler{
		importer:  importer,
		importLog: importLog,
	}
}

// ImportRunResponse represents the outcome of a triggered import pass
type ImportRunResponse struct {
	Success bool                  `json:"success"`
	Results []models.ImportResult `json:"results"`
}

// TriggerImport runs one import pass and waits for it
// POST /api/imports
func (h *ImportHandler) TriggerImport(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "PDF import is disabled")
		return
	}

	results, err := h.importer.RunImports(r.Context())
	if errors.Is(err, services.ErrImportInProgress) {
		writeError(w, http.StatusConflict, "Import already in progress")
		return
	}
	if err != nil {
		log.Printf("Failed to run imports: %v", err)
		writeError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	success := true
	for _, result := range results {
		if !result.Success {
			success = false
			break
		}
	}

	writeJSON(w, http.StatusOK, ImportRunResponse{
		Success: success,
		Results: results,
	})
}

// ListImports returns recent import runs, newest first
// GET /api/imports?limit={n}
func (h *ImportHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	if h.importLog == nil {
		writeError(w, http.StatusServiceUnavailable, "Import log is unavailable")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.importLog.List(limit)
	if err != nil {
		log.Printf("Failed to list import runs: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list import runs")
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

// GetDeckImport returns the most recent import run of a deck
// GET /api/imports/{deck}
func (h *ImportHandler) GetDeckImport(w http.ResponseWriter, r *http.Request) {
	if h.importLog == nil {
		writeError(w, http.StatusServiceUnavailable, "Import log is unavailable")
		return
	}

	run, err := h.importLog.LastForDeck(mux.Vars(r)["deck"])
	if errors.Is(err, services.ErrImportNotFound) {
		writeError(w, http.StatusNotFound, "No import recorded for deck")
		return
	}
	if err != nil {
		log.Printf("Failed to load import run: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load import run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}
