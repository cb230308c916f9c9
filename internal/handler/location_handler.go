package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/pkg/geocode"
)

const locationSearchLimit = 5

// LocationHandler serves address autocomplete for the booking form.
type LocationHandler struct {
	searcher geocode.Searcher
	log      zerolog.Logger
}

// NewLocationHandler creates a location handler.
func NewLocationHandler(searcher geocode.Searcher, log zerolog.Logger) *LocationHandler {
	return &LocationHandler{searcher: searcher, log: log}
}

// Search handles GET /api/v1/location/search?q=
func (h *LocationHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if len(query) < 3 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q must be at least 3 characters"})
		return
	}

	results, err := h.searcher.Search(r.Context(), query, locationSearchLimit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}
