package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/middleware"
	"github.com/rahulm/quickserve/internal/service"
)

// AssignmentHandler handles the provider side of the offer queue. Routes use
// the app-facing name "assignments" for offers.
type AssignmentHandler struct {
	arbiter *service.Arbiter
	log     zerolog.Logger
}

// NewAssignmentHandler creates an assignment handler.
func NewAssignmentHandler(arbiter *service.Arbiter, log zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{arbiter: arbiter, log: log}
}

// ListPending handles GET /api/v1/assignments/pending
//
// Returns the caller's live offers with booking details; stale ones are
// expired before the listing.
func (h *AssignmentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	offers, err := h.arbiter.ListPending(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": offers, "count": len(offers)})
}

// Accept handles POST /api/v1/assignments/{id}/accept
//
// State conflicts (already taken, expired, booking won by another provider)
// come back as 200 with {success:false, error:...} so the app can react;
// they are expected outcomes of the race, not server errors.
func (h *AssignmentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	offerID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid assignment id"})
		return
	}

	decision, err := h.arbiter.Accept(r.Context(), userID, offerID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// Decline handles POST /api/v1/assignments/{id}/decline
func (h *AssignmentHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	offerID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid assignment id"})
		return
	}

	decision, err := h.arbiter.Decline(r.Context(), userID, offerID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
