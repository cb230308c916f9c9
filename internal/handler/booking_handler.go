package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/middleware"
	"github.com/rahulm/quickserve/internal/service"
)

// BookingHandler handles the customer-facing booking endpoints.
type BookingHandler struct {
	svc *service.BookingService
	log zerolog.Logger
}

// NewBookingHandler creates a booking handler.
func NewBookingHandler(svc *service.BookingService, log zerolog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, log: log}
}

type createBookingRequest struct {
	ServiceID           uuid.UUID `json:"service_id"`
	ServiceDate         string    `json:"service_date"`
	ServiceTime         string    `json:"service_time"`
	Location            string    `json:"location"`
	Latitude            *float64  `json:"latitude,omitempty"`
	Longitude           *float64  `json:"longitude,omitempty"`
	Pincode             *string   `json:"pincode,omitempty"`
	SpecialInstructions *string   `json:"special_instructions,omitempty"`
	EstimatedPrice      *float64  `json:"estimated_price,omitempty"`
}

// Create handles POST /api/v1/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Location == "" || req.ServiceTime == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location and service_time are required"})
		return
	}
	serviceDate, err := time.Parse("2006-01-02", req.ServiceDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service_date must be YYYY-MM-DD"})
		return
	}

	booking, err := h.svc.Create(r.Context(), userID, service.CreateBookingInput{
		ServiceID:           req.ServiceID,
		ServiceDate:         serviceDate,
		ServiceTime:         req.ServiceTime,
		Location:            req.Location,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		Pincode:             req.Pincode,
		SpecialInstructions: req.SpecialInstructions,
		EstimatedPrice:      req.EstimatedPrice,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// List handles GET /api/v1/bookings?status=&skip=&limit=
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	var status *string
	if v := r.URL.Query().Get("status"); v != "" {
		status = &v
	}
	skip, limit := pagination(r)

	bookings, err := h.svc.List(r.Context(), userID, status, skip, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": bookings, "count": len(bookings)})
}

// Get handles GET /api/v1/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid booking id"})
		return
	}

	booking, err := h.svc.Get(r.Context(), userID, middleware.IsAdmin(r.Context()), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/v1/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid booking id"})
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	booking, err := h.svc.UpdateStatus(r.Context(), userID, middleware.IsAdmin(r.Context()), id, req.Status)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// Cancel handles DELETE /api/v1/bookings/{id}
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid booking id"})
		return
	}

	booking, err := h.svc.Cancel(r.Context(), userID, middleware.IsAdmin(r.Context()), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type rateBookingRequest struct {
	Rating float64 `json:"rating"`
	Review *string `json:"review,omitempty"`
}

// Rate handles POST /api/v1/bookings/{id}/rating
func (h *BookingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid booking id"})
		return
	}

	var req rateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	booking, err := h.svc.Rate(r.Context(), userID, id, req.Rating, req.Review)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
