package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/middleware"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/repository"
	"github.com/rahulm/quickserve/internal/service"
)

// AdminHandler serves the admin dashboard. All routes sit behind the
// RequireAdmin middleware.
type AdminHandler struct {
	admin     *repository.AdminRepository
	bookings  *repository.BookingRepository
	providers *repository.ProviderRepository
	bookSvc   *service.BookingService
	log       zerolog.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(
	admin *repository.AdminRepository,
	bookings *repository.BookingRepository,
	providers *repository.ProviderRepository,
	bookSvc *service.BookingService,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		bookings:  bookings,
		providers: providers,
		bookSvc:   bookSvc,
		log:       log,
	}
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListUsers handles GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	users, err := h.admin.ListUsers(r.Context(), skip, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": users, "count": len(users)})
}

// ListBookings handles GET /api/v1/admin/bookings?status=
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	var status *model.BookingStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := model.BookingStatus(v)
		status = &s
	}
	skip, limit := pagination(r)

	bookings, err := h.bookings.ListAll(r.Context(), status, skip, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": bookings, "count": len(bookings)})
}

// UpdateBookingStatus handles PATCH /api/v1/admin/bookings/{id}/status
func (h *AdminHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
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

	booking, err := h.bookSvc.UpdateStatus(r.Context(), userID, true, id, req.Status)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// ListProviders handles GET /api/v1/admin/providers
func (h *AdminHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	providers, err := h.providers.List(r.Context(), false, skip, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": providers, "count": len(providers)})
}
