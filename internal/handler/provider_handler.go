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

// ProviderHandler handles provider profiles, their service links, and the
// provider's assigned-booking listing.
type ProviderHandler struct {
	svc       *service.ProviderService
	providers *repository.ProviderRepository
	bookings  *repository.BookingRepository
	log       zerolog.Logger
}

// NewProviderHandler creates a provider handler.
func NewProviderHandler(
	svc *service.ProviderService,
	providers *repository.ProviderRepository,
	bookings *repository.BookingRepository,
	log zerolog.Logger,
) *ProviderHandler {
	return &ProviderHandler{svc: svc, providers: providers, bookings: bookings, log: log}
}

type providerProfileRequest struct {
	BusinessName    *string `json:"business_name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Address         *string `json:"address,omitempty"`
	City            *string `json:"city,omitempty"`
	Pincode         *string `json:"pincode,omitempty"`
	ExperienceYears *int    `json:"experience_years,omitempty"`
	IsAvailable     *bool   `json:"is_available,omitempty"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
}

func (r providerProfileRequest) toInput() service.ProviderProfileInput {
	return service.ProviderProfileInput{
		BusinessName:    r.BusinessName,
		Description:     r.Description,
		Email:           r.Email,
		Phone:           r.Phone,
		Address:         r.Address,
		City:            r.City,
		Pincode:         r.Pincode,
		ExperienceYears: r.ExperienceYears,
		IsAvailable:     r.IsAvailable,
		AvatarURL:       r.AvatarURL,
	}
}

// Register handles POST /api/v1/providers (provider self-registration).
func (h *ProviderHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	var req providerProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.BusinessName == nil || *req.BusinessName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "business_name is required"})
		return
	}

	provider, err := h.svc.Register(r.Context(), userID, req.toInput())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, provider)
}

// GetMe handles GET /api/v1/providers/me
func (h *ProviderHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	provider, err := h.svc.GetOwn(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

// UpdateMe handles PATCH /api/v1/providers/me
func (h *ProviderHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	var req providerProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	provider, err := h.svc.UpdateOwn(r.Context(), userID, req.toInput())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

// MyBookings handles GET /api/v1/providers/me/bookings
func (h *ProviderHandler) MyBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	provider, err := h.providers.GetByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	skip, limit := pagination(r)
	bookings, err := h.bookings.ListByProvider(r.Context(), provider.ID, skip, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": bookings, "count": len(bookings)})
}

// ─── Service links ──────────────────────────────────────────

type serviceLinkRequest struct {
	ServiceID   uuid.UUID `json:"service_id"`
	CustomPrice *float64  `json:"custom_price,omitempty"`
}

// ListMyServices handles GET /api/v1/providers/me/services
func (h *ProviderHandler) ListMyServices(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	provider, err := h.providers.GetByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	links, err := h.providers.ListServiceLinks(r.Context(), provider.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": links, "count": len(links)})
}

// AddMyService handles POST /api/v1/providers/me/services
func (h *ProviderHandler) AddMyService(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	var req serviceLinkRequest
	if err := decodeJSON(r, &req); err != nil || req.ServiceID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service_id is required"})
		return
	}

	provider, err := h.providers.GetByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	link := &model.ProviderService{
		ID:          uuid.New(),
		ProviderID:  provider.ID,
		ServiceID:   req.ServiceID,
		CustomPrice: req.CustomPrice,
	}
	if err := h.providers.AddServiceLink(r.Context(), link); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

type serviceLinkPriceRequest struct {
	CustomPrice *float64 `json:"custom_price"`
}

// UpdateMyService handles PATCH /api/v1/providers/me/services/{id}
func (h *ProviderHandler) UpdateMyService(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	linkID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid link id"})
		return
	}

	var req serviceLinkPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	provider, err := h.providers.GetByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.providers.UpdateServiceLinkPrice(r.Context(), provider.ID, linkID, req.CustomPrice); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveMyService handles DELETE /api/v1/providers/me/services/{id}
func (h *ProviderHandler) RemoveMyService(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	linkID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid link id"})
		return
	}

	provider, err := h.providers.GetByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.providers.RemoveServiceLink(r.Context(), provider.ID, linkID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ─── Public listing ─────────────────────────────────────────

// List handles GET /api/v1/providers?available=true
func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	onlyAvailable := r.URL.Query().Get("available") == "true"
	skip, limit := pagination(r)

	providers, err := h.providers.List(r.Context(), onlyAvailable, skip, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": providers, "count": len(providers)})
}

// Get handles GET /api/v1/providers/{id}
func (h *ProviderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid provider id"})
		return
	}

	provider, err := h.providers.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, provider)
}
