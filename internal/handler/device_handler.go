package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/middleware"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/repository"
)

// DeviceHandler registers push-notification tokens for the calling user.
type DeviceHandler struct {
	devices *repository.DeviceRepository
	log     zerolog.Logger
}

// NewDeviceHandler creates a device handler.
func NewDeviceHandler(devices *repository.DeviceRepository, log zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, log: log}
}

type registerDeviceRequest struct {
	FCMToken string `json:"fcm_token"`
	Platform string `json:"platform"`
}

// Register handles POST /api/v1/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil || req.FCMToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fcm_token is required"})
		return
	}
	if req.Platform == "" {
		req.Platform = "android"
	}

	device := &model.UserDevice{
		ID:       uuid.New(),
		UserID:   userID,
		FCMToken: req.FCMToken,
		Platform: req.Platform,
	}
	if err := h.devices.Upsert(r.Context(), device); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}
