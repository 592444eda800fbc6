package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/device"
)

// DeviceHandler handles device endpoints.
type DeviceHandler struct {
	devices *device.Service
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// ListDevices handles GET /v1/me/devices - list registered devices.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context(), GetTravelerID(r.Context()))
	if err != nil {
		response.InternalError(w, r, "internal server error")
		return
	}
	response.JSON(w, r, http.StatusOK, devices)
}

// RegisterDevice handles POST /v1/me/devices - register or update device.
// Responds 201 for a new token and 200 when the token was already known.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var input models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	d, created, err := h.devices.Register(r.Context(), GetTravelerID(r.Context()), &input)
	if err != nil {
		var verr *device.ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(w, r, "validation failed", verr.Errors)
			return
		}
		response.InternalError(w, r, "internal server error")
		return
	}

	if !created {
		response.JSON(w, r, http.StatusOK, d)
		return
	}
	response.Created(w, r, fmt.Sprintf("/v1/me/devices/%s", d.ID), d)
}

// UnregisterDevice handles DELETE /v1/me/devices/{deviceId} - unregister device.
func (h *DeviceHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if deviceID == "" {
		response.BadRequest(w, r, "deviceId is required", nil)
		return
	}

	if err := h.devices.Unregister(r.Context(), GetTravelerID(r.Context()), deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			response.NotFound(w, r, "device")
			return
		}
		response.InternalError(w, r, "internal server error")
		return
	}

	response.NoContent(w, r)
}
