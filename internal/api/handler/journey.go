package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/route"
)

// JourneyHandler handles journey lifecycle endpoints.
type JourneyHandler struct {
	journeys *journey.Service
	logger   zerolog.Logger
}

// NewJourneyHandler creates a new JourneyHandler.
func NewJourneyHandler(journeys *journey.Service, logger zerolog.Logger) *JourneyHandler {
	return &JourneyHandler{journeys: journeys, logger: logger}
}

// CreateJourney handles POST /v1/journey - plan a journey.
func (h *JourneyHandler) CreateJourney(w http.ResponseWriter, r *http.Request) {
	travelerID := GetTravelerID(r.Context())

	var input models.JourneyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	j, err := h.journeys.Create(r.Context(), travelerID, &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, r, fmt.Sprintf("/v1/journey/%s", j.ID), j)
}

// ListJourneys handles GET /v1/journey - journey history.
func (h *JourneyHandler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	travelerID := GetTravelerID(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer"},
			})
			return
		}
		limit = n
	}

	journeys, err := h.journeys.List(r.Context(), travelerID, limit, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, journeys)
}

// GetJourney handles GET /v1/journey/{journeyId}.
func (h *JourneyHandler) GetJourney(w http.ResponseWriter, r *http.Request) {
	j, err := h.journeys.Get(r.Context(), GetTravelerID(r.Context()), chi.URLParam(r, "journeyId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, j)
}

// GetActiveJourney handles GET /v1/journey/active/current.
func (h *JourneyHandler) GetActiveJourney(w http.ResponseWriter, r *http.Request) {
	j, err := h.journeys.GetActive(r.Context(), GetTravelerID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, j)
}

// StartJourney handles POST /v1/journey/{journeyId}/start.
// The body is optional.
func (h *JourneyHandler) StartJourney(w http.ResponseWriter, r *http.Request) {
	var input models.JourneyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	j, err := h.journeys.Start(r.Context(), GetTravelerID(r.Context()), chi.URLParam(r, "journeyId"), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, j)
}

// UpdateLocation handles PUT /v1/journey/{journeyId}/location.
func (h *JourneyHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var input models.PositionUpdate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	err := h.journeys.UpdateLocation(r.Context(), GetTravelerID(r.Context()), chi.URLParam(r, "journeyId"), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// StopJourney handles PUT /v1/journey/{journeyId}/stop.
func (h *JourneyHandler) StopJourney(w http.ResponseWriter, r *http.Request) {
	j, err := h.journeys.Stop(r.Context(), GetTravelerID(r.Context()), chi.URLParam(r, "journeyId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, j)
}

// CancelJourney handles PUT /v1/journey/{journeyId}/cancel.
func (h *JourneyHandler) CancelJourney(w http.ResponseWriter, r *http.Request) {
	j, err := h.journeys.Cancel(r.Context(), GetTravelerID(r.Context()), chi.URLParam(r, "journeyId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, j)
}

// RateJourney handles POST /v1/journey/{journeyId}/rate.
func (h *JourneyHandler) RateJourney(w http.ResponseWriter, r *http.Request) {
	var input models.JourneyRateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	j, err := h.journeys.Rate(r.Context(), GetTravelerID(r.Context()), chi.URLParam(r, "journeyId"), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, j)
}

func (h *JourneyHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *journey.ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, r, "validation failed", verr.Errors)
	case errors.Is(err, journey.ErrJourneyNotFound):
		response.NotFound(w, r, "journey")
	case errors.Is(err, journey.ErrNoActiveJourney):
		response.NotFound(w, r, "no active journey")
	case errors.Is(err, route.ErrNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, journey.ErrNoRouteCandidates),
		errors.Is(err, route.ErrBadComposition):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, journey.ErrNotCompleted):
		response.BadRequest(w, r, "only completed journeys can be rated", nil)
	case errors.Is(err, journey.ErrInvalidState):
		response.Conflict(w, r, err.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("journey request failed")
		response.InternalError(w, r, "internal server error")
	}
}
