package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/realtime"
)

// DefaultPingInterval is how often an idle event stream sends a keepalive.
const DefaultPingInterval = 30 * time.Second

// JourneyReader looks up a journey owned by a traveler.
type JourneyReader interface {
	Get(ctx context.Context, travelerID, journeyID string) (*models.Journey, error)
}

// EventsHandler streams live journey events over server-sent events.
type EventsHandler struct {
	journeys     JourneyReader
	broker       *realtime.Broker
	pingInterval time.Duration
	logger       zerolog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(journeys JourneyReader, broker *realtime.Broker, pingInterval time.Duration, logger zerolog.Logger) *EventsHandler {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &EventsHandler{journeys: journeys, broker: broker, pingInterval: pingInterval, logger: logger}
}

// StreamJourney handles GET /v1/journey/{journeyId}/events.
func (h *EventsHandler) StreamJourney(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyId")

	// Ownership check before any stream headers go out.
	if _, err := h.journeys.Get(r.Context(), GetTravelerID(r.Context()), journeyID); err != nil {
		if errors.Is(err, journey.ErrJourneyNotFound) {
			response.NotFound(w, r, "journey")
			return
		}
		h.logger.Error().Err(err).Str("journey_id", journeyID).Msg("event stream lookup failed")
		response.InternalError(w, r, "internal server error")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, r, "streaming not supported")
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	channel := realtime.JourneyChannel(journeyID)
	ch := h.broker.Subscribe(channel)
	defer h.broker.Unsubscribe(channel, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
