package tracker

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/metrics"
	"github.com/tripwise/tripwise/internal/notify"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/realtime"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/pkg/geo"
)

var tracer = telemetry.Tracer("github.com/tripwise/tripwise/internal/tracker")

// Tick evaluates the journey once against the traveler's latest position.
// It reports done when the journey no longer needs tracking: it is missing,
// not in progress, or was completed by this tick.
func (t *Tracker) Tick(ctx context.Context, journeyID string) (done bool, err error) {
	ctx, span := tracer.Start(ctx, "tracker.tick")
	span.SetAttributes(attribute.String("journey.id", journeyID))
	start := time.Now()

	result := metrics.TickOK
	defer func() {
		if err != nil {
			result = metrics.TickError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("tick.result", result))
		span.End()
		t.metrics.ObserveTick(result, time.Since(start))
	}()

	j, err := t.journeys.Get(ctx, journeyID)
	if err != nil {
		if errors.Is(err, journey.ErrJourneyNotFound) {
			result = metrics.TickStopped
			return true, nil
		}
		return false, err
	}
	if j.Status != journey.StatusInProgress {
		result = metrics.TickStopped
		return true, nil
	}

	pos, err := t.positions.Get(ctx, j.TravelerID)
	if err != nil {
		if errors.Is(err, position.ErrNoPosition) {
			result = metrics.TickNoPosition
			return false, nil
		}
		return false, err
	}

	idx := j.CurrentLegIndex()
	if idx < 0 {
		result = metrics.TickNoLeg
		return false, nil
	}

	p := pos.Point()
	completed, err := t.evaluate(ctx, j, idx, p)
	if err != nil {
		return false, err
	}

	progress := Snapshot(j, p)
	t.broadcast(ctx, j.ID, realtime.Event{
		Type:     realtime.EventProgress,
		Progress: &progress,
		Position: pos,
	})

	if completed {
		t.finish(ctx, j)
		return true, nil
	}
	return false, nil
}

// evaluate applies the geofence rules for the current leg in priority
// order. State changes are persisted before notifications go out.
// Reports whether the journey was completed.
func (t *Tracker) evaluate(ctx context.Context, j *journey.Journey, idx int, p geo.Point) (bool, error) {
	leg := &j.Legs[idx]

	if stop, d, ok := nearestStop(leg, p); ok && d <= ApproachingStopRadiusM {
		t.push(ctx, j, notify.ApproachingStop(j.TravelerID, j.ID, stop.Name, d))
	}

	if idx < len(j.Legs)-1 {
		return false, t.evaluateTransfer(ctx, j, idx, p)
	}
	return t.evaluateDestination(ctx, j, idx, p)
}

// evaluateTransfer runs the transfer rules in order: early alert, imminent
// alert, then arrival. A jump straight to the transfer point still sends the
// imminent alert once before the leg advances.
func (t *Tracker) evaluateTransfer(ctx context.Context, j *journey.Journey, idx int, p geo.Point) error {
	leg := &j.Legs[idx]
	d := geo.Distance(p, leg.End.Point)

	if d > TransferImminentRadiusM && d <= TransferAlertRadiusM && !leg.TransferAlertSent {
		leg.TransferAlertSent = true
		if err := t.journeys.UpdateLeg(ctx, leg); err != nil {
			return err
		}
		t.push(ctx, j, notify.TransferAlert(j.TravelerID, j.ID, leg.End.Name, geo.EtaMinutes(d)))
	}

	if d <= TransferImminentRadiusM && !leg.TransferImminentSent {
		leg.TransferImminentSent = true
		if err := t.journeys.UpdateLeg(ctx, leg); err != nil {
			return err
		}
		t.push(ctx, j, notify.TransferImminent(j.TravelerID, j.ID, leg.End.Name))
	}

	if d <= ArrivalRadiusM {
		return t.advanceLeg(ctx, j, idx)
	}
	return nil
}

// advanceLeg completes the current leg and starts the next one in a single
// write. A failed write leaves both legs as they were for the next tick.
func (t *Tracker) advanceLeg(ctx context.Context, j *journey.Journey, idx int) error {
	now := t.now()
	cur := &j.Legs[idx]
	next := &j.Legs[idx+1]

	cur.Status = journey.LegCompleted
	cur.ActualEndAt = &now
	next.Status = journey.LegInProgress
	next.ActualStartAt = &now
	j.UpdatedAt = now
	if err := t.journeys.UpdateWithLegs(ctx, j, cur, next); err != nil {
		return err
	}
	t.metrics.Transition(metrics.TransitionLegAdvanced)

	t.push(ctx, j, notify.TransferComplete(j.TravelerID, j.ID, string(next.TransportMode), next.End.Name, next.Order))
	t.broadcast(ctx, j.ID, realtime.Event{
		Type: realtime.EventLegChanged,
		Data: map[string]string{
			"completedLegId": cur.ID,
			"currentLegId":   next.ID,
		},
	})
	t.logger.Info().Str("journey_id", j.ID).Int("leg", next.Order).Msg("leg advanced")
	return nil
}

func (t *Tracker) evaluateDestination(ctx context.Context, j *journey.Journey, idx int, p geo.Point) (bool, error) {
	leg := &j.Legs[idx]
	d := geo.Distance(p, j.Destination.Point)

	if d <= DestinationAlertRadiusM && !leg.DestinationAlertSent {
		leg.DestinationAlertSent = true
		if err := t.journeys.UpdateLeg(ctx, leg); err != nil {
			return false, err
		}
		t.push(ctx, j, notify.DestinationAlert(j.TravelerID, j.ID, j.Destination.Name, geo.EtaMinutes(d)))
	}

	if d <= ArrivalRadiusM {
		return true, t.complete(ctx, j, idx)
	}
	return false, nil
}

// complete marks the last leg and the journey completed and notifies the traveler.
func (t *Tracker) complete(ctx context.Context, j *journey.Journey, idx int) error {
	now := t.now()
	leg := &j.Legs[idx]

	leg.Status = journey.LegCompleted
	leg.ActualEndAt = &now

	duration := 0
	if j.ActualStartAt != nil {
		duration = int(math.Ceil(now.Sub(*j.ActualStartAt).Minutes()))
	}
	fare := j.AverageFare()

	j.Status = journey.StatusCompleted
	j.ActualEndAt = &now
	j.ActualDurationMin = &duration
	j.TotalFare = &fare
	j.UpdatedAt = now
	if err := t.journeys.UpdateWithLegs(ctx, j, leg); err != nil {
		return err
	}
	t.metrics.Transition(metrics.TransitionJourneyCompleted)

	t.push(ctx, j, notify.JourneyComplete(j.TravelerID, j.ID, j.Destination.Name, duration, fare))
	t.logger.Info().Str("journey_id", j.ID).Int("duration_min", duration).Msg("journey completed")
	return nil
}

// finish runs the post-arrival steps once the progress broadcast is out.
func (t *Tracker) finish(ctx context.Context, j *journey.Journey) {
	t.broadcast(ctx, j.ID, realtime.Event{Type: realtime.EventJourneyCompleted})

	if err := t.positions.Clear(ctx, j.TravelerID); err != nil {
		t.logger.Warn().Err(err).Str("journey_id", j.ID).Msg("failed to clear position")
	}
	if err := t.positions.ClearActiveJourney(ctx, j.TravelerID); err != nil {
		t.logger.Warn().Err(err).Str("journey_id", j.ID).Msg("failed to clear active journey")
	}

	rating := notify.RatingRequest(j.TravelerID, j.ID)
	if t.ratingDelay == 0 {
		t.push(ctx, j, rating)
		return
	}

	delay := t.ratingDelay
	t.supervisor.Go(func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			t.push(ctx, j, rating)
		}
	})
}

// push sends n unless the traveler turned notifications off.
// Delivery failures are logged and never roll back state.
func (t *Tracker) push(ctx context.Context, j *journey.Journey, n notify.Notification) {
	if !j.NotificationsEnabled || t.pusher == nil {
		return
	}
	if err := t.pusher.Push(ctx, n); err != nil {
		event := t.logger.Warn()
		if errors.Is(err, notify.ErrNoDevices) {
			event = t.logger.Debug()
		}
		event.Err(err).Str("journey_id", j.ID).Str("type", string(n.Type)).Msg("notification not delivered")
		return
	}
	t.metrics.NotificationSent(string(n.Type))
}

// broadcast publishes an event on the journey channel. Failures are logged.
func (t *Tracker) broadcast(ctx context.Context, journeyID string, event realtime.Event) {
	if t.broadcaster == nil {
		return
	}
	event.JourneyID = journeyID
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}
	if err := t.broadcaster.PublishJourney(ctx, journeyID, event); err != nil {
		t.metrics.BroadcastFailed()
		t.logger.Warn().Err(err).Str("journey_id", journeyID).Str("event", string(event.Type)).Msg("broadcast failed")
	}
}
