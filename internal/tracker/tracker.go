// Package tracker follows in-progress journeys, advancing legs and
// notifying travelers as they cross geofence thresholds.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/metrics"
	"github.com/tripwise/tripwise/internal/notify"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/realtime"
)

// Default timings.
const (
	DefaultTickInterval = 10 * time.Second
	DefaultRatingDelay  = 5 * time.Second
)

// Geofence thresholds in meters.
const (
	ArrivalRadiusM          = 100
	ApproachingStopRadiusM  = 300
	TransferImminentRadiusM = 500
	DestinationAlertRadiusM = 1000
	TransferAlertRadiusM    = 2000
)

// Config holds dependencies and timings for a Tracker.
type Config struct {
	Journeys    journey.Repository
	Positions   position.Cache
	Pusher      notify.Pusher
	Broadcaster realtime.Broadcaster
	Metrics     *metrics.Collector
	Logger      zerolog.Logger

	// TickInterval is the period between evaluations of one journey.
	// Default: 10 seconds
	TickInterval time.Duration

	// RatingDelay is the wait between arrival and the rating request.
	// Zero sends the request immediately. Negative uses the default.
	RatingDelay time.Duration
}

// Tracker runs one tracking task per in-progress journey.
type Tracker struct {
	journeys    journey.Repository
	positions   position.Cache
	pusher      notify.Pusher
	broadcaster realtime.Broadcaster
	metrics     *metrics.Collector
	logger      zerolog.Logger

	interval    time.Duration
	ratingDelay time.Duration
	now         func() time.Time

	supervisor *Supervisor
}

// New creates a new Tracker.
func New(cfg Config) *Tracker {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ratingDelay := cfg.RatingDelay
	if ratingDelay < 0 {
		ratingDelay = DefaultRatingDelay
	}

	t := &Tracker{
		journeys:    cfg.Journeys,
		positions:   cfg.Positions,
		pusher:      cfg.Pusher,
		broadcaster: cfg.Broadcaster,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With().Str("component", "tracker").Logger(),
		interval:    interval,
		ratingDelay: ratingDelay,
		now:         time.Now,
	}
	t.supervisor = NewSupervisor(t.metrics.SetActiveJourneys)
	return t
}

// Start sends the journey_start notification and, when tracking is
// enabled, spawns the journey's task. A running task is replaced.
func (t *Tracker) Start(ctx context.Context, journeyID, travelerID string) error {
	j, err := t.journeys.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return err
	}

	if len(j.Legs) > 0 {
		first := j.Legs[0]
		t.push(ctx, j, notify.JourneyStart(j.TravelerID, j.ID, string(first.TransportMode),
			j.EstimatedMinFare, j.EstimatedMaxFare, j.TransferCount()))
	}

	if j.TrackingEnabled {
		t.spawn(j.ID)
	}
	return nil
}

// Stop cancels the journey's task and disables tracking so the journey is
// not resumed after a restart. The journey status is unchanged.
// journey_stopped is sent only when a task was actually running and the
// journey is still in progress.
func (t *Tracker) Stop(ctx context.Context, journeyID, travelerID string) error {
	if _, err := t.journeys.GetByTravelerAndID(ctx, travelerID, journeyID); err != nil {
		return err
	}

	stopped := t.supervisor.Cancel(journeyID)

	// The cancelled task may have written a newer state, such as completion,
	// while Cancel waited for its tick.
	j, err := t.journeys.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return err
	}

	if j.TrackingEnabled {
		j.TrackingEnabled = false
		j.UpdatedAt = t.now()
		if err := t.journeys.Update(ctx, j); err != nil {
			return err
		}
	}

	if stopped && j.Status == journey.StatusInProgress {
		t.push(ctx, j, notify.JourneyStopped(j.TravelerID, j.ID))
		t.broadcast(ctx, j.ID, realtime.Event{Type: realtime.EventJourneyStopped})
		t.logger.Info().Str("journey_id", j.ID).Msg("tracking stopped")
	}
	return nil
}

// Halt cancels the journey's task without any side effects.
// Reports whether a task was running.
func (t *Tracker) Halt(journeyID string) bool {
	return t.supervisor.Cancel(journeyID)
}

// Running reports whether a task is running for the journey.
func (t *Tracker) Running(journeyID string) bool {
	return t.supervisor.Running(journeyID)
}

// ActiveCount returns the number of running tasks.
func (t *Tracker) ActiveCount() int {
	return t.supervisor.Count()
}

// Resume spawns tasks for every in-progress journey with tracking enabled.
// Returns the number of tasks spawned.
func (t *Tracker) Resume(ctx context.Context) (int, error) {
	journeys, err := t.journeys.ListByStatus(ctx, journey.StatusInProgress)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, j := range journeys {
		if !j.TrackingEnabled {
			continue
		}
		t.spawn(j.ID)
		n++
	}
	t.logger.Info().Int("journeys", n).Msg("resumed tracking")
	return n, nil
}

// Shutdown cancels every task and pending rating request and waits for them.
func (t *Tracker) Shutdown() {
	t.supervisor.Shutdown()
}

func (t *Tracker) spawn(journeyID string) {
	t.supervisor.Spawn(journeyID, func(ctx context.Context) {
		t.run(ctx, journeyID)
	})
}

func (t *Tracker) run(ctx context.Context, journeyID string) {
	logger := t.logger.With().Str("journey_id", journeyID).Logger()
	logger.Debug().Dur("interval", t.interval).Msg("tracking task started")
	defer func() { logger.Debug().Msg("tracking task exited") }()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.safeTick(ctx, journeyID, logger) {
				return
			}
		}
	}
}

// safeTick runs one tick, recovering panics so the task keeps running.
func (t *Tracker) safeTick(ctx context.Context, journeyID string, logger zerolog.Logger) bool {
	var (
		done bool
		err  error
		c    panics.Catcher
	)
	c.Try(func() { done, err = t.Tick(ctx, journeyID) })

	if r := c.Recovered(); r != nil {
		logger.Error().Err(r.AsError()).Msg("tracker tick panicked")
		t.metrics.ObserveTick(metrics.TickError, 0)
		return false
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("tracker tick failed")
	}
	return done
}
