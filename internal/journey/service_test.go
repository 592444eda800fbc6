package journey_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/realtime"
	"github.com/tripwise/tripwise/internal/route"
	"github.com/tripwise/tripwise/internal/segment"
)

var errWriteFailed = errors.New("write failed")

// failingRepo fails the next UpdateWithLegs when failNext is set.
type failingRepo struct {
	*journey.InMemoryRepository
	failNext atomic.Bool
}

func (r *failingRepo) UpdateWithLegs(ctx context.Context, j *journey.Journey, legs ...*journey.Leg) error {
	if r.failNext.CompareAndSwap(true, false) {
		return errWriteFailed
	}
	return r.InMemoryRepository.UpdateWithLegs(ctx, j, legs...)
}

type fakeTracker struct {
	mu      sync.Mutex
	started []string
	stopped []string
	halted  []string

	// onHalt stands in for a tick that finishes while Halt waits.
	onHalt func(journeyID string)
}

func (f *fakeTracker) Start(_ context.Context, journeyID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, journeyID)
	return nil
}

func (f *fakeTracker) Stop(_ context.Context, journeyID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, journeyID)
	return nil
}

func (f *fakeTracker) Halt(journeyID string) bool {
	f.mu.Lock()
	f.halted = append(f.halted, journeyID)
	onHalt := f.onHalt
	f.mu.Unlock()

	if onHalt != nil {
		onHalt(journeyID)
	}
	return true
}

type serviceFixture struct {
	repo      *journey.InMemoryRepository
	store     *failingRepo
	positions *position.MemoryCache
	broker    *realtime.Broker
	tracker   *fakeTracker
	svc       *journey.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	catalog := segment.NewInMemoryRepository()
	segment.SeedLagos(catalog)

	f := &serviceFixture{
		repo:      journey.NewInMemoryRepository(),
		positions: position.NewMemoryCache(0),
		broker:    realtime.NewBroker(),
		tracker:   &fakeTracker{},
	}
	f.store = &failingRepo{InMemoryRepository: f.repo}
	f.svc = journey.NewService(journey.ServiceConfig{
		Repository:  f.store,
		Composer:    route.NewComposer(catalog),
		Finder:      route.NewCatalogFinder(route.FinderConfig{Catalog: catalog, Logger: zerolog.Nop()}),
		Positions:   f.positions,
		Broadcaster: f.broker,
		Tracker:     f.tracker,
		Logger:      zerolog.Nop(),
	})
	return f
}

func ikejaToCMS() *models.JourneyCreateRequest {
	return &models.JourneyCreateRequest{
		Origin:      models.JourneyEndpoint{Name: "Ikeja Along", Point: models.Point{Lat: 6.6015, Lon: 3.3512}},
		Destination: models.JourneyEndpoint{Name: "CMS", Point: models.Point{Lat: 6.4522, Lon: 3.3893}},
	}
}

func (f *serviceFixture) createStarted(t *testing.T) *models.Journey {
	t.Helper()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "trv_1", ikejaToCMS())
	require.NoError(t, err)
	started, err := f.svc.Start(ctx, "trv_1", created.ID, nil)
	require.NoError(t, err)
	return started
}

func TestService_Create_FindsRoute(t *testing.T) {
	f := newServiceFixture(t)

	j, err := f.svc.Create(context.Background(), "trv_1", ikejaToCMS())
	require.NoError(t, err)

	require.NotNil(t, j.RouteID)
	assert.Equal(t, "route_ikeja_cms", *j.RouteID)
	assert.Equal(t, "planned", j.Status)
	assert.True(t, j.TrackingEnabled)
	assert.True(t, j.NotificationsEnabled)
	require.Len(t, j.Legs, 3)
	assert.Equal(t, "Palmgrove", j.Legs[1].Stops[0].Name)
	assert.NotEmpty(t, j.Legs[0].Polyline)

	stored, err := f.repo.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, "trv_1", stored.TravelerID)
}

func TestService_Create_ExplicitRouteAndToggles(t *testing.T) {
	f := newServiceFixture(t)
	input := ikejaToCMS()
	routeID := "route_oshodi_cms"
	off := false
	input.RouteID = &routeID
	input.TrackingEnabled = &off

	j, err := f.svc.Create(context.Background(), "trv_1", input)
	require.NoError(t, err)

	assert.Equal(t, routeID, *j.RouteID)
	assert.Len(t, j.Legs, 2)
	assert.False(t, j.TrackingEnabled)
	assert.True(t, j.NotificationsEnabled)
}

func TestService_Create_Errors(t *testing.T) {
	f := newServiceFixture(t)

	t.Run("no candidates", func(t *testing.T) {
		input := ikejaToCMS()
		input.Destination.Point = models.Point{Lat: 6.6000, Lon: 3.5000}

		_, err := f.svc.Create(context.Background(), "trv_1", input)
		assert.ErrorIs(t, err, journey.ErrNoRouteCandidates)
	})

	t.Run("unknown route", func(t *testing.T) {
		input := ikejaToCMS()
		routeID := "route_missing"
		input.RouteID = &routeID

		_, err := f.svc.Create(context.Background(), "trv_1", input)
		assert.ErrorIs(t, err, route.ErrNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		input := ikejaToCMS()
		input.Origin.Name = " "
		input.Destination.Point.Lat = 95

		_, err := f.svc.Create(context.Background(), "trv_1", input)

		var verr *journey.ValidationError
		require.True(t, errors.As(err, &verr))
		fields := make([]string, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			fields = append(fields, fe.Field)
		}
		assert.ElementsMatch(t, []string{"origin.name", "destination.point.lat"}, fields)
	})
}

func TestService_Start(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "trv_1", ikejaToCMS())
	require.NoError(t, err)

	started, err := f.svc.Start(ctx, "trv_1", created.ID, &models.JourneyStartRequest{
		Position: &models.PositionUpdate{Lat: 6.6018, Lon: 3.3515},
	})
	require.NoError(t, err)

	assert.Equal(t, "in_progress", started.Status)
	assert.NotNil(t, started.ActualStartAt)
	assert.Equal(t, "in_progress", started.Legs[0].Status)
	assert.NotNil(t, started.Legs[0].ActualStartAt)
	assert.Equal(t, "pending", started.Legs[1].Status)
	assert.Equal(t, []string{created.ID}, f.tracker.started)

	active, err := f.positions.GetActiveJourney(ctx, "trv_1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, active)

	pos, err := f.positions.Get(ctx, "trv_1")
	require.NoError(t, err)
	assert.InDelta(t, 6.6018, pos.Lat, 1e-9)

	stored, err := f.repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, journey.LegInProgress, stored.Legs[0].Status)

	_, err = f.svc.Start(ctx, "trv_1", created.ID, nil)
	assert.ErrorIs(t, err, journey.ErrInvalidState)
}

func TestService_Start_FailedWriteCanBeRetried(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "trv_1", ikejaToCMS())
	require.NoError(t, err)

	f.store.failNext.Store(true)
	_, err = f.svc.Start(ctx, "trv_1", created.ID, nil)
	require.ErrorIs(t, err, errWriteFailed)

	stored, err := f.repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, journey.StatusPlanned, stored.Status)
	assert.Equal(t, journey.LegPending, stored.Legs[0].Status)
	assert.Empty(t, f.tracker.started)

	started, err := f.svc.Start(ctx, "trv_1", created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", started.Status)
	assert.Equal(t, "in_progress", started.Legs[0].Status)
	assert.Equal(t, []string{created.ID}, f.tracker.started)
}

func TestService_Start_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	created, err := f.svc.Create(context.Background(), "trv_1", ikejaToCMS())
	require.NoError(t, err)

	_, err = f.svc.Start(context.Background(), "trv_2", created.ID, nil)
	assert.ErrorIs(t, err, journey.ErrJourneyNotFound)
	assert.Empty(t, f.tracker.started)
}

func TestService_UpdateLocation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	j := f.createStarted(t)

	journeyCh := f.broker.Subscribe(realtime.JourneyChannel(j.ID))
	travelerCh := f.broker.Subscribe(realtime.TravelerChannel("trv_1"))

	speed := 4.2
	require.NoError(t, f.svc.UpdateLocation(ctx, "trv_1", j.ID, &models.PositionUpdate{Lat: 6.58, Lon: 3.35, Speed: &speed}))

	pos, err := f.positions.Get(ctx, "trv_1")
	require.NoError(t, err)
	assert.InDelta(t, 6.58, pos.Lat, 1e-9)
	require.NotNil(t, pos.Speed)
	assert.InDelta(t, 4.2, *pos.Speed, 1e-9)

	require.Len(t, journeyCh, 1)
	require.Len(t, travelerCh, 1)
	msg := <-journeyCh
	assert.Equal(t, realtime.EventLocation, msg.Type)
}

func TestService_UpdateLocation_Errors(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "trv_1", ikejaToCMS())
	require.NoError(t, err)

	err = f.svc.UpdateLocation(ctx, "trv_1", created.ID, &models.PositionUpdate{Lat: 6.58, Lon: 3.35})
	assert.ErrorIs(t, err, journey.ErrInvalidState)

	err = f.svc.UpdateLocation(ctx, "trv_1", created.ID, &models.PositionUpdate{Lat: 6.58, Lon: 200})
	var verr *journey.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "lon", verr.Errors[0].Field)

	err = f.svc.UpdateLocation(ctx, "trv_1", "jny_missing", &models.PositionUpdate{Lat: 6.58, Lon: 3.35})
	assert.ErrorIs(t, err, journey.ErrJourneyNotFound)
}

func TestService_Stop(t *testing.T) {
	f := newServiceFixture(t)
	j := f.createStarted(t)

	got, err := f.svc.Stop(context.Background(), "trv_1", j.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{j.ID}, f.tracker.stopped)
	assert.Equal(t, "in_progress", got.Status)
}

func TestService_Cancel(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	j := f.createStarted(t)

	got, err := f.svc.Cancel(ctx, "trv_1", j.ID)
	require.NoError(t, err)

	assert.Equal(t, "cancelled", got.Status)
	assert.NotNil(t, got.ActualEndAt)
	assert.False(t, got.TrackingEnabled)
	for _, leg := range got.Legs {
		assert.Equal(t, "skipped", leg.Status)
	}
	assert.Equal(t, []string{j.ID}, f.tracker.halted)

	_, err = f.positions.GetActiveJourney(ctx, "trv_1")
	assert.ErrorIs(t, err, position.ErrNoActivePointer)

	_, err = f.svc.Cancel(ctx, "trv_1", j.ID)
	assert.ErrorIs(t, err, journey.ErrInvalidState)
}

func TestService_Cancel_KeepsCompletionFromHaltedTask(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	started := f.createStarted(t)

	f.tracker.onHalt = func(journeyID string) {
		j, err := f.repo.Get(ctx, journeyID)
		require.NoError(t, err)

		now := time.Now()
		legs := make([]*journey.Leg, 0, len(j.Legs))
		for i := range j.Legs {
			j.Legs[i].Status = journey.LegCompleted
			legs = append(legs, &j.Legs[i])
		}
		j.Status = journey.StatusCompleted
		j.ActualEndAt = &now
		require.NoError(t, f.repo.UpdateWithLegs(ctx, j, legs...))
	}

	_, err := f.svc.Cancel(ctx, "trv_1", started.ID)
	assert.ErrorIs(t, err, journey.ErrInvalidState)

	stored, err := f.repo.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, journey.StatusCompleted, stored.Status)
	for _, leg := range stored.Legs {
		assert.Equal(t, journey.LegCompleted, leg.Status)
	}
}

func TestService_Cancel_FailedWriteChangesNothing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	started := f.createStarted(t)

	f.store.failNext.Store(true)
	_, err := f.svc.Cancel(ctx, "trv_1", started.ID)
	require.ErrorIs(t, err, errWriteFailed)

	stored, err := f.repo.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, journey.StatusInProgress, stored.Status)
	assert.Equal(t, journey.LegInProgress, stored.Legs[0].Status)
	assert.Equal(t, journey.LegPending, stored.Legs[1].Status)
}

func TestService_GetActive(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetActive(ctx, "trv_1")
	assert.ErrorIs(t, err, journey.ErrNoActiveJourney)

	j := f.createStarted(t)

	got, err := f.svc.GetActive(ctx, "trv_1")
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)

	require.NoError(t, f.positions.ClearActiveJourney(ctx, "trv_1"))
	got, err = f.svc.GetActive(ctx, "trv_1")
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
}

func TestService_List(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createStarted(t)
	_, err := f.svc.Create(ctx, "trv_1", ikejaToCMS())
	require.NoError(t, err)

	all, err := f.svc.List(ctx, "trv_1", 0, "")
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, journey.DefaultListLimit, all.Meta.Limit)

	planned, err := f.svc.List(ctx, "trv_1", 500, "planned")
	require.NoError(t, err)
	assert.Len(t, planned.Items, 1)
	assert.Equal(t, journey.MaxListLimit, planned.Meta.Limit)

	_, err = f.svc.List(ctx, "trv_1", 10, "lost")
	var verr *journey.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestService_Rate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	j := f.createStarted(t)

	_, err := f.svc.Rate(ctx, "trv_1", j.ID, &models.JourneyRateRequest{Rating: 4})
	assert.ErrorIs(t, err, journey.ErrNotCompleted)

	stored, err := f.repo.Get(ctx, j.ID)
	require.NoError(t, err)
	stored.Status = journey.StatusCompleted
	require.NoError(t, f.repo.Update(ctx, stored))

	_, err = f.svc.Rate(ctx, "trv_1", j.ID, &models.JourneyRateRequest{Rating: 6})
	var verr *journey.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "rating", verr.Errors[0].Field)

	feedback := "  Smooth ride, driver was friendly  "
	got, err := f.svc.Rate(ctx, "trv_1", j.ID, &models.JourneyRateRequest{Rating: 5, Feedback: &feedback})
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 5, *got.Rating)
	assert.Equal(t, "Smooth ride, driver was friendly", *got.Feedback)

	_, err = f.svc.Rate(ctx, "trv_1", "jny_missing", &models.JourneyRateRequest{Rating: 5})
	assert.ErrorIs(t, err, journey.ErrJourneyNotFound)
}
