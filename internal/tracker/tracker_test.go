package tracker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/notify"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/realtime"
	"github.com/tripwise/tripwise/internal/tracker"
	"github.com/tripwise/tripwise/pkg/geo"
)

func TestStart_SendsJourneyStartAndSpawns(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	f.create(t, twoLegJourney("jny_start"))

	require.NoError(t, f.tracker.Start(context.Background(), "jny_start", travelerID))

	assert.True(t, f.tracker.Running("jny_start"))
	require.Equal(t, []notify.Type{notify.TypeJourneyStart}, f.pusher.types())
	assert.Contains(t, f.pusher.sent[0].Body, "bus")
	assert.Contains(t, f.pusher.sent[0].Body, "1 transfer")
}

func TestStart_TrackingDisabled(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	j := twoLegJourney("jny_notrack")
	j.TrackingEnabled = false
	f.create(t, j)

	require.NoError(t, f.tracker.Start(context.Background(), "jny_notrack", travelerID))

	assert.False(t, f.tracker.Running("jny_notrack"))
	assert.Equal(t, 1, f.pusher.count(notify.TypeJourneyStart))
}

func TestStart_NotFound(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	f.create(t, twoLegJourney("jny_owned"))

	err := f.tracker.Start(context.Background(), "jny_owned", "trv_other")
	assert.ErrorIs(t, err, journey.ErrJourneyNotFound)

	err = f.tracker.Start(context.Background(), "jny_nope", travelerID)
	assert.ErrorIs(t, err, journey.ErrJourneyNotFound)
}

func TestStart_ReplacesRunningTask(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	f.create(t, twoLegJourney("jny_twice"))

	require.NoError(t, f.tracker.Start(context.Background(), "jny_twice", travelerID))
	require.NoError(t, f.tracker.Start(context.Background(), "jny_twice", travelerID))

	assert.Equal(t, 1, f.tracker.ActiveCount())
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	f.create(t, twoLegJourney("jny_stop"))
	require.NoError(t, f.tracker.Start(context.Background(), "jny_stop", travelerID))
	f.pusher.reset()

	require.NoError(t, f.tracker.Stop(context.Background(), "jny_stop", travelerID))
	require.NoError(t, f.tracker.Stop(context.Background(), "jny_stop", travelerID))

	assert.False(t, f.tracker.Running("jny_stop"))
	assert.Equal(t, []notify.Type{notify.TypeJourneyStopped}, f.pusher.types())
	assert.Equal(t, 1, f.broadcaster.count(realtime.EventJourneyStopped))

	j := f.load(t, "jny_stop")
	assert.False(t, j.TrackingEnabled)
	assert.Equal(t, journey.StatusInProgress, j.Status)
}

func TestStop_KeepsCompletionFromFinalTick(t *testing.T) {
	f, repo := newFlakyFixture(t)
	f.create(t, onLastLeg(twoLegJourney("jny_race")))
	require.NoError(t, f.tracker.Start(context.Background(), "jny_race", travelerID))
	f.moveTo(t, destPoint)
	f.pusher.reset()

	// The task's last tick lands between Stop's lookup and the cancel.
	repo.afterNextGet(func() {
		done, err := f.tracker.Tick(context.Background(), "jny_race")
		assert.NoError(t, err)
		assert.True(t, done)
	})
	require.NoError(t, f.tracker.Stop(context.Background(), "jny_race", travelerID))

	j := f.load(t, "jny_race")
	assert.Equal(t, journey.StatusCompleted, j.Status)
	assert.NotNil(t, j.ActualEndAt)
	assert.NotNil(t, j.TotalFare)
	assert.False(t, j.TrackingEnabled)
	assert.Equal(t, journey.LegCompleted, j.Legs[1].Status)
	assert.Zero(t, f.pusher.count(notify.TypeJourneyStopped))
}

func TestStop_WithoutTask(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	f.create(t, twoLegJourney("jny_idle"))

	require.NoError(t, f.tracker.Stop(context.Background(), "jny_idle", travelerID))

	assert.Empty(t, f.pusher.types())
	assert.False(t, f.load(t, "jny_idle").TrackingEnabled)
}

func TestStop_NotFound(t *testing.T) {
	f := newFixture(t, tracker.Config{})

	err := f.tracker.Stop(context.Background(), "jny_missing", travelerID)
	assert.ErrorIs(t, err, journey.ErrJourneyNotFound)
}

func TestHalt(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	f.create(t, twoLegJourney("jny_halt"))
	require.NoError(t, f.tracker.Start(context.Background(), "jny_halt", travelerID))
	f.pusher.reset()

	assert.True(t, f.tracker.Halt("jny_halt"))
	assert.False(t, f.tracker.Halt("jny_halt"))
	assert.Empty(t, f.pusher.types())
}

func TestResume(t *testing.T) {
	f := newFixture(t, tracker.Config{})
	f.create(t, twoLegJourney("jny_r1"))
	f.create(t, twoLegJourney("jny_r2"))

	untracked := twoLegJourney("jny_r3")
	untracked.TrackingEnabled = false
	f.create(t, untracked)

	planned := twoLegJourney("jny_r4")
	planned.Status = journey.StatusPlanned
	f.create(t, planned)

	n, err := f.tracker.Resume(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.True(t, f.tracker.Running("jny_r1"))
	assert.True(t, f.tracker.Running("jny_r2"))
	assert.False(t, f.tracker.Running("jny_r3"))
	assert.False(t, f.tracker.Running("jny_r4"))
	assert.Empty(t, f.pusher.types())
}

func TestTask_CompletesAndExits(t *testing.T) {
	f := newFixture(t, tracker.Config{
		TickInterval: 5 * time.Millisecond,
		RatingDelay:  10 * time.Millisecond,
	})
	j := twoLegJourney("jny_run")
	j.Legs[0].Status = journey.LegCompleted
	j.Legs[1].Status = journey.LegInProgress
	f.create(t, j)
	f.moveTo(t, destPoint)

	require.NoError(t, f.tracker.Start(context.Background(), "jny_run", travelerID))

	assert.Eventually(t, func() bool {
		return !f.tracker.Running("jny_run")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, journey.StatusCompleted, f.load(t, "jny_run").Status)

	assert.Eventually(t, func() bool {
		return f.pusher.count(notify.TypeRatingRequest) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.pusher.count(notify.TypeJourneyComplete))
}

type panickingCache struct {
	*position.MemoryCache
	calls atomic.Int32
}

func (c *panickingCache) Get(context.Context, string) (*position.Position, error) {
	c.calls.Add(1)
	panic("corrupt cache entry")
}

func TestTask_RecoversFromPanics(t *testing.T) {
	repo := journey.NewInMemoryRepository()
	require.NoError(t, repo.Create(context.Background(), twoLegJourney("jny_panic")))
	cache := &panickingCache{MemoryCache: position.NewMemoryCache(0)}

	tr := tracker.New(tracker.Config{
		Journeys:     repo,
		Positions:    cache,
		Logger:       zerolog.Nop(),
		TickInterval: 2 * time.Millisecond,
	})
	t.Cleanup(tr.Shutdown)

	require.NoError(t, tr.Start(context.Background(), "jny_panic", travelerID))

	assert.Eventually(t, func() bool {
		return cache.calls.Load() >= 3
	}, time.Second, 2*time.Millisecond)
	assert.True(t, tr.Running("jny_panic"))
}

func TestShutdown_StopsAllTasks(t *testing.T) {
	f := newFixture(t, tracker.Config{TickInterval: time.Millisecond})
	f.create(t, twoLegJourney("jny_s1"))
	f.create(t, twoLegJourney("jny_s2"))
	require.NoError(t, f.tracker.Start(context.Background(), "jny_s1", travelerID))
	require.NoError(t, f.tracker.Start(context.Background(), "jny_s2", travelerID))

	f.tracker.Shutdown()

	assert.Equal(t, 0, f.tracker.ActiveCount())
}

func TestSnapshot(t *testing.T) {
	j := twoLegJourney("jny_snap")
	j.Legs[0].Stops = []journey.StopSnapshot{
		{PlaceSnapshot: journey.PlaceSnapshot{Name: "Far stop", Point: geo.Offset(transferPoint, 4000, 0)}, Order: 1},
		{PlaceSnapshot: journey.PlaceSnapshot{Name: "Near stop", Point: geo.Offset(transferPoint, 1000, 0)}, Order: 2},
	}
	p := geo.Offset(transferPoint, 1200, 0)

	got := tracker.Snapshot(j, p)

	assert.Equal(t, 0, got.CurrentLegIndex)
	assert.Equal(t, 0, got.CompletedLegs)
	assert.Equal(t, 2, got.TotalLegs)
	require.NotNil(t, got.NextStop)
	assert.Equal(t, "Near stop", got.NextStop.Name)
	assert.InDelta(t, 200, got.NextStop.DistanceM, 5)
	assert.Equal(t, 1, got.NextStop.EtaMin)
	require.NotNil(t, got.NextTransfer)
	assert.Equal(t, "Oshodi", got.NextTransfer.Name)
	assert.InDelta(t, 1200, got.NextTransfer.DistanceM, 10)
	assert.Equal(t, 5, got.NextTransfer.EtaMin)
	assert.Greater(t, got.DestinationDistanceM, 10000.0)
}

func TestSnapshot_LastLegHasNoTransfer(t *testing.T) {
	j := twoLegJourney("jny_snap_last")
	j.Legs[0].Status = journey.LegCompleted
	j.Legs[1].Status = journey.LegInProgress

	got := tracker.Snapshot(j, geo.Offset(destPoint, -400, 0))

	assert.Equal(t, 1, got.CurrentLegIndex)
	assert.Equal(t, 1, got.CompletedLegs)
	assert.Nil(t, got.NextTransfer)
	assert.Nil(t, got.NextStop)
	assert.InDelta(t, 400, got.DestinationDistanceM, 5)
	assert.Equal(t, 2, got.DestinationEtaMin)
}
