package tracker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/notify"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/realtime"
	"github.com/tripwise/tripwise/internal/segment"
	"github.com/tripwise/tripwise/internal/tracker"
	"github.com/tripwise/tripwise/pkg/geo"
)

const travelerID = "trv_test"

var (
	originPoint   = geo.Point{Lat: 6.6018, Lon: 3.3515}
	transferPoint = geo.Point{Lat: 6.5550, Lon: 3.3430}
	destPoint     = geo.Point{Lat: 6.4520, Lon: 3.3890}
)

type recordingPusher struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (p *recordingPusher) Push(_ context.Context, n notify.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return p.err
}

func (p *recordingPusher) types() []notify.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Type, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Type)
	}
	return out
}

func (p *recordingPusher) count(t notify.Type) int {
	n := 0
	for _, got := range p.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (p *recordingPusher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (b *recordingBroadcaster) PublishJourney(_ context.Context, _ string, e realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBroadcaster) PublishTraveler(_ context.Context, _ string, e realtime.Event) error {
	return b.PublishJourney(context.Background(), "", e)
}

func (b *recordingBroadcaster) count(t realtime.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) last() realtime.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

var errWriteFailed = errors.New("write failed")

// flakyRepo fails a number of UpdateWithLegs calls and can run a hook right
// after the next GetByTravelerAndID returns.
type flakyRepo struct {
	*journey.InMemoryRepository
	failWrites atomic.Int32

	mu       sync.Mutex
	afterGet func()
}

func newFlakyFixture(t *testing.T) (*fixture, *flakyRepo) {
	t.Helper()
	repo := &flakyRepo{InMemoryRepository: journey.NewInMemoryRepository()}
	return newFixture(t, tracker.Config{Journeys: repo}), repo
}

func (r *flakyRepo) UpdateWithLegs(ctx context.Context, j *journey.Journey, legs ...*journey.Leg) error {
	if r.failWrites.Load() > 0 {
		r.failWrites.Add(-1)
		return errWriteFailed
	}
	return r.InMemoryRepository.UpdateWithLegs(ctx, j, legs...)
}

func (r *flakyRepo) GetByTravelerAndID(ctx context.Context, travelerID, journeyID string) (*journey.Journey, error) {
	j, err := r.InMemoryRepository.GetByTravelerAndID(ctx, travelerID, journeyID)

	r.mu.Lock()
	hook := r.afterGet
	r.afterGet = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return j, err
}

func (r *flakyRepo) afterNextGet(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterGet = hook
}

type fixture struct {
	repo        *journey.InMemoryRepository
	positions   *position.MemoryCache
	pusher      *recordingPusher
	broadcaster *recordingBroadcaster
	tracker     *tracker.Tracker
}

func newFixture(t *testing.T, cfg tracker.Config) *fixture {
	t.Helper()
	f := &fixture{
		repo:        journey.NewInMemoryRepository(),
		positions:   position.NewMemoryCache(time.Hour),
		pusher:      &recordingPusher{},
		broadcaster: &recordingBroadcaster{},
	}
	if flaky, ok := cfg.Journeys.(*flakyRepo); ok {
		f.repo = flaky.InMemoryRepository
	} else {
		cfg.Journeys = f.repo
	}
	cfg.Positions = f.positions
	cfg.Pusher = f.pusher
	cfg.Broadcaster = f.broadcaster
	cfg.Logger = zerolog.Nop()
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Hour
	}
	f.tracker = tracker.New(cfg)
	t.Cleanup(f.tracker.Shutdown)
	return f
}

// twoLegJourney returns an in-progress journey whose first leg ends at the
// transfer point and whose second leg ends at the destination.
func twoLegJourney(id string) *journey.Journey {
	started := time.Now().Add(-30 * time.Minute)
	instruction := "Transfer at Oshodi"
	return &journey.Journey{
		ID:                   id,
		TravelerID:           travelerID,
		Origin:               journey.Endpoint{Name: "Ikeja", Point: originPoint},
		Destination:          journey.Endpoint{Name: "CMS", Point: destPoint},
		Status:               journey.StatusInProgress,
		ActualStartAt:        &started,
		EstimatedMinFare:     500,
		EstimatedMaxFare:     800,
		TrackingEnabled:      true,
		NotificationsEnabled: true,
		Legs: []journey.Leg{
			{
				ID:                  id + "_leg1",
				JourneyID:           id,
				Order:               1,
				TransportMode:       segment.ModeBus,
				Start:               journey.PlaceSnapshot{LocationID: "loc_ikeja", Name: "Ikeja", Point: originPoint},
				End:                 journey.PlaceSnapshot{LocationID: "loc_oshodi", Name: "Oshodi", Point: transferPoint},
				MinFare:             200,
				MaxFare:             300,
				Status:              journey.LegInProgress,
				ActualStartAt:       &started,
				IsTransferRequired:  true,
				TransferInstruction: &instruction,
				EstimatedWaitMin:    journey.DefaultTransferWaitMin,
			},
			{
				ID:            id + "_leg2",
				JourneyID:     id,
				Order:         2,
				TransportMode: segment.ModeMinibus,
				Start:         journey.PlaceSnapshot{LocationID: "loc_oshodi", Name: "Oshodi", Point: transferPoint},
				End:           journey.PlaceSnapshot{LocationID: "loc_cms", Name: "CMS", Point: destPoint},
				MinFare:       300,
				MaxFare:       500,
				Status:        journey.LegPending,
			},
		},
	}
}

// onLastLeg moves j past its transfer so the second leg is current.
func onLastLeg(j *journey.Journey) *journey.Journey {
	done := j.ActualStartAt.Add(15 * time.Minute)
	j.Legs[0].Status = journey.LegCompleted
	j.Legs[0].ActualEndAt = &done
	j.Legs[1].Status = journey.LegInProgress
	j.Legs[1].ActualStartAt = &done
	return j
}

func (f *fixture) create(t *testing.T, j *journey.Journey) {
	t.Helper()
	require.NoError(t, f.repo.Create(context.Background(), j))
}

func (f *fixture) moveTo(t *testing.T, p geo.Point) {
	t.Helper()
	require.NoError(t, f.positions.Set(context.Background(), travelerID, position.Position{
		Lat:        p.Lat,
		Lon:        p.Lon,
		RecordedAt: time.Now(),
	}))
}

func (f *fixture) tick(t *testing.T, journeyID string) bool {
	t.Helper()
	done, err := f.tracker.Tick(context.Background(), journeyID)
	require.NoError(t, err)
	return done
}

func (f *fixture) load(t *testing.T, journeyID string) *journey.Journey {
	t.Helper()
	j, err := f.repo.Get(context.Background(), journeyID)
	require.NoError(t, err)
	return j
}
