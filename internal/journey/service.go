package journey

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/realtime"
	"github.com/tripwise/tripwise/internal/route"
	"github.com/tripwise/tripwise/pkg/geo"
)

// Validation constants.
const (
	MaxNameLength     = 120
	MaxFeedbackLength = 1000
	DefaultListLimit  = 20
	MaxListLimit      = 100
)

// ValidationError represents journey field validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Tracker drives live progress for in-progress journeys.
type Tracker interface {
	// Start sends the start notification and begins tracking.
	Start(ctx context.Context, journeyID, travelerID string) error

	// Stop ends tracking with a notification. Idempotent.
	Stop(ctx context.Context, journeyID, travelerID string) error

	// Halt ends tracking silently. Reports whether a task was running.
	Halt(journeyID string) bool
}

// Composer resolves a route id into a composition.
type Composer interface {
	Compose(ctx context.Context, routeID string) (*route.Composition, error)
}

// ServiceConfig holds dependencies for the journey service.
type ServiceConfig struct {
	Repository  Repository
	Composer    Composer
	Finder      route.Finder
	Builder     *Builder
	Positions   position.Cache
	Broadcaster realtime.Broadcaster
	Tracker     Tracker
	Logger      zerolog.Logger
}

// Service provides journey lifecycle operations.
type Service struct {
	repo        Repository
	composer    Composer
	finder      route.Finder
	builder     *Builder
	positions   position.Cache
	broadcaster realtime.Broadcaster
	tracker     Tracker
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a new journey service.
func NewService(cfg ServiceConfig) *Service {
	builder := cfg.Builder
	if builder == nil {
		builder = NewBuilder()
	}
	return &Service{
		repo:        cfg.Repository,
		composer:    cfg.Composer,
		finder:      cfg.Finder,
		builder:     builder,
		positions:   cfg.Positions,
		broadcaster: cfg.Broadcaster,
		tracker:     cfg.Tracker,
		logger:      cfg.Logger.With().Str("component", "journey").Logger(),
		now:         time.Now,
	}
}

// Create plans a journey from an explicit route or the best matching one.
func (s *Service) Create(ctx context.Context, travelerID string, input *models.JourneyCreateRequest) (*models.Journey, error) {
	if fieldErrors := validateCreateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	origin := toEndpoint(input.Origin)
	destination := toEndpoint(input.Destination)

	routeID, err := s.selectRoute(ctx, input.RouteID, origin.Point, destination.Point)
	if err != nil {
		return nil, err
	}

	comp, err := s.composer.Compose(ctx, routeID)
	if err != nil {
		return nil, err
	}

	req := BuildRequest{
		Origin:               origin,
		Destination:          destination,
		TrackingEnabled:      boolOr(input.TrackingEnabled, true),
		NotificationsEnabled: boolOr(input.NotificationsEnabled, true),
	}
	if input.PlannedStartAt != nil {
		t := input.PlannedStartAt.Time()
		req.PlannedStartAt = &t
	}

	j, err := s.builder.Build(travelerID, req, comp)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("journey_id", j.ID).
		Str("route_id", routeID).
		Int("legs", len(j.Legs)).
		Msg("journey planned")

	result := toAPIJourney(j)
	return &result, nil
}

func (s *Service) selectRoute(ctx context.Context, explicit *string, origin, destination geo.Point) (string, error) {
	if explicit != nil && *explicit != "" {
		return *explicit, nil
	}
	if s.finder == nil {
		return "", ErrNoRouteCandidates
	}

	candidates, err := s.finder.FindRoutes(ctx, origin, destination)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", ErrNoRouteCandidates
	}
	return candidates[0], nil
}

// Start moves a planned journey in progress and begins tracking it.
func (s *Service) Start(ctx context.Context, travelerID, journeyID string, input *models.JourneyStartRequest) (*models.Journey, error) {
	j, err := s.repo.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return nil, err
	}

	if j.Status != StatusPlanned {
		return nil, ErrInvalidState
	}

	if input != nil && input.Position != nil {
		if fieldErrors := validatePosition(input.Position, "position"); len(fieldErrors) > 0 {
			return nil, &ValidationError{Errors: fieldErrors}
		}
	}

	now := s.now()
	j.Status = StatusInProgress
	j.ActualStartAt = &now
	j.UpdatedAt = now

	var changed []*Leg
	if len(j.Legs) > 0 {
		first := &j.Legs[0]
		first.Status = LegInProgress
		first.ActualStartAt = &now
		changed = append(changed, first)
	}
	if err := s.repo.UpdateWithLegs(ctx, j, changed...); err != nil {
		return nil, err
	}

	if input != nil && input.Position != nil {
		if err := s.positions.Set(ctx, travelerID, toPosition(input.Position, now)); err != nil {
			return nil, err
		}
	}
	if err := s.positions.SetActiveJourney(ctx, travelerID, j.ID); err != nil {
		return nil, err
	}

	if err := s.tracker.Start(ctx, j.ID, travelerID); err != nil {
		return nil, err
	}

	s.logger.Info().Str("journey_id", j.ID).Msg("journey started")

	result := toAPIJourney(j)
	return &result, nil
}

// UpdateLocation records the traveler's position for an in-progress journey
// and broadcasts it to live viewers.
func (s *Service) UpdateLocation(ctx context.Context, travelerID, journeyID string, input *models.PositionUpdate) error {
	if fieldErrors := validatePosition(input, ""); len(fieldErrors) > 0 {
		return &ValidationError{Errors: fieldErrors}
	}

	j, err := s.repo.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return err
	}
	if j.Status != StatusInProgress {
		return ErrInvalidState
	}

	now := s.now()
	pos := toPosition(input, now)
	if err := s.positions.Set(ctx, travelerID, pos); err != nil {
		return err
	}

	if s.broadcaster == nil {
		return nil
	}
	event := realtime.Event{
		Type:      realtime.EventLocation,
		JourneyID: j.ID,
		Timestamp: now,
		Position:  &pos,
	}
	if err := s.broadcaster.PublishTraveler(ctx, travelerID, event); err != nil {
		s.logger.Warn().Err(err).Str("journey_id", j.ID).Msg("failed to broadcast location to traveler channel")
	}
	if err := s.broadcaster.PublishJourney(ctx, j.ID, event); err != nil {
		s.logger.Warn().Err(err).Str("journey_id", j.ID).Msg("failed to broadcast location to journey channel")
	}
	return nil
}

// Stop ends live tracking. The journey keeps its status.
func (s *Service) Stop(ctx context.Context, travelerID, journeyID string) (*models.Journey, error) {
	if err := s.tracker.Stop(ctx, journeyID, travelerID); err != nil {
		return nil, err
	}
	return s.Get(ctx, travelerID, journeyID)
}

// Cancel abandons a planned or in-progress journey.
func (s *Service) Cancel(ctx context.Context, travelerID, journeyID string) (*models.Journey, error) {
	j, err := s.repo.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return nil, err
	}

	if !cancellable(j.Status) {
		return nil, ErrInvalidState
	}

	s.tracker.Halt(j.ID)

	// Reload: the halted task may have advanced or completed the journey.
	j, err = s.repo.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return nil, err
	}
	if !cancellable(j.Status) {
		return nil, ErrInvalidState
	}
	wasActive := j.Status == StatusInProgress

	now := s.now()
	j.Status = StatusCancelled
	j.ActualEndAt = &now
	j.TrackingEnabled = false
	j.UpdatedAt = now

	var skipped []*Leg
	for i := range j.Legs {
		leg := &j.Legs[i]
		if leg.Status != LegPending && leg.Status != LegInProgress {
			continue
		}
		leg.Status = LegSkipped
		skipped = append(skipped, leg)
	}
	if err := s.repo.UpdateWithLegs(ctx, j, skipped...); err != nil {
		return nil, err
	}

	if wasActive {
		s.clearActive(ctx, travelerID, j.ID)
	}

	s.logger.Info().Str("journey_id", j.ID).Msg("journey cancelled")

	result := toAPIJourney(j)
	return &result, nil
}

func cancellable(st Status) bool {
	return st == StatusPlanned || st == StatusInProgress
}

func (s *Service) clearActive(ctx context.Context, travelerID, journeyID string) {
	active, err := s.positions.GetActiveJourney(ctx, travelerID)
	if err != nil || active != journeyID {
		return
	}
	if err := s.positions.ClearActiveJourney(ctx, travelerID); err != nil {
		s.logger.Warn().Err(err).Str("journey_id", journeyID).Msg("failed to clear active journey")
	}
	if err := s.positions.Clear(ctx, travelerID); err != nil {
		s.logger.Warn().Err(err).Str("journey_id", journeyID).Msg("failed to clear position")
	}
}

// Get retrieves a journey owned by the traveler.
func (s *Service) Get(ctx context.Context, travelerID, journeyID string) (*models.Journey, error) {
	j, err := s.repo.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return nil, err
	}

	result := toAPIJourney(j)
	return &result, nil
}

// GetActive retrieves the traveler's in-progress journey.
// Falls back to the store when the active pointer is missing.
func (s *Service) GetActive(ctx context.Context, travelerID string) (*models.Journey, error) {
	journeyID, err := s.positions.GetActiveJourney(ctx, travelerID)
	switch {
	case err == nil:
		j, err := s.repo.GetByTravelerAndID(ctx, travelerID, journeyID)
		if err == nil && j.Status == StatusInProgress {
			result := toAPIJourney(j)
			return &result, nil
		}
		if err != nil && !errors.Is(err, ErrJourneyNotFound) {
			return nil, err
		}
	case !errors.Is(err, position.ErrNoActivePointer):
		return nil, err
	}

	res, err := s.repo.ListByTraveler(ctx, travelerID, ListOptions{Limit: 1, Status: StatusInProgress})
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, ErrNoActiveJourney
	}

	result := toAPIJourney(res.Items[0])
	return &result, nil
}

// List retrieves a traveler's journey history, newest first.
func (s *Service) List(ctx context.Context, travelerID string, limit int, status string) (*models.PagedJourneys, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	opts := ListOptions{Limit: limit}
	if status != "" {
		st := Status(status)
		if !st.Valid() {
			return nil, &ValidationError{Errors: []models.FieldError{
				{Field: "status", Message: "must be one of planned, in_progress, completed, cancelled"},
			}}
		}
		opts.Status = st
	}

	res, err := s.repo.ListByTraveler(ctx, travelerID, opts)
	if err != nil {
		return nil, err
	}

	items := make([]models.Journey, 0, len(res.Items))
	for _, j := range res.Items {
		items = append(items, toAPIJourney(j))
	}

	return &models.PagedJourneys{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: limit},
	}, nil
}

// Rate records the traveler's rating of a completed journey.
func (s *Service) Rate(ctx context.Context, travelerID, journeyID string, input *models.JourneyRateRequest) (*models.Journey, error) {
	j, err := s.repo.GetByTravelerAndID(ctx, travelerID, journeyID)
	if err != nil {
		return nil, err
	}

	if fieldErrors := validateRateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if j.Status != StatusCompleted {
		return nil, ErrNotCompleted
	}

	rating := input.Rating
	j.Rating = &rating
	if input.Feedback != nil {
		feedback := strings.TrimSpace(*input.Feedback)
		j.Feedback = &feedback
	}
	j.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}

	result := toAPIJourney(j)
	return &result, nil
}

func validateCreateInput(input *models.JourneyCreateRequest) []models.FieldError {
	var errs []models.FieldError
	errs = append(errs, validateEndpoint(&input.Origin, "origin")...)
	errs = append(errs, validateEndpoint(&input.Destination, "destination")...)
	if input.RouteID != nil && strings.TrimSpace(*input.RouteID) == "" {
		errs = append(errs, models.FieldError{Field: "routeId", Message: "must not be empty"})
	}
	return errs
}

func validateEndpoint(e *models.JourneyEndpoint, field string) []models.FieldError {
	var errs []models.FieldError

	name := strings.TrimSpace(e.Name)
	if name == "" {
		errs = append(errs, models.FieldError{Field: field + ".name", Message: "is required"})
	} else if len(name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: field + ".name", Message: "must be at most 120 characters"})
	}

	return append(errs, validateCoordinates(e.Point.Lat, e.Point.Lon, field+".point")...)
}

func validatePosition(p *models.PositionUpdate, prefix string) []models.FieldError {
	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	errs := validateCoordinates(p.Lat, p.Lon, prefix)
	if p.Accuracy != nil && *p.Accuracy < 0 {
		errs = append(errs, models.FieldError{Field: field("accuracy"), Message: "must not be negative"})
	}
	if p.Speed != nil && *p.Speed < 0 {
		errs = append(errs, models.FieldError{Field: field("speed"), Message: "must not be negative"})
	}
	if p.Bearing != nil && (*p.Bearing < 0 || *p.Bearing >= 360) {
		errs = append(errs, models.FieldError{Field: field("bearing"), Message: "must be between 0 and 360"})
	}
	return errs
}

func validateCoordinates(lat, lon float64, prefix string) []models.FieldError {
	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	var errs []models.FieldError
	if lat < -90 || lat > 90 {
		errs = append(errs, models.FieldError{Field: field("lat"), Message: "must be between -90 and 90"})
	}
	if lon < -180 || lon > 180 {
		errs = append(errs, models.FieldError{Field: field("lon"), Message: "must be between -180 and 180"})
	}
	return errs
}

func validateRateInput(input *models.JourneyRateRequest) []models.FieldError {
	var errs []models.FieldError
	if input.Rating < 1 || input.Rating > 5 {
		errs = append(errs, models.FieldError{Field: "rating", Message: "must be between 1 and 5"})
	}
	if input.Feedback != nil && len(*input.Feedback) > MaxFeedbackLength {
		errs = append(errs, models.FieldError{Field: "feedback", Message: "must be at most 1000 characters"})
	}
	return errs
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func toEndpoint(e models.JourneyEndpoint) Endpoint {
	return Endpoint{
		Name:  strings.TrimSpace(e.Name),
		Point: geo.Point{Lat: e.Point.Lat, Lon: e.Point.Lon},
	}
}

func toPosition(p *models.PositionUpdate, at time.Time) position.Position {
	return position.Position{
		Lat:        p.Lat,
		Lon:        p.Lon,
		Accuracy:   p.Accuracy,
		Speed:      p.Speed,
		Bearing:    p.Bearing,
		RecordedAt: at,
	}
}

func toAPIJourney(j *Journey) models.Journey {
	legs := make([]models.Leg, 0, len(j.Legs))
	for i := range j.Legs {
		legs = append(legs, toAPILeg(&j.Legs[i]))
	}

	return models.Journey{
		ID:                   j.ID,
		RouteID:              j.RouteID,
		Origin:               toAPIEndpoint(j.Origin),
		Destination:          toAPIEndpoint(j.Destination),
		Status:               string(j.Status),
		PlannedStartAt:       models.TimestampPtr(j.PlannedStartAt),
		ActualStartAt:        models.TimestampPtr(j.ActualStartAt),
		ActualEndAt:          models.TimestampPtr(j.ActualEndAt),
		EstimatedDurationMin: j.EstimatedDurationMin,
		EstimatedDistanceKm:  j.EstimatedDistanceKm,
		EstimatedMinFare:     j.EstimatedMinFare,
		EstimatedMaxFare:     j.EstimatedMaxFare,
		ActualDurationMin:    j.ActualDurationMin,
		TotalFare:            j.TotalFare,
		TrackingEnabled:      j.TrackingEnabled,
		NotificationsEnabled: j.NotificationsEnabled,
		Rating:               j.Rating,
		Feedback:             j.Feedback,
		Legs:                 legs,
		CreatedAt:            models.Timestamp(j.CreatedAt),
		UpdatedAt:            models.Timestamp(j.UpdatedAt),
	}
}

func toAPILeg(l *Leg) models.Leg {
	stops := make([]models.LegStop, 0, len(l.Stops))
	for _, s := range l.Stops {
		stops = append(stops, models.LegStop{
			LocationID: s.LocationID,
			Name:       s.Name,
			Point:      models.Point{Lat: s.Point.Lat, Lon: s.Point.Lon},
			Order:      s.Order,
			Optional:   s.Optional,
		})
	}

	return models.Leg{
		ID:                  l.ID,
		Order:               l.Order,
		SegmentID:           l.SegmentID,
		TransportMode:       string(l.TransportMode),
		Status:              string(l.Status),
		Start:               toAPIPlace(l.Start),
		End:                 toAPIPlace(l.End),
		Stops:               stops,
		Polyline:            geo.EncodePolyline(l.Path()),
		DurationMin:         l.DurationMin,
		DistanceKm:          l.DistanceKm,
		MinFare:             l.MinFare,
		MaxFare:             l.MaxFare,
		ActualStartAt:       models.TimestampPtr(l.ActualStartAt),
		ActualEndAt:         models.TimestampPtr(l.ActualEndAt),
		IsTransferRequired:  l.IsTransferRequired,
		TransferInstruction: l.TransferInstruction,
		EstimatedWaitMin:    l.EstimatedWaitMin,
	}
}

func toAPIEndpoint(e Endpoint) models.JourneyEndpoint {
	return models.JourneyEndpoint{
		Name:  e.Name,
		Point: models.Point{Lat: e.Point.Lat, Lon: e.Point.Lon},
	}
}

func toAPIPlace(p PlaceSnapshot) models.LegPlace {
	return models.LegPlace{
		LocationID: p.LocationID,
		Name:       p.Name,
		Point:      models.Point{Lat: p.Point.Lat, Lon: p.Point.Lon},
	}
}
