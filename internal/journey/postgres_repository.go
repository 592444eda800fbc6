package journey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripwise/tripwise/pkg/geo"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL journey repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const journeyColumns = `
	id, traveler_id, route_id,
	origin_name, origin_lat, origin_lon,
	destination_name, destination_lat, destination_lon,
	status, planned_start_at, actual_start_at, actual_end_at,
	estimated_duration_min, estimated_distance_km, estimated_min_fare, estimated_max_fare,
	actual_duration_min, total_fare,
	tracking_enabled, notifications_enabled, rating, feedback,
	created_at, updated_at`

const legColumns = `
	id, journey_id, leg_order, segment_id, reversed, transport_mode,
	start_location_id, start_name, start_lat, start_lon,
	end_location_id, end_name, end_lat, end_lon,
	stops, duration_min, distance_km, min_fare, max_fare,
	status, actual_start_at, actual_end_at,
	is_transfer_required, transfer_instruction, estimated_wait_min,
	transfer_alert_sent, transfer_imminent_sent, destination_alert_sent`

// storedStop is the JSONB shape of a leg's stop snapshot.
type storedStop struct {
	LocationID string  `json:"locationId"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Order      int     `json:"order"`
	Optional   bool    `json:"optional"`
}

// Create stores a new journey and its legs in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, j *Journey) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `INSERT INTO journeys (`+journeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		j.ID, j.TravelerID, j.RouteID,
		j.Origin.Name, j.Origin.Point.Lat, j.Origin.Point.Lon,
		j.Destination.Name, j.Destination.Point.Lat, j.Destination.Point.Lon,
		j.Status, j.PlannedStartAt, j.ActualStartAt, j.ActualEndAt,
		j.EstimatedDurationMin, j.EstimatedDistanceKm, j.EstimatedMinFare, j.EstimatedMaxFare,
		j.ActualDurationMin, j.TotalFare,
		j.TrackingEnabled, j.NotificationsEnabled, j.Rating, j.Feedback,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journey: %w", err)
	}

	for i := range j.Legs {
		leg := &j.Legs[i]
		stops, err := encodeStops(leg.Stops)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `INSERT INTO journey_legs (`+legColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
			leg.ID, leg.JourneyID, leg.Order, leg.SegmentID, leg.Reversed, leg.TransportMode,
			leg.Start.LocationID, leg.Start.Name, leg.Start.Point.Lat, leg.Start.Point.Lon,
			leg.End.LocationID, leg.End.Name, leg.End.Point.Lat, leg.End.Point.Lon,
			stops, leg.DurationMin, leg.DistanceKm, leg.MinFare, leg.MaxFare,
			leg.Status, leg.ActualStartAt, leg.ActualEndAt,
			leg.IsTransferRequired, leg.TransferInstruction, leg.EstimatedWaitMin,
			leg.TransferAlertSent, leg.TransferImminentSent, leg.DestinationAlertSent,
		)
		if err != nil {
			return fmt.Errorf("insert leg %d: %w", leg.Order, err)
		}
	}

	return tx.Commit(ctx)
}

// Get retrieves a journey by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Journey, error) {
	return r.getJourney(ctx, `SELECT `+journeyColumns+` FROM journeys WHERE id = $1`, id)
}

// GetByTravelerAndID retrieves a journey owned by the traveler.
func (r *PostgresRepository) GetByTravelerAndID(ctx context.Context, travelerID, journeyID string) (*Journey, error) {
	return r.getJourney(ctx, `SELECT `+journeyColumns+` FROM journeys WHERE id = $1 AND traveler_id = $2`, journeyID, travelerID)
}

func (r *PostgresRepository) getJourney(ctx context.Context, query string, args ...interface{}) (*Journey, error) {
	j, err := scanJourney(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJourneyNotFound
		}
		return nil, err
	}

	j.Legs, err = r.legs(ctx, j.ID)
	if err != nil {
		return nil, err
	}

	return j, nil
}

// ListByTraveler retrieves a traveler's journeys, newest first.
func (r *PostgresRepository) ListByTraveler(ctx context.Context, travelerID string, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + journeyColumns + ` FROM journeys
		WHERE traveler_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	journeys, err := r.listJourneys(ctx, query, travelerID, string(opts.Status), limit)
	if err != nil {
		return nil, err
	}

	return &ListResult{Items: journeys}, nil
}

// ListByStatus retrieves all journeys with the given status.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status) ([]*Journey, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE status = $1 ORDER BY created_at`
	return r.listJourneys(ctx, query, status)
}

func (r *PostgresRepository) listJourneys(ctx context.Context, query string, args ...interface{}) ([]*Journey, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var journeys []*Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		journeys = append(journeys, j)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, j := range journeys {
		j.Legs, err = r.legs(ctx, j.ID)
		if err != nil {
			return nil, err
		}
	}

	return journeys, nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Update updates the journey row.
func (r *PostgresRepository) Update(ctx context.Context, j *Journey) error {
	return updateJourney(ctx, r.pool, j)
}

// UpdateLeg updates the mutable state of a leg.
func (r *PostgresRepository) UpdateLeg(ctx context.Context, leg *Leg) error {
	return updateLeg(ctx, r.pool, leg)
}

// UpdateWithLegs updates the journey row and the given legs in one transaction.
func (r *PostgresRepository) UpdateWithLegs(ctx context.Context, j *Journey, legs ...*Leg) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := updateJourney(ctx, tx, j); err != nil {
		return err
	}
	for _, leg := range legs {
		if leg.JourneyID != j.ID {
			return ErrLegNotFound
		}
		if err := updateLeg(ctx, tx, leg); err != nil {
			return fmt.Errorf("update leg %d: %w", leg.Order, err)
		}
	}

	return tx.Commit(ctx)
}

func updateJourney(ctx context.Context, db execer, j *Journey) error {
	query := `
		UPDATE journeys SET
			status = $2,
			actual_start_at = $3,
			actual_end_at = $4,
			actual_duration_min = $5,
			total_fare = $6,
			tracking_enabled = $7,
			notifications_enabled = $8,
			rating = $9,
			feedback = $10,
			updated_at = $11
		WHERE id = $1
	`

	result, err := db.Exec(ctx, query,
		j.ID,
		j.Status,
		j.ActualStartAt,
		j.ActualEndAt,
		j.ActualDurationMin,
		j.TotalFare,
		j.TrackingEnabled,
		j.NotificationsEnabled,
		j.Rating,
		j.Feedback,
		j.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrJourneyNotFound
	}

	return nil
}

func updateLeg(ctx context.Context, db execer, leg *Leg) error {
	query := `
		UPDATE journey_legs SET
			status = $3,
			actual_start_at = $4,
			actual_end_at = $5,
			transfer_alert_sent = $6,
			transfer_imminent_sent = $7,
			destination_alert_sent = $8
		WHERE id = $1 AND journey_id = $2
	`

	result, err := db.Exec(ctx, query,
		leg.ID,
		leg.JourneyID,
		leg.Status,
		leg.ActualStartAt,
		leg.ActualEndAt,
		leg.TransferAlertSent,
		leg.TransferImminentSent,
		leg.DestinationAlertSent,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrLegNotFound
	}

	return nil
}

func (r *PostgresRepository) legs(ctx context.Context, journeyID string) ([]Leg, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+legColumns+` FROM journey_legs WHERE journey_id = $1 ORDER BY leg_order`, journeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []Leg
	for rows.Next() {
		var leg Leg
		var stops []byte
		err := rows.Scan(
			&leg.ID, &leg.JourneyID, &leg.Order, &leg.SegmentID, &leg.Reversed, &leg.TransportMode,
			&leg.Start.LocationID, &leg.Start.Name, &leg.Start.Point.Lat, &leg.Start.Point.Lon,
			&leg.End.LocationID, &leg.End.Name, &leg.End.Point.Lat, &leg.End.Point.Lon,
			&stops, &leg.DurationMin, &leg.DistanceKm, &leg.MinFare, &leg.MaxFare,
			&leg.Status, &leg.ActualStartAt, &leg.ActualEndAt,
			&leg.IsTransferRequired, &leg.TransferInstruction, &leg.EstimatedWaitMin,
			&leg.TransferAlertSent, &leg.TransferImminentSent, &leg.DestinationAlertSent,
		)
		if err != nil {
			return nil, err
		}

		leg.Stops, err = decodeStops(stops)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}

	return legs, rows.Err()
}

func scanJourney(row pgx.Row) (*Journey, error) {
	var j Journey
	err := row.Scan(
		&j.ID, &j.TravelerID, &j.RouteID,
		&j.Origin.Name, &j.Origin.Point.Lat, &j.Origin.Point.Lon,
		&j.Destination.Name, &j.Destination.Point.Lat, &j.Destination.Point.Lon,
		&j.Status, &j.PlannedStartAt, &j.ActualStartAt, &j.ActualEndAt,
		&j.EstimatedDurationMin, &j.EstimatedDistanceKm, &j.EstimatedMinFare, &j.EstimatedMaxFare,
		&j.ActualDurationMin, &j.TotalFare,
		&j.TrackingEnabled, &j.NotificationsEnabled, &j.Rating, &j.Feedback,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func encodeStops(stops []StopSnapshot) ([]byte, error) {
	stored := make([]storedStop, 0, len(stops))
	for _, s := range stops {
		stored = append(stored, storedStop{
			LocationID: s.LocationID,
			Name:       s.Name,
			Lat:        s.Point.Lat,
			Lon:        s.Point.Lon,
			Order:      s.Order,
			Optional:   s.Optional,
		})
	}

	b, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode stops: %w", err)
	}
	return b, nil
}

func decodeStops(b []byte) ([]StopSnapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}

	var stored []storedStop
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, fmt.Errorf("decode stops: %w", err)
	}

	stops := make([]StopSnapshot, 0, len(stored))
	for _, s := range stored {
		stops = append(stops, StopSnapshot{
			PlaceSnapshot: PlaceSnapshot{
				LocationID: s.LocationID,
				Name:       s.Name,
				Point:      geo.Point{Lat: s.Lat, Lon: s.Lon},
			},
			Order:    s.Order,
			Optional: s.Optional,
		})
	}
	return stops, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
