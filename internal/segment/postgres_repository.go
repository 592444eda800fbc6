package segment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL segment catalog.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetLocation retrieves a location by ID.
func (r *PostgresRepository) GetLocation(ctx context.Context, id string) (*Location, error) {
	query := `SELECT id, name, lat, lon FROM locations WHERE id = $1`

	var loc Location
	err := r.pool.QueryRow(ctx, query, id).Scan(&loc.ID, &loc.Name, &loc.Point.Lat, &loc.Point.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}

	return &loc, nil
}

// GetSegment retrieves a segment and its intermediate stops by ID.
func (r *PostgresRepository) GetSegment(ctx context.Context, id string) (*Segment, error) {
	query := `
		SELECT
			id, name, start_location_id, end_location_id, modes,
			distance_km, duration_min, min_fare, max_fare, landmarks
		FROM segments
		WHERE id = $1
	`

	var seg Segment
	var modes []string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&seg.ID,
		&seg.Name,
		&seg.StartLocationID,
		&seg.EndLocationID,
		&modes,
		&seg.DistanceKm,
		&seg.DurationMin,
		&seg.MinFare,
		&seg.MaxFare,
		&seg.Landmarks,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}

	for _, m := range modes {
		seg.Modes = append(seg.Modes, TransportMode(m))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT location_id, stop_order, optional
		FROM segment_stops
		WHERE segment_id = $1
		ORDER BY stop_order
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var stop IntermediateStop
		if err := rows.Scan(&stop.LocationID, &stop.Order, &stop.Optional); err != nil {
			return nil, err
		}
		seg.Stops = append(seg.Stops, stop)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &seg, nil
}

// GetRoute retrieves a route and its ordered segment references by ID.
func (r *PostgresRepository) GetRoute(ctx context.Context, id string) (*Route, error) {
	query := `SELECT id, name, start_location_id, end_location_id FROM routes WHERE id = $1`

	var route Route
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&route.ID,
		&route.Name,
		&route.StartLocationID,
		&route.EndLocationID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}

	route.Segments, err = r.routeSegments(ctx, id)
	if err != nil {
		return nil, err
	}

	return &route, nil
}

// ListRoutes retrieves every route in the catalog.
func (r *PostgresRepository) ListRoutes(ctx context.Context) ([]*Route, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, start_location_id, end_location_id
		FROM routes
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}

	var routes []*Route
	for rows.Next() {
		var route Route
		if err := rows.Scan(&route.ID, &route.Name, &route.StartLocationID, &route.EndLocationID); err != nil {
			rows.Close()
			return nil, err
		}
		routes = append(routes, &route)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, route := range routes {
		route.Segments, err = r.routeSegments(ctx, route.ID)
		if err != nil {
			return nil, err
		}
	}

	return routes, nil
}

func (r *PostgresRepository) routeSegments(ctx context.Context, routeID string) ([]RouteSegment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT segment_id, reversed
		FROM route_segments
		WHERE route_id = $1
		ORDER BY position
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []RouteSegment
	for rows.Next() {
		var ref RouteSegment
		if err := rows.Scan(&ref.SegmentID, &ref.Reversed); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
