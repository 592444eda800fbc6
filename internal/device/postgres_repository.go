package device

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListByTraveler retrieves all devices of a traveler, newest first.
func (r *PostgresRepository) ListByTraveler(ctx context.Context, travelerID string) ([]*Device, error) {
	query := `
		SELECT id, traveler_id, platform, token, device_model, app_version, created_at, updated_at
		FROM devices
		WHERE traveler_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, travelerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(
			&d.ID,
			&d.TravelerID,
			&d.Platform,
			&d.Token,
			&d.DeviceModel,
			&d.AppVersion,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		devices = append(devices, &d)
	}

	return devices, rows.Err()
}

// Upsert creates or updates a device keyed by its token.
func (r *PostgresRepository) Upsert(ctx context.Context, device *Device) (bool, error) {
	query := `
		INSERT INTO devices (id, traveler_id, platform, token, device_model, app_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (token) DO UPDATE SET
			id = EXCLUDED.id,
			traveler_id = EXCLUDED.traveler_id,
			platform = EXCLUDED.platform,
			device_model = EXCLUDED.device_model,
			app_version = EXCLUDED.app_version,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		device.ID,
		device.TravelerID,
		device.Platform,
		device.Token,
		device.DeviceModel,
		device.AppVersion,
		device.CreatedAt,
		device.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// Delete removes a traveler's device.
func (r *PostgresRepository) Delete(ctx context.Context, travelerID, deviceID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1 AND traveler_id = $2`, deviceID, travelerID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// DeleteByToken removes the traveler's device holding token.
func (r *PostgresRepository) DeleteByToken(ctx context.Context, travelerID, token string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE token = $1 AND traveler_id = $2`, token, travelerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
