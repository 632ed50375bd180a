package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ocppcs/internal/models"
)

// ChargePointRepository manages charge point persistence.
type ChargePointRepository struct {
	db *sql.DB
}

// NewChargePointRepository returns repository.
func NewChargePointRepository(db *sql.DB) *ChargePointRepository {
	return &ChargePointRepository{db: db}
}

// Get returns a charge point by id, or nil when unknown.
func (r *ChargePointRepository) Get(ctx context.Context, id string) (*models.ChargePoint, error) {
	const query = `
		SELECT id, COALESCE(name,''), COALESCE(vendor,''), COALESCE(model,''),
		       COALESCE(firmware_version,''), COALESCE(username,''), COALESCE(password_hash,''),
		       last_heartbeat, created_at, updated_at
		FROM charge_points
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var cp models.ChargePoint
	err := row.Scan(&cp.ID, &cp.Name, &cp.Vendor, &cp.Model, &cp.FirmwareVersion,
		&cp.Username, &cp.PasswordHash, &cp.LastHeartbeat, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// List returns all known charge points.
func (r *ChargePointRepository) List(ctx context.Context) ([]models.ChargePoint, error) {
	const query = `
		SELECT id, COALESCE(name,''), COALESCE(vendor,''), COALESCE(model,''),
		       COALESCE(firmware_version,''), COALESCE(username,''), COALESCE(password_hash,''),
		       last_heartbeat, created_at, updated_at
		FROM charge_points
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ChargePoint
	for rows.Next() {
		var cp models.ChargePoint
		if err := rows.Scan(&cp.ID, &cp.Name, &cp.Vendor, &cp.Model, &cp.FirmwareVersion,
			&cp.Username, &cp.PasswordHash, &cp.LastHeartbeat, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, cp)
	}
	return result, rows.Err()
}

// UpsertBootInfo stores device metadata reported by BootNotification.
func (r *ChargePointRepository) UpsertBootInfo(ctx context.Context, cp *models.ChargePoint) error {
	const query = `
		INSERT INTO charge_points (id, vendor, model, firmware_version, last_heartbeat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			vendor = EXCLUDED.vendor,
			model = EXCLUDED.model,
			firmware_version = EXCLUDED.firmware_version,
			last_heartbeat = EXCLUDED.last_heartbeat,
			updated_at = NOW()
	`
	hb := time.Now().UTC()
	if cp.LastHeartbeat != nil {
		hb = *cp.LastHeartbeat
	}
	_, err := r.db.ExecContext(ctx, query, cp.ID, cp.Vendor, cp.Model, cp.FirmwareVersion, hb)
	return err
}

// TouchHeartbeat bumps the last seen timestamp.
func (r *ChargePointRepository) TouchHeartbeat(ctx context.Context, id string, t time.Time) error {
	const query = `
		UPDATE charge_points
		SET last_heartbeat = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, t)
	return err
}
