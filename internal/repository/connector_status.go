package repository

import (
	"context"
	"database/sql"
	"time"

	"ocppcs/internal/models"
)

// ConnectorStatusRepository keeps last known status/meter per connector.
type ConnectorStatusRepository struct {
	db *sql.DB
}

// NewConnectorStatusRepository returns repository.
func NewConnectorStatusRepository(db *sql.DB) *ConnectorStatusRepository {
	return &ConnectorStatusRepository{db: db}
}

// UpsertStatus stores the connector's reported status.
func (r *ConnectorStatusRepository) UpsertStatus(ctx context.Context, chargePointID string, connectorID int, status string, at time.Time) error {
	const query = `
		INSERT INTO connector_status (charge_point_id, connector_id, last_status, last_status_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (charge_point_id, connector_id) DO UPDATE SET
			last_status = EXCLUDED.last_status,
			last_status_time = EXCLUDED.last_status_time
	`
	_, err := r.db.ExecContext(ctx, query, chargePointID, connectorID, status, at)
	return err
}

// UpsertMeter stores the connector's latest meter reading in kWh.
func (r *ConnectorStatusRepository) UpsertMeter(ctx context.Context, chargePointID string, connectorID int, meterKWH float64, at time.Time) error {
	const query = `
		INSERT INTO connector_status (charge_point_id, connector_id, last_meter, last_meter_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (charge_point_id, connector_id) DO UPDATE SET
			last_meter = EXCLUDED.last_meter,
			last_meter_time = EXCLUDED.last_meter_time
	`
	_, err := r.db.ExecContext(ctx, query, chargePointID, connectorID, meterKWH, at)
	return err
}

// UpsertStatusAndMeter stores both in one write, used by StartTransaction.
func (r *ConnectorStatusRepository) UpsertStatusAndMeter(ctx context.Context, chargePointID string, connectorID int, status string, statusAt time.Time, meterKWH float64, meterAt time.Time) error {
	const query = `
		INSERT INTO connector_status (charge_point_id, connector_id, last_status, last_status_time, last_meter, last_meter_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (charge_point_id, connector_id) DO UPDATE SET
			last_status = EXCLUDED.last_status,
			last_status_time = EXCLUDED.last_status_time,
			last_meter = EXCLUDED.last_meter,
			last_meter_time = EXCLUDED.last_meter_time
	`
	_, err := r.db.ExecContext(ctx, query, chargePointID, connectorID, status, statusAt, meterKWH, meterAt)
	return err
}

// ListByChargePoint returns all connector rows for a charge point.
func (r *ConnectorStatusRepository) ListByChargePoint(ctx context.Context, chargePointID string) ([]models.ConnectorStatus, error) {
	const query = `
		SELECT charge_point_id, connector_id, COALESCE(last_status,''), last_status_time, last_meter, last_meter_time
		FROM connector_status
		WHERE charge_point_id = $1
		ORDER BY connector_id
	`
	rows, err := r.db.QueryContext(ctx, query, chargePointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConnectorStatus
	for rows.Next() {
		var cs models.ConnectorStatus
		if err := rows.Scan(&cs.ChargePointID, &cs.ConnectorID, &cs.LastStatus,
			&cs.LastStatusTime, &cs.LastMeter, &cs.LastMeterTime); err != nil {
			return nil, err
		}
		result = append(result, cs)
	}
	return result, rows.Err()
}
