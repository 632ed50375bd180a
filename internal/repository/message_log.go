package repository

import (
	"context"
	"database/sql"

	"ocppcs/internal/models"
)

// MessageLogRepository stores audit records of protocol exchanges.
type MessageLogRepository struct {
	db *sql.DB
}

// NewMessageLogRepository returns repository.
func NewMessageLogRepository(db *sql.DB) *MessageLogRepository {
	return &MessageLogRepository{db: db}
}

// Append writes one log entry. Entries are write-once, never updated.
func (r *MessageLogRepository) Append(ctx context.Context, entry *models.MessageLog) error {
	const query = `
		INSERT INTO message_log (charge_point_id, connector_id, log_time, message, result, error_code)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ChargePointID, entry.ConnectorID, entry.LogTime, entry.Message, entry.Result, entry.ErrorCode)
	return err
}
