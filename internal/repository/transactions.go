package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ocppcs/internal/models"
)

// TransactionRepository owns charging transaction persistence.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository returns repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Open inserts a new transaction and returns the generated id. The serial
// primary key is the device-visible transaction handle.
func (r *TransactionRepository) Open(ctx context.Context, tx *models.Transaction) (int64, error) {
	const query = `
		INSERT INTO transactions (charge_point_id, connector_id, start_tag_id, start_time, meter_start, start_result)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING transaction_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		tx.ChargePointID, tx.ConnectorID, tx.StartTagID, tx.StartTime, tx.MeterStart, tx.StartResult,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("transactions: open: %w", err)
	}
	return id, nil
}

// CloseParams carries the stop-side fields of a transaction.
type CloseParams struct {
	TransactionID int64
	StopTime      time.Time
	StopTagID     string
	StopReason    string
	MeterStop     float64
}

// Close stops an open transaction and debits the start tag's charging time
// balance in the same database transaction. Closing an already-closed or
// unknown transaction is a no-op: the returned transaction is nil and no
// second debit is applied.
func (r *TransactionRepository) Close(ctx context.Context, p CloseParams) (*models.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transactions: begin close: %w", err)
	}
	defer dbTx.Rollback()

	const lockQuery = `
		SELECT charge_point_id, connector_id, start_tag_id, start_time, meter_start, start_result
		FROM transactions
		WHERE transaction_id = $1 AND stop_time IS NULL
		FOR UPDATE
	`
	row := dbTx.QueryRowContext(ctx, lockQuery, p.TransactionID)

	closed := models.Transaction{TransactionID: p.TransactionID}
	err = row.Scan(&closed.ChargePointID, &closed.ConnectorID, &closed.StartTagID,
		&closed.StartTime, &closed.MeterStart, &closed.StartResult)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("transactions: lock open row: %w", err)
	}

	timeConnect := CeilMinutes(p.StopTime.Sub(closed.StartTime))

	const updateQuery = `
		UPDATE transactions
		SET stop_time = $2,
		    stop_tag_id = $3,
		    stop_reason = $4,
		    meter_stop = $5,
		    time_connect = $6,
		    debit_applied = TRUE
		WHERE transaction_id = $1
	`
	if _, err := dbTx.ExecContext(ctx, updateQuery,
		p.TransactionID, p.StopTime, p.StopTagID, p.StopReason, p.MeterStop, timeConnect); err != nil {
		return nil, fmt.Errorf("transactions: close: %w", err)
	}

	if closed.StartTagID != "" && timeConnect > 0 {
		const debitQuery = `
			UPDATE charge_tags
			SET charging_time_mins = charging_time_mins - $2
			WHERE tag_id = $1
		`
		if _, err := dbTx.ExecContext(ctx, debitQuery, closed.StartTagID, timeConnect); err != nil {
			return nil, fmt.Errorf("transactions: debit tag %s: %w", closed.StartTagID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("transactions: commit close: %w", err)
	}

	closed.StopTime = &p.StopTime
	closed.StopTagID = p.StopTagID
	closed.StopReason = p.StopReason
	closed.MeterStop = &p.MeterStop
	closed.TimeConnect = timeConnect
	closed.DebitApplied = true
	return &closed, nil
}

// FindOpenByTag returns the latest open transaction started with the tag, or nil.
func (r *TransactionRepository) FindOpenByTag(ctx context.Context, tagID string) (*models.Transaction, error) {
	const query = `
		SELECT transaction_id, charge_point_id, connector_id, start_tag_id, start_time, meter_start, start_result
		FROM transactions
		WHERE stop_time IS NULL AND start_tag_id = $1
		ORDER BY transaction_id DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, tagID)

	var tx models.Transaction
	err := row.Scan(&tx.TransactionID, &tx.ChargePointID, &tx.ConnectorID,
		&tx.StartTagID, &tx.StartTime, &tx.MeterStart, &tx.StartResult)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// CeilMinutes rounds a connected duration up to whole minutes; a started
// minute always counts. The result is the TimeConnect value debited against
// the start tag's charging time balance.
func CeilMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	mins := int64(d / time.Minute)
	if d%time.Minute != 0 {
		mins++
	}
	return mins
}
