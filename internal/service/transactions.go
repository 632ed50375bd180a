package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/models"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/repository"
)

// TransactionStore is the persistence surface of the transaction manager.
type TransactionStore interface {
	Open(ctx context.Context, tx *models.Transaction) (int64, error)
	Close(ctx context.Context, p repository.CloseParams) (*models.Transaction, error)
}

// StartParams carries an accepted StartTransaction request.
type StartParams struct {
	ChargePointID string
	ConnectorID   int
	TagID         string
	MeterStartWh  int64
	Timestamp     time.Time
	StartResult   string
}

// StopParams carries a StopTransaction request.
type StopParams struct {
	TransactionID int64
	TagID         string
	MeterStopWh   int64
	Timestamp     time.Time
	Reason        string
}

// TransactionService owns the charging-session lifecycle per connector.
type TransactionService struct {
	store  TransactionStore
	status *StatusService
	logger *zap.Logger
}

// NewTransactionService builds the manager.
func NewTransactionService(store TransactionStore, status *StatusService, logger *zap.Logger) *TransactionService {
	return &TransactionService{store: store, status: status, logger: logger}
}

// Start opens a new transaction and marks the connector occupied with the
// starting meter reading. Meter values arrive in Wh and are stored as kWh.
// ConnectorID <= 0 is a whole-station start: no connector row is touched.
// The generated id is the device-visible transaction handle.
func (t *TransactionService) Start(ctx context.Context, p StartParams) (int64, error) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	meterKWH := float64(p.MeterStartWh) / 1000

	if p.ConnectorID > 0 {
		if err := t.status.SetStatusWithMeter(ctx, p.ChargePointID, p.ConnectorID, protocol.ConnectorOccupied, meterKWH, p.Timestamp); err != nil {
			t.logger.Warn("connector status update failed on start",
				zap.String("charge_point_id", p.ChargePointID),
				zap.Int("connector_id", p.ConnectorID),
				zap.Error(err))
		}
	}

	id, err := t.store.Open(ctx, &models.Transaction{
		ChargePointID: p.ChargePointID,
		ConnectorID:   p.ConnectorID,
		StartTagID:    p.TagID,
		StartTime:     p.Timestamp.UTC(),
		MeterStart:    meterKWH,
		StartResult:   p.StartResult,
	})
	if err != nil {
		return 0, fmt.Errorf("start transaction: %w", err)
	}
	return id, nil
}

// Stop closes the transaction matched by id. The elapsed connected time is
// debited against the start tag inside the same database transaction, so a
// resent Stop can never debit twice. Stopping an already-closed transaction
// is a no-op success and returns a nil transaction.
func (t *TransactionService) Stop(ctx context.Context, p StopParams) (*models.Transaction, error) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	meterKWH := float64(p.MeterStopWh) / 1000

	closed, err := t.store.Close(ctx, repository.CloseParams{
		TransactionID: p.TransactionID,
		StopTime:      p.Timestamp.UTC(),
		StopTagID:     p.TagID,
		StopReason:    p.Reason,
		MeterStop:     meterKWH,
	})
	if err != nil {
		return nil, fmt.Errorf("stop transaction %d: %w", p.TransactionID, err)
	}
	if closed == nil {
		t.logger.Info("stop for unknown or already closed transaction",
			zap.Int64("transaction_id", p.TransactionID))
		return nil, nil
	}

	if closed.ConnectorID > 0 {
		if err := t.status.SetStatusWithMeter(ctx, closed.ChargePointID, closed.ConnectorID, protocol.ConnectorAvailable, meterKWH, p.Timestamp); err != nil {
			t.logger.Warn("connector status update failed on stop",
				zap.String("charge_point_id", closed.ChargePointID),
				zap.Int("connector_id", closed.ConnectorID),
				zap.Error(err))
		}
	}

	return closed, nil
}
