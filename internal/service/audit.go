package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/config"
	"ocppcs/internal/models"
	"ocppcs/internal/ocpp/protocol"
)

// MessageLogStore is the append-only persistence surface of the audit logger.
type MessageLogStore interface {
	Append(ctx context.Context, entry *models.MessageLog) error
}

// insignificantActions is the high-frequency chatter excluded at level 1.
var insignificantActions = map[string]bool{
	protocol.ActionBootNotification:   true,
	protocol.ActionHeartbeat:          true,
	protocol.ActionDataTransfer:       true,
	protocol.ActionStatusNotification: true,
}

// AuditLogger writes the durable message log. Level 0 disables it, level 1
// records significant events only, level 2 records everything. A write failure
// goes to the operational log stream and is otherwise swallowed: audit must
// not be able to break charging.
type AuditLogger struct {
	store  MessageLogStore
	level  int
	logger *zap.Logger
}

// NewAuditLogger builds the logger.
func NewAuditLogger(store MessageLogStore, level int, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{store: store, level: level, logger: logger}
}

// Record appends one audit entry when the configured level covers the action.
func (a *AuditLogger) Record(ctx context.Context, chargePointID string, connectorID *int, action, result, errorCode string) {
	if a.level <= config.MessageLogOff || chargePointID == "" {
		return
	}
	if a.level == config.MessageLogSignificant && insignificantActions[action] {
		return
	}

	entry := &models.MessageLog{
		ChargePointID: chargePointID,
		ConnectorID:   connectorID,
		LogTime:       time.Now().UTC(),
		Message:       action,
		Result:        result,
		ErrorCode:     errorCode,
	}
	if err := a.store.Append(ctx, entry); err != nil {
		a.logger.Error("message log write failed",
			zap.String("charge_point_id", chargePointID),
			zap.String("message", action),
			zap.Error(err))
	}
}
