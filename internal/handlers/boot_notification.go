package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/models"
	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
)

// NewBootNotificationHandler registers device metadata and agrees on the
// heartbeat interval.
func NewBootNotificationHandler(store ChargePointStore, audit Audit, heartbeatInterval int, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.BootNotificationRequest](payload)
		if err != nil {
			audit.Record(ctx, chargePointID, nil, protocol.ActionBootNotification, "", ocpp.ErrorFormationViolation)
			return nil, err
		}

		now := time.Now().UTC()
		cp := &models.ChargePoint{
			ID:              chargePointID,
			Vendor:          req.ChargePointVendor,
			Model:           req.ChargePointModel,
			FirmwareVersion: req.FirmwareVersion,
			LastHeartbeat:   &now,
		}
		if err := store.UpsertBootInfo(ctx, cp); err != nil {
			logger.Error("boot notification upsert failed",
				zap.String("charge_point_id", chargePointID),
				zap.Error(err))
		}

		audit.Record(ctx, chargePointID, nil, protocol.ActionBootNotification, protocol.RegistrationAccepted, "")

		return protocol.BootNotificationResponse{
			CurrentTime: now,
			Interval:    heartbeatInterval,
			Status:      protocol.RegistrationAccepted,
		}, nil
	}
}
