package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/service"
)

// NewStatusNotificationHandler records the connector's reported status.
func NewStatusNotificationHandler(status *service.StatusService, audit Audit, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StatusNotificationRequest](payload)
		if err != nil {
			audit.Record(ctx, chargePointID, nil, protocol.ActionStatusNotification, "", ocpp.ErrorFormationViolation)
			return nil, err
		}

		at := time.Now().UTC()
		if req.Timestamp != nil && !req.Timestamp.IsZero() {
			at = req.Timestamp.UTC()
		}

		if err := status.ReportStatus(ctx, chargePointID, req.ConnectorID, req.Status, at); err != nil {
			logger.Warn("status notification update failed",
				zap.String("charge_point_id", chargePointID),
				zap.Int("connector_id", req.ConnectorID),
				zap.Error(err))
		}

		audit.Record(ctx, chargePointID, &req.ConnectorID, protocol.ActionStatusNotification, req.Status, "")

		return protocol.StatusNotificationResponse{}, nil
	}
}
