package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
)

// NewHeartbeatHandler bumps the device's last-seen timestamp and returns
// server time.
func NewHeartbeatHandler(store ChargePointStore, audit Audit, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		now := time.Now().UTC()
		if err := store.TouchHeartbeat(ctx, chargePointID, now); err != nil {
			logger.Warn("heartbeat update failed",
				zap.String("charge_point_id", chargePointID),
				zap.Error(err))
		}

		audit.Record(ctx, chargePointID, nil, protocol.ActionHeartbeat, "OK", "")

		return protocol.HeartbeatResponse{CurrentTime: now}, nil
	}
}
