package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
)

// NewDataTransferHandler acknowledges vendor-specific payloads. The content is
// only audited; no vendor extension is interpreted here.
func NewDataTransferHandler(audit Audit, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.DataTransferRequest](payload)
		if err != nil {
			audit.Record(ctx, chargePointID, nil, protocol.ActionDataTransfer, "", ocpp.ErrorFormationViolation)
			return nil, err
		}

		logger.Debug("data transfer",
			zap.String("charge_point_id", chargePointID),
			zap.String("vendor_id", req.VendorID),
			zap.String("message_id", req.MessageID))

		audit.Record(ctx, chargePointID, nil, protocol.ActionDataTransfer,
			fmt.Sprintf("vendor=%s message=%s", req.VendorID, req.MessageID), "")

		return protocol.DataTransferResponse{Status: protocol.DataTransferAccepted}, nil
	}
}
