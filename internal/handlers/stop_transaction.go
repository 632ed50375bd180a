package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/service"
)

// NewStopTransactionHandler closes the transaction matched by id. Devices may
// resend Stop after transport retries, so a stop for an already-closed
// transaction is acknowledged without changing anything.
func NewStopTransactionHandler(auth Authorizer, transactions *service.TransactionService, audit Audit, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StopTransactionRequest](payload)
		if err != nil {
			audit.Record(ctx, chargePointID, nil, protocol.ActionStopTransaction, "", ocpp.ErrorFormationViolation)
			return nil, err
		}

		resp := protocol.StopTransactionResponse{}
		if strings.TrimSpace(req.IdTag) != "" {
			info := auth.Resolve(ctx, req.IdTag).IdTagInfo()
			resp.IdTagInfo = &info
		}

		closed, err := transactions.Stop(ctx, service.StopParams{
			TransactionID: req.TransactionID,
			TagID:         service.NormalizeTagID(req.IdTag),
			MeterStopWh:   req.MeterStop,
			Timestamp:     req.Timestamp,
			Reason:        req.Reason,
		})
		if err != nil {
			logger.Error("stop transaction persist failed",
				zap.String("charge_point_id", chargePointID),
				zap.Int64("transaction_id", req.TransactionID),
				zap.Error(err))
			audit.Record(ctx, chargePointID, nil, protocol.ActionStopTransaction, "", ocpp.ErrorInternalError)
			return nil, ocpp.NewFault(ocpp.ErrorInternalError, "could not persist transaction stop")
		}

		result := fmt.Sprintf("transaction %d already closed", req.TransactionID)
		var connectorID *int
		if closed != nil {
			result = fmt.Sprintf("connected %d min", closed.TimeConnect)
			connectorID = &closed.ConnectorID
			logger.Info("stop transaction",
				zap.String("charge_point_id", chargePointID),
				zap.Int64("transaction_id", closed.TransactionID),
				zap.Int("connector_id", closed.ConnectorID),
				zap.Int64("time_connect_min", closed.TimeConnect))
		}

		audit.Record(ctx, chargePointID, connectorID, protocol.ActionStopTransaction, result, "")
		return resp, nil
	}
}
