package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/service"
)

// NewStartTransactionHandler authorizes the tag, opens the transaction and
// marks the connector occupied. Only a failure persisting an accepted start
// escalates to a CallError; authorization problems are answered as a domain
// status.
func NewStartTransactionHandler(auth Authorizer, transactions *service.TransactionService, audit Audit, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StartTransactionRequest](payload)
		if err != nil {
			audit.Record(ctx, chargePointID, nil, protocol.ActionStartTransaction, "", ocpp.ErrorFormationViolation)
			return nil, err
		}

		var result service.TagAuthorization
		if strings.TrimSpace(req.IdTag) == "" {
			// No RFID tag presented: accept with the short grace expiry.
			result = service.TagAuthorization{
				Status:     protocol.TagAccepted,
				ExpiryDate: time.Now().UTC().Add(service.DefaultExpiryGrace),
			}
		} else {
			result = auth.ResolveForStart(ctx, req.IdTag)
		}

		resp := protocol.StartTransactionResponse{IdTagInfo: result.IdTagInfo()}

		if result.Status == protocol.TagAccepted {
			txID, err := transactions.Start(ctx, service.StartParams{
				ChargePointID: chargePointID,
				ConnectorID:   req.ConnectorID,
				TagID:         service.NormalizeTagID(req.IdTag),
				MeterStartWh:  req.MeterStart,
				Timestamp:     req.Timestamp,
				StartResult:   result.Status,
			})
			if err != nil {
				logger.Error("start transaction persist failed",
					zap.String("charge_point_id", chargePointID),
					zap.Int("connector_id", req.ConnectorID),
					zap.Error(err))
				audit.Record(ctx, chargePointID, &req.ConnectorID, protocol.ActionStartTransaction, result.Status, ocpp.ErrorInternalError)
				return nil, ocpp.NewFault(ocpp.ErrorInternalError, "could not persist transaction")
			}
			resp.TransactionID = txID
		}

		logger.Info("start transaction",
			zap.String("charge_point_id", chargePointID),
			zap.Int("connector_id", req.ConnectorID),
			zap.String("status", result.Status),
			zap.Int64("transaction_id", resp.TransactionID))

		audit.Record(ctx, chargePointID, &req.ConnectorID, protocol.ActionStartTransaction, result.Status, "")
		return resp, nil
	}
}
