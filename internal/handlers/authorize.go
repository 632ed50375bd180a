package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/service"
)

// NewAuthorizeHandler resolves a presented tag to an authorization outcome.
// The resolver never raises outward, so this handler always answers.
func NewAuthorizeHandler(auth Authorizer, audit Audit, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.AuthorizeRequest](payload)
		if err != nil {
			audit.Record(ctx, chargePointID, nil, protocol.ActionAuthorize, "", ocpp.ErrorFormationViolation)
			return nil, err
		}

		result := auth.Resolve(ctx, req.IdTag)
		logger.Info("authorize",
			zap.String("charge_point_id", chargePointID),
			zap.String("tag_id", service.NormalizeTagID(req.IdTag)),
			zap.String("status", result.Status))

		audit.Record(ctx, chargePointID, nil, protocol.ActionAuthorize,
			fmt.Sprintf("'%s'=>%s", service.NormalizeTagID(req.IdTag), result.Status), "")

		return protocol.AuthorizeResponse{IdTagInfo: result.IdTagInfo()}, nil
	}
}
