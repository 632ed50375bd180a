package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/ws"
)

// Caller issues a server-initiated call on a live session.
type Caller interface {
	Call(ctx context.Context, action string, payload interface{}) (ws.CallOutcome, error)
}

// SessionLookup resolves a charge point identity to its live session.
type SessionLookup func(chargePointID string) (Caller, bool)

// CommandAudit records command outcomes in the message log.
type CommandAudit interface {
	Record(ctx context.Context, chargePointID string, connectorID *int, action, result, errorCode string)
}

// CommandService drives server-initiated operations (Reset, UnlockConnector)
// through the connection registry. The issuing flow suspends until the device
// answers or the session's call timeout elapses; retries are the caller's
// decision.
type CommandService struct {
	lookup SessionLookup
	audit  CommandAudit
	logger *zap.Logger
}

// NewCommandService builds the service.
func NewCommandService(lookup SessionLookup, audit CommandAudit, logger *zap.Logger) *CommandService {
	return &CommandService{lookup: lookup, audit: audit, logger: logger}
}

// Reset asks the device to restart. resetType is "Soft" or "Hard".
func (c *CommandService) Reset(ctx context.Context, chargePointID, resetType string) (string, error) {
	outcome, err := c.send(ctx, chargePointID, protocol.ActionReset, protocol.ResetRequest{Type: resetType})
	if err != nil {
		return "", err
	}

	resp, err := ocpp.Decode[protocol.ResetResponse](outcome.Result)
	if err != nil {
		return "", fmt.Errorf("reset: decode answer: %w", err)
	}
	c.audit.Record(ctx, chargePointID, nil, protocol.ActionReset, resp.Status, "")
	return resp.Status, nil
}

// UnlockConnector asks the device to release a connector's cable lock.
func (c *CommandService) UnlockConnector(ctx context.Context, chargePointID string, connectorID int) (string, error) {
	outcome, err := c.send(ctx, chargePointID, protocol.ActionUnlockConnector, protocol.UnlockConnectorRequest{ConnectorID: connectorID})
	if err != nil {
		return "", err
	}

	resp, err := ocpp.Decode[protocol.UnlockConnectorResponse](outcome.Result)
	if err != nil {
		return "", fmt.Errorf("unlock connector: decode answer: %w", err)
	}
	c.audit.Record(ctx, chargePointID, &connectorID, protocol.ActionUnlockConnector, resp.Status, "")
	return resp.Status, nil
}

func (c *CommandService) send(ctx context.Context, chargePointID, action string, payload interface{}) (ws.CallOutcome, error) {
	session, ok := c.lookup(chargePointID)
	if !ok {
		return ws.CallOutcome{}, ws.ErrNoSession
	}

	outcome, err := session.Call(ctx, action, payload)
	if err != nil {
		c.logger.Warn("command failed",
			zap.String("charge_point_id", chargePointID),
			zap.String("action", action),
			zap.Error(err))
		return ws.CallOutcome{}, err
	}
	if outcome.IsError() {
		c.audit.Record(ctx, chargePointID, nil, action, outcome.ErrorDescription, outcome.ErrorCode)
		return ws.CallOutcome{}, fmt.Errorf("%s rejected by device: %s (%s)", action, outcome.ErrorCode, outcome.ErrorDescription)
	}
	return outcome, nil
}
