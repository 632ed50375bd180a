// Package handlers implements the per-action request handlers registered on
// the dispatch table. Handlers hold no state of their own: everything lives in
// the persistence store or in the calling session.
package handlers

import (
	"context"
	"time"

	"ocppcs/internal/models"
	"ocppcs/internal/service"
)

// Authorizer resolves presented tag identifiers.
type Authorizer interface {
	Resolve(ctx context.Context, rawTagID string) service.TagAuthorization
	ResolveForStart(ctx context.Context, rawTagID string) service.TagAuthorization
}

// Audit records protocol exchanges in the durable message log.
type Audit interface {
	Record(ctx context.Context, chargePointID string, connectorID *int, action, result, errorCode string)
}

// ChargePointStore is the device metadata surface used by boot and heartbeat.
type ChargePointStore interface {
	UpsertBootInfo(ctx context.Context, cp *models.ChargePoint) error
	TouchHeartbeat(ctx context.Context, id string, t time.Time) error
}
