package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/livestatus"
	"ocppcs/internal/models"
)

// ConnectorStatusStore is the persistence surface of the status tracker.
type ConnectorStatusStore interface {
	UpsertStatus(ctx context.Context, chargePointID string, connectorID int, status string, at time.Time) error
	UpsertMeter(ctx context.Context, chargePointID string, connectorID int, meterKWH float64, at time.Time) error
	UpsertStatusAndMeter(ctx context.Context, chargePointID string, connectorID int, status string, statusAt time.Time, meterKWH float64, meterAt time.Time) error
	ListByChargePoint(ctx context.Context, chargePointID string) ([]models.ConnectorStatus, error)
}

// LiveStore mirrors connector state for the status API. It is a cache: all
// writes are best effort and failures never propagate to the protocol path.
type LiveStore interface {
	Set(ctx context.Context, chargePointID string, connectorID int, c livestatus.Connector) error
	Merge(ctx context.Context, chargePointID string, connectorID int, update livestatus.Connector) error
	List(ctx context.Context, chargePointID string) (map[int]livestatus.Connector, error)
}

// MeterSample is one reading extracted from a MeterValues request.
type MeterSample struct {
	EnergyKWH     *float64
	PowerKW       *float64
	StateOfCharge *int
	At            time.Time
}

// StatusService maintains last known status/meter per connector.
type StatusService struct {
	store  ConnectorStatusStore
	live   LiveStore
	logger *zap.Logger
}

// NewStatusService builds the tracker. live may be nil when no cache is wired.
func NewStatusService(store ConnectorStatusStore, live LiveStore, logger *zap.Logger) *StatusService {
	return &StatusService{store: store, live: live, logger: logger}
}

// ReportStatus records a StatusNotification.
func (s *StatusService) ReportStatus(ctx context.Context, chargePointID string, connectorID int, status string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := s.store.UpsertStatus(ctx, chargePointID, connectorID, status, at)
	s.mirror(ctx, chargePointID, connectorID, livestatus.Connector{Status: status, UpdatedAt: at})
	return err
}

// ReportMeter records a mid-session meter reading without changing the
// occupied/available state.
func (s *StatusService) ReportMeter(ctx context.Context, chargePointID string, connectorID int, sample MeterSample) error {
	if sample.At.IsZero() {
		sample.At = time.Now().UTC()
	}
	var err error
	if sample.EnergyKWH != nil {
		err = s.store.UpsertMeter(ctx, chargePointID, connectorID, *sample.EnergyKWH, sample.At)
	}
	s.mirror(ctx, chargePointID, connectorID, livestatus.Connector{
		ChargeRateKW:  sample.PowerKW,
		MeterKWH:      sample.EnergyKWH,
		StateOfCharge: sample.StateOfCharge,
		UpdatedAt:     sample.At,
	})
	return err
}

// SetStatusWithMeter records a transition that also carries a meter reading,
// used when transactions start and stop.
func (s *StatusService) SetStatusWithMeter(ctx context.Context, chargePointID string, connectorID int, status string, meterKWH float64, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := s.store.UpsertStatusAndMeter(ctx, chargePointID, connectorID, status, at, meterKWH, at)
	s.mirror(ctx, chargePointID, connectorID, livestatus.Connector{
		Status:    status,
		MeterKWH:  &meterKWH,
		UpdatedAt: at,
	})
	return err
}

// Snapshot returns the persisted connector rows for one charge point.
func (s *StatusService) Snapshot(ctx context.Context, chargePointID string) ([]models.ConnectorStatus, error) {
	return s.store.ListByChargePoint(ctx, chargePointID)
}

// LiveSnapshot returns cached live connector state, or nil when no cache is wired.
func (s *StatusService) LiveSnapshot(ctx context.Context, chargePointID string) (map[int]livestatus.Connector, error) {
	if s.live == nil {
		return nil, nil
	}
	return s.live.List(ctx, chargePointID)
}

func (s *StatusService) mirror(ctx context.Context, chargePointID string, connectorID int, update livestatus.Connector) {
	if s.live == nil {
		return
	}
	if err := s.live.Merge(ctx, chargePointID, connectorID, update); err != nil {
		s.logger.Warn("live status cache update failed",
			zap.String("charge_point_id", chargePointID),
			zap.Int("connector_id", connectorID),
			zap.Error(err))
	}
}
