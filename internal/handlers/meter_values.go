package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/service"
)

// NewMeterValuesHandler extracts energy, power and state-of-charge samples and
// updates the connector's last meter reading. The occupied/available state is
// not changed by meter traffic.
func NewMeterValuesHandler(status *service.StatusService, audit Audit, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.MeterValuesRequest](payload)
		if err != nil {
			audit.Record(ctx, chargePointID, nil, protocol.ActionMeterValues, "", ocpp.ErrorFormationViolation)
			return nil, err
		}

		var last service.MeterSample
		for _, mv := range req.MeterValue {
			sample := extractSample(mv)
			if sample.EnergyKWH == nil && sample.PowerKW == nil && sample.StateOfCharge == nil {
				continue
			}
			last = sample
			if err := status.ReportMeter(ctx, chargePointID, req.ConnectorID, sample); err != nil {
				logger.Warn("meter update failed",
					zap.String("charge_point_id", chargePointID),
					zap.Int("connector_id", req.ConnectorID),
					zap.Error(err))
			}
		}

		result := "no usable samples"
		if last.EnergyKWH != nil {
			result = fmt.Sprintf("%.3f kWh", *last.EnergyKWH)
		}
		audit.Record(ctx, chargePointID, &req.ConnectorID, protocol.ActionMeterValues, result, "")

		return protocol.MeterValuesResponse{}, nil
	}
}

// extractSample pulls the measurands the status tracker cares about out of one
// meter value entry. An empty measurand means Energy.Active.Import.Register.
func extractSample(mv protocol.MeterValue) service.MeterSample {
	sample := service.MeterSample{At: mv.Timestamp}
	for _, sv := range mv.SampledValue {
		value, err := strconv.ParseFloat(strings.TrimSpace(sv.Value), 64)
		if err != nil {
			continue
		}
		measurand := sv.Measurand
		if measurand == "" {
			measurand = protocol.MeasurandEnergyActiveImport
		}
		switch measurand {
		case protocol.MeasurandEnergyActiveImport:
			kwh := value
			if !strings.EqualFold(sv.Unit, "kWh") {
				// Wire default is Wh.
				kwh = value / 1000
			}
			sample.EnergyKWH = &kwh
		case protocol.MeasurandPowerActiveImport:
			kw := value
			if !strings.EqualFold(sv.Unit, "kW") {
				kw = value / 1000
			}
			sample.PowerKW = &kw
		case protocol.MeasurandSoC:
			soc := int(value)
			sample.StateOfCharge = &soc
		}
	}
	return sample
}
