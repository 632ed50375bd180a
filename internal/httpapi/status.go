package httpapi

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ConnectorView is the per-connector slice of the status response.
type ConnectorView struct {
	Status        string   `json:"status"`
	ChargeRateKW  *float64 `json:"chargeRateKW,omitempty"`
	MeterKWH      *float64 `json:"meterKWH,omitempty"`
	StateOfCharge *int     `json:"stateOfCharge,omitempty"`
}

// ChargePointView is the per-device slice of the status response.
type ChargePointView struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name,omitempty"`
	Online     bool                     `json:"online"`
	Connectors map[string]ConnectorView `json:"connectors"`
}

// handleStatus returns the overview consumed by the administrative side. A
// failure reading one charge point excludes that charge point from the
// response instead of failing the whole request.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	chargePoints, err := s.chargePoints.List(ctx)
	if err != nil {
		s.logger.Error("charge point list failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not list charge points")
		return
	}

	views := make([]ChargePointView, 0, len(chargePoints))
	for _, cp := range chargePoints {
		view, err := s.chargePointView(r, cp.ID, cp.Name)
		if err != nil {
			s.logger.Warn("excluding charge point from status response",
				zap.String("charge_point_id", cp.ID),
				zap.Error(err))
			continue
		}
		views = append(views, view)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"chargePoints": views})
}

func (s *Server) chargePointView(r *http.Request, chargePointID, name string) (ChargePointView, error) {
	ctx := r.Context()

	view := ChargePointView{
		ID:         chargePointID,
		Name:       name,
		Online:     s.online(chargePointID),
		Connectors: make(map[string]ConnectorView),
	}

	rows, err := s.status.Snapshot(ctx, chargePointID)
	if err != nil {
		return ChargePointView{}, err
	}
	for _, row := range rows {
		cv := ConnectorView{Status: row.LastStatus}
		if row.LastMeter != nil {
			cv.MeterKWH = row.LastMeter
		}
		view.Connectors[strconv.Itoa(row.ConnectorID)] = cv
	}

	// The live cache carries charge rate and state of charge the relational
	// rows do not. Cache failures degrade to the persisted view.
	live, err := s.status.LiveSnapshot(ctx, chargePointID)
	if err != nil {
		s.logger.Warn("live snapshot failed",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err))
		return view, nil
	}
	for connectorID, lc := range live {
		key := strconv.Itoa(connectorID)
		cv := view.Connectors[key]
		if lc.Status != "" {
			cv.Status = lc.Status
		}
		if lc.MeterKWH != nil {
			cv.MeterKWH = lc.MeterKWH
		}
		cv.ChargeRateKW = lc.ChargeRateKW
		cv.StateOfCharge = lc.StateOfCharge
		view.Connectors[key] = cv
	}

	return view, nil
}
