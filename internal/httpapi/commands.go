package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ocppcs/internal/ws"
)

type resetRequest struct {
	Type string `json:"type"`
}

type unlockRequest struct {
	ConnectorID int `json:"connectorId"`
}

type commandResponse struct {
	Status string `json:"status"`
}

// handleReset issues a Reset call to the connected device and reports its
// answer.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	chargePointID := chi.URLParam(r, "chargePointID")

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Type != "Soft" && req.Type != "Hard" {
		s.writeError(w, http.StatusBadRequest, "type must be Soft or Hard")
		return
	}

	status, err := s.commands.Reset(r.Context(), chargePointID, req.Type)
	if err != nil {
		s.writeCommandError(w, chargePointID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, commandResponse{Status: status})
}

// handleUnlock issues an UnlockConnector call to the connected device.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	chargePointID := chi.URLParam(r, "chargePointID")

	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.ConnectorID <= 0 {
		s.writeError(w, http.StatusBadRequest, "connectorId must be positive")
		return
	}

	status, err := s.commands.UnlockConnector(r.Context(), chargePointID, req.ConnectorID)
	if err != nil {
		s.writeCommandError(w, chargePointID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, commandResponse{Status: status})
}

func (s *Server) writeCommandError(w http.ResponseWriter, chargePointID string, err error) {
	switch {
	case errors.Is(err, ws.ErrNoSession):
		s.writeError(w, http.StatusConflict, "charge point is not connected")
	case errors.Is(err, ws.ErrCallTimeout):
		s.writeError(w, http.StatusGatewayTimeout, "charge point did not answer")
	default:
		s.logger.Error("command failed",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err.Error())
	}
}
