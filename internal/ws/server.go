package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ocppcs/internal/models"
	"ocppcs/internal/ocpp/protocol"
)

// ChargePointAuth looks up device identities for connection admission.
type ChargePointAuth interface {
	Get(ctx context.Context, id string) (*models.ChargePoint, error)
}

// Server upgrades HTTP connections to OCPP websocket sessions.
type Server struct {
	registry     *Registry
	processor    Processor
	chargePoints ChargePointAuth
	logger       *zap.Logger
	pingInterval time.Duration
	writeTimeout time.Duration
	callTimeout  time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds the websocket endpoint.
func NewServer(registry *Registry, processor Processor, chargePoints ChargePointAuth, pingInterval, writeTimeout, callTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		registry:     registry,
		processor:    processor,
		chargePoints: chargePoints,
		logger:       logger,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		callTimeout:  callTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{protocol.VersionOCPP16},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle serves GET /ocpp/{chargePointID}. Unknown devices are rejected before
// the upgrade; devices with stored credentials must present matching HTTP
// Basic auth.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	chargePointID := chi.URLParam(r, "chargePointID")
	if chargePointID == "" {
		http.Error(w, "charge point id is required", http.StatusBadRequest)
		return
	}

	cp, err := s.chargePoints.Get(r.Context(), chargePointID)
	if err != nil {
		s.logger.Error("charge point lookup failed",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err))
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if cp == nil {
		s.logger.Warn("connection from unknown charge point",
			zap.String("charge_point_id", chargePointID))
		http.Error(w, "unknown charge point", http.StatusNotFound)
		return
	}

	if cp.PasswordHash != "" && !s.checkBasicAuth(r, cp) {
		w.Header().Set("WWW-Authenticate", `Basic realm="ocpp"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err))
		return
	}

	version := conn.Subprotocol()
	if version == "" {
		version = protocol.VersionOCPP16
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := NewSession(chargePointID, version, conn, s.processor, s.pingInterval, s.writeTimeout, s.callTimeout, s.logger, func(sess *Session) {
		s.registry.Unregister(sess)
		cancel()
	})
	s.registry.Register(session)

	go session.Start(ctx)
	s.logger.Info("charge point connected",
		zap.String("charge_point_id", chargePointID),
		zap.String("version", version))
}

func (s *Server) checkBasicAuth(r *http.Request, cp *models.ChargePoint) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	expectedUser := cp.Username
	if expectedUser == "" {
		expectedUser = cp.ID
	}
	if user != expectedUser {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(cp.PasswordHash), []byte(pass)) == nil
}
