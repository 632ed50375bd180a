package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ocppcs/internal/models"
	"ocppcs/internal/service"
)

// ChargePointLister enumerates known charge points for the status response.
type ChargePointLister interface {
	List(ctx context.Context) ([]models.ChargePoint, error)
}

// OnlineChecker reports whether a charge point has a live session.
type OnlineChecker func(chargePointID string) bool

// Server is the operator-facing HTTP surface: status overview plus the
// server-initiated command endpoints.
type Server struct {
	apiKey       string
	chargePoints ChargePointLister
	status       *service.StatusService
	online       OnlineChecker
	commands     *service.CommandService
	logger       *zap.Logger
}

// NewServer builds the API server.
func NewServer(apiKey string, chargePoints ChargePointLister, status *service.StatusService, online OnlineChecker, commands *service.CommandService, logger *zap.Logger) *Server {
	return &Server{
		apiKey:       apiKey,
		chargePoints: chargePoints,
		status:       status,
		online:       online,
		commands:     commands,
		logger:       logger,
	}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return RequireAPIKey(s.apiKey, next) })
		r.Get("/status", s.handleStatus)
		r.Post("/chargepoints/{chargePointID}/reset", s.handleReset)
		r.Post("/chargepoints/{chargePointID}/unlock", s.handleUnlock)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
