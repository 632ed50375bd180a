package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ocppcs/internal/config"
	"ocppcs/internal/db"
	"ocppcs/internal/handlers"
	"ocppcs/internal/httpapi"
	"ocppcs/internal/livestatus"
	"ocppcs/internal/ocpp"
	"ocppcs/internal/ocpp/protocol"
	"ocppcs/internal/redisclient"
	"ocppcs/internal/repository"
	"ocppcs/internal/service"
	"ocppcs/internal/ws"
)

// App wires all dependencies of the central system.
type App struct {
	httpServer *http.Server
	db         *sql.DB
	logger     *zap.Logger
}

// New builds the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	chargePointRepo := repository.NewChargePointRepository(pool)
	chargeTagRepo := repository.NewChargeTagRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	connectorStatusRepo := repository.NewConnectorStatusRepository(pool)
	messageLogRepo := repository.NewMessageLogRepository(pool)

	// The live status cache is optional: without redis the status API serves
	// the persisted connector rows only.
	var live service.LiveStore
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.New(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			pool.Close()
			return nil, err
		}
		live = livestatus.NewStore(redisClient, 24*time.Hour)
	}

	audit := service.NewAuditLogger(messageLogRepo, cfg.Protocol.DbMessageLog, logger)
	authorizer := service.NewTagAuthorizer(chargeTagRepo, transactionRepo, cfg.Protocol.DenyConcurrentTx, logger)
	statusService := service.NewStatusService(connectorStatusRepo, live, logger)
	transactionService := service.NewTransactionService(transactionRepo, statusService, logger)

	router := ocpp.NewRouter()
	registerOCPP16(router, chargePointRepo, authorizer, transactionService, statusService, audit, cfg.Protocol.HeartbeatInterval, logger)

	processor := ocpp.NewProcessor(router, audit, logger)
	registry := ws.NewRegistry()
	wsServer := ws.NewServer(registry, processor, chargePointRepo, cfg.PingInterval(), cfg.WriteTimeout(), cfg.CallTimeout(), logger)

	commands := service.NewCommandService(func(chargePointID string) (service.Caller, bool) {
		session, ok := registry.Lookup(chargePointID)
		if !ok {
			return nil, false
		}
		return session, true
	}, audit, logger)

	apiServer := httpapi.NewServer(cfg.HTTP.APIKey, chargePointRepo, statusService, registry.Online, commands, logger)

	mux := chi.NewRouter()
	mux.Get("/ocpp/{chargePointID}", wsServer.Handle)
	mux.Mount("/", apiServer.Routes())

	httpServer := &http.Server{
		Addr:        cfg.HTTPAddress(),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return &App{
		httpServer: httpServer,
		db:         pool,
		logger:     logger,
	}, nil
}

func registerOCPP16(
	router *ocpp.Router,
	chargePoints *repository.ChargePointRepository,
	authorizer *service.TagAuthorizer,
	transactions *service.TransactionService,
	status *service.StatusService,
	audit *service.AuditLogger,
	heartbeatInterval int,
	logger *zap.Logger,
) {
	v := protocol.VersionOCPP16
	router.Register(v, protocol.ActionBootNotification, handlers.NewBootNotificationHandler(chargePoints, audit, heartbeatInterval, logger))
	router.Register(v, protocol.ActionHeartbeat, handlers.NewHeartbeatHandler(chargePoints, audit, logger))
	router.Register(v, protocol.ActionAuthorize, handlers.NewAuthorizeHandler(authorizer, audit, logger))
	router.Register(v, protocol.ActionStartTransaction, handlers.NewStartTransactionHandler(authorizer, transactions, audit, logger))
	router.Register(v, protocol.ActionStopTransaction, handlers.NewStopTransactionHandler(authorizer, transactions, audit, logger))
	router.Register(v, protocol.ActionMeterValues, handlers.NewMeterValuesHandler(status, audit, logger))
	router.Register(v, protocol.ActionStatusNotification, handlers.NewStatusNotificationHandler(status, audit, logger))
	router.Register(v, protocol.ActionDataTransfer, handlers.NewDataTransferHandler(audit, logger))
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting ocpp central system", zap.String("addr", a.httpServer.Addr))
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
