package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	contactsdomain "github.com/callflow/engine/internal/contacts/domain"
	contactspg "github.com/callflow/engine/internal/contacts/repository/postgres"
	"github.com/callflow/engine/internal/platform/config"
	"github.com/callflow/engine/internal/platform/database"
	"github.com/callflow/engine/internal/platform/localstore"
	"github.com/callflow/engine/internal/platform/logger"
	"github.com/callflow/engine/internal/platform/messagebroker"
	"github.com/callflow/engine/internal/ruleengine/adapters/smsprovider"
	"github.com/callflow/engine/internal/ruleengine/adapters/telemetry"
	"github.com/callflow/engine/internal/ruleengine/app"
	"github.com/callflow/engine/internal/ruleengine/middleware"
	sqliterepo "github.com/callflow/engine/internal/ruleengine/repository/sqlite"
	enginehttp "github.com/callflow/engine/internal/ruleengine/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New("rule_engine_service", cfg.LogLevel)
	appLogger.Info("Rule engine service starting...", "log_level", cfg.LogLevel)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Local state: day ledger + last known good config snapshot.
	stateDB, err := localstore.Open(cfg.SQLitePath)
	if err != nil {
		appLogger.Error("Failed to open local state database", "error", err, "path", cfg.SQLitePath)
		os.Exit(1)
	}
	defer stateDB.Close()

	ledgerRepo, err := sqliterepo.NewLedgerRepository(stateDB)
	if err != nil {
		appLogger.Error("Failed to initialize day ledger repository", "error", err)
		os.Exit(1)
	}
	snapshotRepo, err := sqliterepo.NewSnapshotRepository(stateDB)
	if err != nil {
		appLogger.Error("Failed to initialize config snapshot repository", "error", err)
		os.Exit(1)
	}

	// Contact directory is optional; without it every caller counts as a
	// non-contact.
	var directory contactsdomain.Directory = contactsdomain.NullDirectory{}
	if cfg.PostgresDSN != "" {
		dbPool, err := database.NewDBPool(appCtx, cfg.PostgresDSN)
		if err != nil {
			appLogger.Error("Failed to connect to contact directory database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		directory = contactspg.NewPgContactDirectory(dbPool, appLogger)
		appLogger.Info("Contact directory connected")
	} else {
		appLogger.Info("No contact directory configured; contact filters treat all callers as non-contacts")
	}

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, "rule-engine-service", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	provider, err := buildProvider(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to configure SMS provider", "error", err)
		os.Exit(1)
	}
	appLogger.Info("SMS provider configured", "provider", provider.GetName())

	telemetrySink := telemetry.NewNATSSink(natsClient, cfg.NATSMessageLogSubject, appLogger)

	engine := app.NewRuleEngine(ledgerRepo, snapshotRepo, directory, appLogger)
	engine.Restore(appCtx)

	dispatchService := app.NewDispatchService(engine, provider, telemetrySink, appLogger)

	validate := validator.New()
	consumer := app.NewEventConsumer(natsClient, dispatchService, engine, appLogger, validate)

	go func() {
		if err := consumer.StartConsumingCallEvents(appCtx, cfg.NATSCallEventSubject, cfg.NATSCallEventQueueGroup); err != nil {
			appLogger.Error("Call event consumer stopped", "error", err)
			cancelAppCtx()
		}
	}()
	go func() {
		if err := consumer.StartConsumingConfigUpdates(appCtx, cfg.NATSConfigSubject); err != nil {
			appLogger.Error("Config update consumer stopped", "error", err)
			cancelAppCtx()
		}
	}()

	eventHandler := enginehttp.NewEventHandler(dispatchService, appLogger, validate)
	configHandler := enginehttp.NewConfigHandler(engine, appLogger)
	authMW := middleware.AuthMiddleware(cfg.JWTAccessSecret, appLogger)
	router := enginehttp.NewRouter(eventHandler, configHandler, authMW)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		appLogger.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", "error", err)
			cancelAppCtx()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		appLogger.Info("Shutdown signal received", "signal", sig.String())
	case <-appCtx.Done():
		appLogger.Info("Application context cancelled; shutting down")
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}

	appLogger.Info("Rule engine service stopped")
}

func buildProvider(cfg *config.Config, appLogger *slog.Logger) (smsprovider.Adapter, error) {
	switch cfg.SMSProvider {
	case "mock":
		return smsprovider.NewMockProvider(appLogger, "mock-provider", 0, 0, 0), nil
	case "gateway":
		if cfg.GatewayAPIURL == "" {
			return nil, fmt.Errorf("gateway provider selected but APP_GATEWAY_API_URL is empty")
		}
		httpClient := &http.Client{Timeout: time.Duration(cfg.GatewayTimeoutSecs) * time.Second}
		return smsprovider.NewGatewayProvider(appLogger, cfg.GatewayAPIURL, cfg.GatewayAPIKey, cfg.GatewaySenderID, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown SMS provider %q", cfg.SMSProvider)
	}
}
