package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"taxibot/internal/app"
	"taxibot/internal/config"
	"taxibot/internal/gateway/telegram"
	"taxibot/internal/handler"
	"taxibot/internal/logging"
	internalRedis "taxibot/internal/redis"
	"taxibot/internal/repository/postgres"
	"taxibot/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger := logging.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if cfg.Telegram.BotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database gets instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	botClient := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIBaseURL)

	// Wire dependencies.
	server := wireServer(db, redisClient, botClient, nrApp, cfg, logger)

	// Register the webhook with Telegram when a public URL is configured.
	if cfg.Telegram.WebhookURL != "" {
		if err := botClient.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			log.Fatalf("failed to set webhook: %v", err)
		}
		logger.Info("webhook registered", "url", cfg.Telegram.WebhookURL)
	}

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	botClient *telegram.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *slog.Logger,
) *http.Server {
	// Redis stores.
	sessionStore := internalRedis.NewSessionStore(redisClient)
	guardStore := internalRedis.NewGuardStore(redisClient)

	// Repositories.
	riderRepo := postgres.NewRiderRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	groupRepo := postgres.NewGroupRepository(db)

	// Services.
	gate := service.NewSessionGate(riderRepo, logger)
	broadcaster := service.NewDispatchBroadcaster(groupRepo, botClient, logger)
	workflow := service.NewOrderWorkflow(riderRepo, orderRepo, sessionStore, guardStore, broadcaster, logger)
	arbiter := service.NewAssignmentArbiter(driverRepo, orderRepo, logger)
	notifier := service.NewNotificationRouter(botClient, riderRepo, groupRepo, logger)
	groupSvc := service.NewGroupService(groupRepo, logger)

	// Handler.
	webhookHandler := handler.NewWebhookHandler(gate, workflow, arbiter, notifier, groupSvc, botClient, logger)

	// Router.
	router := app.NewRouter(app.RouterDeps{
		Webhook:       webhookHandler,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
