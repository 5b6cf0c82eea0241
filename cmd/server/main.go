package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	_ "github.com/lib/pq"

	"github.com/draftwire/draftwire/internal/api"
	"github.com/draftwire/draftwire/internal/auth"
	"github.com/draftwire/draftwire/internal/config"
	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/generation"
	"github.com/draftwire/draftwire/internal/logging"
	"github.com/draftwire/draftwire/internal/metrics"
	"github.com/draftwire/draftwire/internal/queue"
	"github.com/draftwire/draftwire/internal/review"
	"github.com/draftwire/draftwire/internal/server"
	"github.com/draftwire/draftwire/internal/social"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting draftwire")

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL

	db, err := database.Connect(context.Background(), dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Non-fatal so the app still serves health checks while a bad migration
	// gets sorted out.
	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	candidateRepo := database.NewCandidateRepository(db)
	curatedRepo := database.NewCuratedFeedRepository(db)

	composer := generation.NewComposer(cfg.OpenAI, logger)
	telegram := review.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)

	publisher, err := social.NewXClient(
		cfg.X.APIKey,
		cfg.X.APISecret,
		cfg.X.AccessToken,
		cfg.X.AccessTokenSecret,
		logger,
	)
	if err != nil {
		logger.Error("failed to init publisher", "error", err)
		os.Exit(1)
	}

	httpCollector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	pipelineCollector, err := metrics.NewPipelineCollector(httpCollector.Registry())
	if err != nil {
		logger.Error("failed to init pipeline metrics", "error", err)
		os.Exit(1)
	}

	manager := queue.NewManager(candidateRepo, telegram, publisher, logger, pipelineCollector)

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	webhooks := api.NewWebhookHandlers(curatedRepo, composer, manager, telegram, database.Health{DB: db}, logger)
	admin := api.NewAdminHandlers(candidateRepo, authConfig, logger)

	mux := http.NewServeMux()
	api.SetupRoutes(mux, webhooks, admin, authConfig, httpCollector, logger)

	srv := server.New(cfg.Server, logger, httpCollector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("draftwire started", "port", cfg.Server.Port)

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
