package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"github.com/draftwire/draftwire/internal/config"
	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/generation"
	"github.com/draftwire/draftwire/internal/ingestion"
	"github.com/draftwire/draftwire/internal/logging"
	"github.com/draftwire/draftwire/internal/queue"
	"github.com/draftwire/draftwire/internal/review"
	"github.com/draftwire/draftwire/internal/social"
)

// feedrun executes one pull-ingestion pass and exits. Intended to run under
// an external scheduler (cron, Cloud Scheduler); the exit code tells the
// scheduler whether the run completed.
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

	logger.Info("starting feed run")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feeds, err := ingestion.LoadFeedsFile(cfg.Feeds.ConfigPath)
	if err != nil {
		logger.Error("failed to load feeds config", "path", cfg.Feeds.ConfigPath, "error", err)
		os.Exit(1)
	}

	feedURLs := feeds.URLs()
	if len(feedURLs) == 0 {
		logger.Warn("no feeds configured, nothing to do")
		os.Exit(0)
	}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL

	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	candidateRepo := database.NewCandidateRepository(db)
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

	manager := queue.NewManager(candidateRepo, telegram, publisher, logger, nil)

	var limiter *rate.Limiter
	if cfg.Feeds.GenerationDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Feeds.GenerationDelay), 1)
	}

	connector := ingestion.NewFeedConnector(logger)
	processor := ingestion.NewProcessor(connector, candidateRepo, composer, manager, limiter, logger)

	stats, err := processor.Run(ctx, feedURLs)
	if err != nil {
		logger.Error("feed run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("feed run complete",
		"fetched", stats.Fetched,
		"duplicates", stats.Duplicates,
		"enqueued", stats.Enqueued,
		"failed", stats.Failed,
	)
}
