package api

import (
	"net/http"

	"log/slog"

	"github.com/draftwire/draftwire/internal/auth"
	"github.com/draftwire/draftwire/internal/metrics"
)

// SetupRoutes configures all HTTP routes.
func SetupRoutes(mux *http.ServeMux, webhooks *WebhookHandlers, admin *AdminHandlers, authConfig auth.Config, collector *metrics.HTTPCollector, logger *slog.Logger) {
	authMiddleware := auth.Middleware(authConfig)

	// Webhook routes (public, authenticated by secret-bearing URLs upstream)
	mux.HandleFunc("/webhook/curated", webhooks.HandleCuratedWebhook)
	mux.HandleFunc("/webhook/telegram", webhooks.HandleTelegramWebhook)

	// Health and metrics
	mux.HandleFunc("/health", webhooks.HandleHealth)
	mux.Handle("/metrics", collector.Handler())

	// Admin API
	mux.HandleFunc("/api/login", admin.HandleLogin)
	mux.Handle("/api/candidates", authMiddleware(http.HandlerFunc(admin.HandleListCandidates)))

	logger.Info("routes configured")
}
