package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/draftwire/draftwire/internal/models"
	"github.com/draftwire/draftwire/internal/queue"
	"github.com/draftwire/draftwire/internal/review"
)

// CuratedSource reads curated article batches keyed by webhook correlation
// pairs.
type CuratedSource interface {
	FetchArticles(ctx context.Context, userID, createdAt string) ([]models.Article, error)
}

// BatchGenerator produces posts for a curated article batch.
type BatchGenerator interface {
	GenerateBatch(ctx context.Context, articles []models.Article) ([]models.GeneratedPost, error)
}

// QueueManager is the approval-queue surface the handlers drive.
type QueueManager interface {
	Enqueue(ctx context.Context, c *models.Candidate) error
	PromoteNextIfIdle(ctx context.Context) error
	Resolve(ctx context.Context, reviewMessageID, replyText string) (*queue.Outcome, error)
}

// Notifier delivers operator-facing status messages.
type Notifier interface {
	SendStatus(ctx context.Context, text string) error
}

// HealthChecker reports backend availability for the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// WebhookHandlers serves the inbound webhook endpoints.
type WebhookHandlers struct {
	curated  CuratedSource
	composer BatchGenerator
	manager  QueueManager
	notifier Notifier
	health   HealthChecker
	logger   *slog.Logger
}

// NewWebhookHandlers creates the webhook handler set.
func NewWebhookHandlers(curated CuratedSource, composer BatchGenerator, manager QueueManager, notifier Notifier, health HealthChecker, logger *slog.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		curated:  curated,
		composer: composer,
		manager:  manager,
		notifier: notifier,
		health:   health,
		logger:   logger,
	}
}

type curatedWebhookRequest struct {
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

type curatedWebhookResponse struct {
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// HandleCuratedWebhook processes POST /webhook/curated: a notification that a
// curated article batch is ready, identified by (user_id, created_at).
func (h *WebhookHandlers) HandleCuratedWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req curatedWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" || req.CreatedAt == "" {
		writeError(w, http.StatusBadRequest, "user_id and created_at are required")
		return
	}

	ctx := r.Context()

	articles, err := h.curated.FetchArticles(ctx, req.UserID, req.CreatedAt)
	if err != nil {
		h.logger.Error("failed to fetch curated articles",
			"user_id", req.UserID,
			"created_at", req.CreatedAt,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Failed to fetch curated articles")
		return
	}

	if len(articles) == 0 {
		h.logger.Info("no curated articles found",
			"user_id", req.UserID,
			"created_at", req.CreatedAt,
		)
		writeJSON(w, http.StatusOK, curatedWebhookResponse{Message: "No articles found"})
		return
	}

	posts, err := h.composer.GenerateBatch(ctx, articles)
	if err != nil {
		h.logger.Error("batch generation failed", "error", err)
		h.notify(ctx, fmt.Sprintf("❌ Failed to generate posts for curated batch: %v", err))
		writeError(w, http.StatusInternalServerError, "Failed to generate posts")
		return
	}

	byID := make(map[string]models.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	processed := 0
	for _, post := range posts {
		article, ok := byID[post.ArticleID]
		if !ok {
			h.logger.Warn("generated post references unknown article", "article_id", post.ArticleID)
			continue
		}

		candidate := &models.Candidate{
			ArticleID:    article.ID,
			ArticleTitle: article.Title,
			PostText:     post.Text,
			SourceURL:    article.URL,
		}
		if err := h.manager.Enqueue(ctx, candidate); err != nil {
			h.logger.Error("failed to enqueue candidate", "article_id", article.ID, "error", err)
			continue
		}
		processed++
	}

	if err := h.manager.PromoteNextIfIdle(ctx); err != nil {
		h.logger.Error("failed to advance queue after curated batch", "error", err)
	}

	writeJSON(w, http.StatusOK, curatedWebhookResponse{
		Message:   "Batch processed",
		Processed: processed,
		Total:     len(articles),
	})
}

type telegramWebhookResponse struct {
	Message  string `json:"message"`
	Decision string `json:"decision,omitempty"`
	PostedID string `json:"posted_id,omitempty"`
}

// HandleTelegramWebhook processes POST /webhook/telegram. Telegram retries
// deliveries on non-200 responses, so every recognizable outcome including
// "not for us" answers 200; only a transport-level failure to read the body
// does not.
func (h *WebhookHandlers) HandleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	event := review.ParseUpdate(body)
	if event == nil {
		writeJSON(w, http.StatusOK, telegramWebhookResponse{Message: "Ignored"})
		return
	}

	outcome, err := h.manager.Resolve(r.Context(), event.RepliedToMessageID, event.Text)
	if err != nil && outcome == nil {
		if errors.Is(err, queue.ErrNotFound) {
			h.logger.Info("reply does not match a candidate", "review_message_id", event.RepliedToMessageID)
			writeJSON(w, http.StatusOK, telegramWebhookResponse{Message: "Record not found"})
			return
		}
		h.logger.Error("failed to resolve review reply",
			"review_message_id", event.RepliedToMessageID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Failed to resolve reply")
		return
	}
	if err != nil {
		// Resolution landed but a follow-up step failed; the reply must not
		// be redelivered, so log and answer 200.
		h.logger.Error("review resolved with errors",
			"review_message_id", event.RepliedToMessageID,
			"error", err,
		)
	}

	resp := telegramWebhookResponse{
		Message:  "Resolved",
		Decision: string(outcome.Decision),
		PostedID: outcome.PostedID,
	}
	if outcome.PublishErr != nil {
		resp.Message = "Resolved, publish failed"
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth processes GET /health.
func (h *WebhookHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.health.HealthCheck(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandlers) notify(ctx context.Context, text string) {
	if err := h.notifier.SendStatus(ctx, text); err != nil {
		h.logger.Error("failed to send status notification", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError sends a failure response. Error bodies are JSON like everything
// else these endpoints return; callers parse them, not humans.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
