package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/draftwire/draftwire/internal/config"
	"github.com/draftwire/draftwire/internal/models"
)

// notFoundSentinel is the text the model is instructed to return when an
// article cannot support a post. Filtered from single-article results.
const notFoundSentinel = "not found"

const batchSystemPrompt = `You are a social media copywriter. You will receive a JSON array of articles, each with an "id", "title", "webUrl" and "article_summary".

Write one engaging post of at most 240 characters for each article. Do not include hashtags or URLs in the post text.

Respond with a single JSON object mapping each article id to its post text, for example:
{"abc-123": "post text", "def-456": "post text"}

Respond with JSON only, no prose before or after it.`

const singleSystemPrompt = `You are a social media copywriter. You will receive one article with a title, link and content.

Write one engaging post of at most 240 characters based on the article. Do not include hashtags or URLs in the post text. If the article content is missing or cannot support a post, use the exact text "Not found" instead.

Respond with a single JSON object of the form:
{"tweets": ["post text"]}

Respond with JSON only, no prose before or after it.`

// ParseError indicates the model response could not be interpreted as the
// expected JSON shape. Distinct from an empty result: a parse failure means
// the whole generation call produced nothing usable.
type ParseError struct {
	Reason   string
	Response string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable generation response: %s", e.Reason)
}

// Composer turns articles into candidate post texts using the OpenAI chat
// completion API.
type Composer struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *slog.Logger
}

// NewComposer creates a composer from OpenAI configuration.
func NewComposer(cfg config.OpenAIConfig, logger *slog.Logger) *Composer {
	return &Composer{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

type batchArticle struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	WebURL  string `json:"webUrl"`
	Summary string `json:"article_summary"`
}

// GenerateBatch produces one post per curated article in a single model call.
// The result preserves the input article order; articles the model skipped or
// answered with empty text are dropped. An unparseable response is a
// ParseError, not an empty result.
func (c *Composer) GenerateBatch(ctx context.Context, articles []models.Article) ([]models.GeneratedPost, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	batch := make([]batchArticle, 0, len(articles))
	for _, a := range articles {
		batch = append(batch, batchArticle{
			ID:      a.ID,
			Title:   a.Title,
			WebURL:  a.URL,
			Summary: a.Summary,
		})
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal article batch: %w", err)
	}

	content, err := c.complete(ctx, batchSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var byID map[string]string
	if err := json.Unmarshal([]byte(raw), &byID); err != nil {
		return nil, &ParseError{Reason: err.Error(), Response: content}
	}

	known := make(map[string]bool, len(articles))
	for _, a := range articles {
		known[a.ID] = true
	}
	for id := range byID {
		if !known[id] {
			c.logger.Warn("generation response references unknown article", "article_id", id)
		}
	}

	posts := make([]models.GeneratedPost, 0, len(articles))
	for _, a := range articles {
		text := strings.TrimSpace(byID[a.ID])
		if text == "" {
			c.logger.Warn("no post generated for article", "article_id", a.ID)
			continue
		}
		posts = append(posts, models.GeneratedPost{ArticleID: a.ID, Text: text})
	}

	c.logger.Info("batch generation complete",
		"articles", len(articles),
		"posts", len(posts),
	)

	return posts, nil
}

// GenerateSingle produces post texts for one article. The model may decline
// with the "Not found" sentinel, which is filtered out; a fully declined
// article yields an empty slice and no error.
func (c *Composer) GenerateSingle(ctx context.Context, a models.Article) ([]string, error) {
	userPrompt := fmt.Sprintf("Title: %s\nLink: %s\n\n%s", a.Title, a.URL, a.Content)

	content, err := c.complete(ctx, singleSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Tweets []string `json:"tweets"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &ParseError{Reason: err.Error(), Response: content}
	}

	var texts []string
	for _, t := range resp.Tweets {
		t = strings.TrimSpace(t)
		if t == "" || strings.ToLower(t) == notFoundSentinel {
			continue
		}
		texts = append(texts, t)
	}

	return texts, nil
}

func (c *Composer) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	apiCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from model %s", c.model)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("completion received",
		"model", c.model,
		"content_length", len(content),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return content, nil
}

// extractJSON locates the outermost JSON object in a model response, which
// may be wrapped in prose or a markdown fence despite the prompt.
func extractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", &ParseError{Reason: "no JSON object found", Response: content}
	}
	return content[start : end+1], nil
}
