package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/draftwire/draftwire/internal/models"
)

const defaultBaseURL = "https://api.telegram.org"

// DeliveryError indicates the review message could not be delivered to the
// review channel. The queue manager releases the claimed candidate when it
// sees one.
type DeliveryError struct {
	Op  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("telegram %s failed: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Client sends review requests and status notifications through the Telegram
// Bot API and parses inbound webhook updates.
type Client struct {
	botToken   string
	chatID     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Telegram review client.
func NewClient(botToken, chatID string, logger *slog.Logger) *Client {
	return &Client{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// RequestReview sends the candidate text to the review chat and returns the
// Telegram message id the moderator will reply to. The post text is HTML
// escaped; the source link is appended as an anchor so the message stays
// readable without a link preview.
func (c *Client) RequestReview(ctx context.Context, cand *models.Candidate) (string, error) {
	text := html.EscapeString(cand.PostText)
	if cand.SourceURL != "" {
		text = fmt.Sprintf("%s\n\n<a href=\"%s\">Read full article here</a>", text, cand.SourceURL)
	}

	req := sendMessageRequest{
		ChatID:                c.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}

	resp, err := c.sendMessage(ctx, req)
	if err != nil {
		return "", &DeliveryError{Op: "review request", Err: err}
	}

	messageID := strconv.FormatInt(resp.Result.MessageID, 10)
	c.logger.Info("review request sent",
		"candidate_id", cand.ID,
		"review_message_id", messageID,
	)

	return messageID, nil
}

// SendStatus sends a plain status notification to the review chat.
func (c *Client) SendStatus(ctx context.Context, text string) error {
	req := sendMessageRequest{
		ChatID: c.chatID,
		Text:   text,
	}

	if _, err := c.sendMessage(ctx, req); err != nil {
		return &DeliveryError{Op: "status notification", Err: err}
	}
	return nil
}

func (c *Client) sendMessage(ctx context.Context, req sendMessageRequest) (*sendMessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", httpResp.StatusCode, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("api error (status %d): %s", httpResp.StatusCode, resp.Description)
	}

	return &resp, nil
}

// ReplyEvent is a moderator reply extracted from a Telegram webhook update.
type ReplyEvent struct {
	// RepliedToMessageID is the id of the bot message the moderator replied
	// to, matched against the stored review message id.
	RepliedToMessageID string
	// Text is the raw reply text. May be empty for media-only replies.
	Text string
}

type update struct {
	Message *struct {
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
		ReplyTo   *struct {
			MessageID int64 `json:"message_id"`
		} `json:"reply_to_message"`
	} `json:"message"`
}

// ParseUpdate extracts a moderator reply from a raw webhook body. Returns nil
// for anything that is not a reply to an existing message: edited messages,
// channel posts, non-reply chat messages, or malformed payloads. Those are
// expected traffic, not errors.
func ParseUpdate(body []byte) *ReplyEvent {
	var u update
	if err := json.Unmarshal(body, &u); err != nil {
		return nil
	}

	if u.Message == nil || u.Message.ReplyTo == nil {
		return nil
	}

	return &ReplyEvent{
		RepliedToMessageID: strconv.FormatInt(u.Message.ReplyTo.MessageID, 10),
		Text:               u.Message.Text,
	}
}
