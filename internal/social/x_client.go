package social

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const tweetEndpoint = "https://api.twitter.com/2/tweets"

// PublishError indicates the X API rejected or failed a publish attempt. The
// failure is terminal for the post being published; callers do not retry.
type PublishError struct {
	StatusCode int
	Message    string
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("x api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("x api error: %s", e.Message)
}

// XClient posts to X using API v2 with OAuth 1.0a user-context signing.
type XClient struct {
	apiKey            string
	apiSecret         string
	accessToken       string
	accessTokenSecret string
	httpClient        *http.Client
	logger            *slog.Logger
}

// NewXClient creates a new X API client. All four credentials are required;
// a missing credential fails construction rather than the first publish.
func NewXClient(apiKey, apiSecret, accessToken, accessTokenSecret string, logger *slog.Logger) (*XClient, error) {
	switch {
	case apiKey == "":
		return nil, fmt.Errorf("x client: api key is required")
	case apiSecret == "":
		return nil, fmt.Errorf("x client: api secret is required")
	case accessToken == "":
		return nil, fmt.Errorf("x client: access token is required")
	case accessTokenSecret == "":
		return nil, fmt.Errorf("x client: access token secret is required")
	}

	return &XClient{
		apiKey:            apiKey,
		apiSecret:         apiSecret,
		accessToken:       accessToken,
		accessTokenSecret: accessTokenSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"errors,omitempty"`
}

// Publish posts the text and returns the provider-assigned post id.
func (c *XClient) Publish(ctx context.Context, text string) (string, error) {
	bodyBytes, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tweetEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	authHeader, err := c.generateOAuthHeader(http.MethodPost, tweetEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate OAuth header: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &PublishError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var tweetResp tweetResponse
	if err := json.Unmarshal(respBody, &tweetResp); err != nil {
		return "", &PublishError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unparseable response: %s", string(respBody))}
	}

	if resp.StatusCode != http.StatusCreated {
		if len(tweetResp.Errors) > 0 {
			return "", &PublishError{StatusCode: resp.StatusCode, Message: tweetResp.Errors[0].Message}
		}
		return "", &PublishError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	c.logger.Info("post published",
		"post_id", tweetResp.Data.ID,
		"text_length", len(text),
	)

	return tweetResp.Data.ID, nil
}

// generateOAuthHeader builds an OAuth 1.0a HMAC-SHA1 authorization header.
func (c *XClient) generateOAuthHeader(method, apiURL string, params map[string]string) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonceStr := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base64.StdEncoding.EncodeToString(nonce))

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.apiKey,
		"oauth_nonce":            nonceStr,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        timestamp,
		"oauth_token":            c.accessToken,
		"oauth_version":          "1.0",
	}

	allParams := make(map[string]string)
	for k, v := range oauthParams {
		allParams[k] = v
	}
	for k, v := range params {
		allParams[k] = v
	}

	var paramPairs []string
	for k, v := range allParams {
		paramPairs = append(paramPairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(paramPairs)
	paramString := strings.Join(paramPairs, "&")

	signatureBase := method + "&" + url.QueryEscape(apiURL) + "&" + url.QueryEscape(paramString)
	signingKey := url.QueryEscape(c.apiSecret) + "&" + url.QueryEscape(c.accessTokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(signatureBase))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	oauthParams["oauth_signature"] = signature

	var authPairs []string
	for k, v := range oauthParams {
		authPairs = append(authPairs, url.QueryEscape(k)+"=\""+url.QueryEscape(v)+"\"")
	}
	sort.Strings(authPairs)

	return "OAuth " + strings.Join(authPairs, ", "), nil
}
