package social

import (
	"io"
	"strings"
	"testing"

	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewXClientRequiresAllCredentials(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		apiSecret   string
		accessToken string
		tokenSecret string
		wantErr     string
	}{
		{name: "all present", apiKey: "k", apiSecret: "s", accessToken: "t", tokenSecret: "ts"},
		{name: "missing api key", apiSecret: "s", accessToken: "t", tokenSecret: "ts", wantErr: "api key"},
		{name: "missing api secret", apiKey: "k", accessToken: "t", tokenSecret: "ts", wantErr: "api secret"},
		{name: "missing access token", apiKey: "k", apiSecret: "s", tokenSecret: "ts", wantErr: "access token"},
		{name: "missing token secret", apiKey: "k", apiSecret: "s", accessToken: "t", wantErr: "access token secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewXClient(tt.apiKey, tt.apiSecret, tt.accessToken, tt.tokenSecret, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewXClient: %v", err)
				}
				if c == nil {
					t.Fatal("expected client")
				}
				return
			}
			if err == nil {
				t.Fatal("expected error for missing credential")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateOAuthHeader(t *testing.T) {
	c, err := NewXClient("consumer-key", "consumer-secret", "access-token", "token-secret", testLogger())
	if err != nil {
		t.Fatalf("NewXClient: %v", err)
	}

	header, err := c.generateOAuthHeader("POST", tweetEndpoint, nil)
	if err != nil {
		t.Fatalf("generateOAuthHeader: %v", err)
	}

	if !strings.HasPrefix(header, "OAuth ") {
		t.Fatalf("header = %q, want OAuth prefix", header)
	}

	for _, field := range []string{
		`oauth_consumer_key="consumer-key"`,
		`oauth_token="access-token"`,
		`oauth_signature_method="HMAC-SHA1"`,
		`oauth_version="1.0"`,
		"oauth_signature=",
		"oauth_nonce=",
		"oauth_timestamp=",
	} {
		if !strings.Contains(header, field) {
			t.Errorf("header missing %q: %s", field, header)
		}
	}
}

func TestPublishErrorFormatting(t *testing.T) {
	withStatus := &PublishError{StatusCode: 403, Message: "duplicate content"}
	if !strings.Contains(withStatus.Error(), "403") || !strings.Contains(withStatus.Error(), "duplicate content") {
		t.Fatalf("error = %q", withStatus.Error())
	}

	withoutStatus := &PublishError{Message: "connection refused"}
	if !strings.Contains(withoutStatus.Error(), "connection refused") {
		t.Fatalf("error = %q", withoutStatus.Error())
	}
}
