package config

import (
	"testing"
	"time"

	"log/slog"
)

func TestLoadDefaults(t *testing.T) {
	// Clear anything the host environment may have set.
	for _, key := range []string{"PORT", "SERVER_PORT", "LOG_LEVEL", "LOG_FORMAT", "OPENAI_MODEL", "OPENAI_TEMPERATURE", "FEEDS_CONFIG", "GENERATION_DELAY_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("port = %q, want %q", cfg.Server.Port, defaultPort)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("log level = %v, want info", cfg.Logging.Level)
	}
	if cfg.OpenAI.Model != defaultOpenAIModel {
		t.Errorf("model = %q, want %q", cfg.OpenAI.Model, defaultOpenAIModel)
	}
	if cfg.OpenAI.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", cfg.OpenAI.Temperature)
	}
	if cfg.Feeds.ConfigPath != defaultFeedsConfigPath {
		t.Errorf("feeds config = %q, want %q", cfg.Feeds.ConfigPath, defaultFeedsConfigPath)
	}
	if cfg.Feeds.GenerationDelay != defaultGenerationDelay {
		t.Errorf("generation delay = %v, want %v", cfg.Feeds.GenerationDelay, defaultGenerationDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")
	t.Setenv("OPENAI_TIMEOUT_SECONDS", "120")
	t.Setenv("SERVER_READ_TIMEOUT_SECONDS", "15")
	t.Setenv("GENERATION_DELAY_SECONDS", "2")
	t.Setenv("DATABASE_URL", "postgres://localhost/draftwire")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("log format = %q", cfg.Logging.Format)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.Temperature != 0.2 {
		t.Errorf("temperature = %v", cfg.OpenAI.Temperature)
	}
	if cfg.OpenAI.Timeout != 120*time.Second {
		t.Errorf("openai timeout = %v", cfg.OpenAI.Timeout)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("read timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Feeds.GenerationDelay != 2*time.Second {
		t.Errorf("generation delay = %v", cfg.Feeds.GenerationDelay)
	}
	if cfg.Database.URL != "postgres://localhost/draftwire" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
}

func TestLoadServerPortFallback(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %q, want 7070", cfg.Server.Port)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad log level", key: "LOG_LEVEL", value: "loud"},
		{name: "bad log format", key: "LOG_FORMAT", value: "xml"},
		{name: "bad temperature", key: "OPENAI_TEMPERATURE", value: "11"},
		{name: "non-numeric temperature", key: "OPENAI_TEMPERATURE", value: "warm"},
		{name: "negative timeout", key: "OPENAI_TIMEOUT_SECONDS", value: "-1"},
		{name: "non-numeric timeout", key: "SERVER_READ_TIMEOUT_SECONDS", value: "soon"},
		{name: "bad generation delay", key: "GENERATION_DELAY_SECONDS", value: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}
