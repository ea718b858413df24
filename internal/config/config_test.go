package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StreamDelay != 30*time.Millisecond {
		t.Errorf("StreamDelay = %v, want 30ms", cfg.StreamDelay)
	}
	if cfg.HistoryLimit != 3 {
		t.Errorf("HistoryLimit = %d, want 3", cfg.HistoryLimit)
	}
	if cfg.Provider.ChatModel == "" {
		t.Error("provider chat model should default")
	}
	if !cfg.ConversationLog.Enabled {
		t.Error("conversation log should default on")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("STREAM_DELAY", "5ms")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("PROVIDER_CHAT_MODEL", "test-model")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.StreamDelay != 5*time.Millisecond {
		t.Errorf("StreamDelay = %v", cfg.StreamDelay)
	}
	if cfg.RateLimit.RequestsPerWindow != 3 {
		t.Errorf("RequestsPerWindow = %d", cfg.RateLimit.RequestsPerWindow)
	}
	if cfg.Provider.ChatModel != "test-model" {
		t.Errorf("ChatModel = %q", cfg.Provider.ChatModel)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for empty PORT")
	}
}

func TestGetEnvDurationFallback(t *testing.T) {
	t.Setenv("SOME_DURATION", "not-a-duration")

	if got := getEnvDuration("SOME_DURATION", time.Minute); got != time.Minute {
		t.Errorf("got %v, want fallback", got)
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://tutor.example.com", false},
	}
	for _, tc := range cases {
		c := &Config{FrontendURL: tc.url}
		if got := c.IsDevelopment(); got != tc.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}
