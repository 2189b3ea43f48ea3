package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Signaling.FlushInterval != 5*time.Second {
		t.Errorf("Expected default flush interval 5s, got %v", cfg.Signaling.FlushInterval)
	}
	if cfg.Signaling.GraceWindow != 2*time.Minute {
		t.Errorf("Expected default grace window 2m, got %v", cfg.Signaling.GraceWindow)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil database", func(c *Config) { c.Database = nil }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"nil signaling", func(c *Config) { c.Signaling = nil }},
		{"zero flush interval", func(c *Config) { c.Signaling.FlushInterval = 0 }},
		{"negative grace window", func(c *Config) { c.Signaling.GraceWindow = -time.Second }},
		{"negative rate limit", func(c *Config) { c.Signaling.ChatRateLimit = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}

	// Zero grace window and zero rate limit are valid: both mean disabled.
	cfg := DefaultConfig()
	cfg.Signaling.GraceWindow = 0
	cfg.Signaling.ChatRateLimit = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Zero grace window and rate limit must validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VIDO_HTTP_PORT", "9090")
	t.Setenv("VIDO_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("VIDO_SIGNALING_FLUSH_INTERVAL", "10s")
	t.Setenv("VIDO_SIGNALING_GRACE_WINDOW", "0s")
	t.Setenv("VIDO_SIGNALING_CHAT_RATE_LIMIT", "50")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Expected env db path, got %q", cfg.Database.Path)
	}
	if cfg.Signaling.FlushInterval != 10*time.Second {
		t.Errorf("Expected flush interval 10s, got %v", cfg.Signaling.FlushInterval)
	}
	if cfg.Signaling.GraceWindow != 0 {
		t.Errorf("Expected grace window disabled, got %v", cfg.Signaling.GraceWindow)
	}
	if cfg.Signaling.ChatRateLimit != 50 {
		t.Errorf("Expected rate limit 50, got %d", cfg.Signaling.ChatRateLimit)
	}
}

func TestLoadFromEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("VIDO_HTTP_PORT", "not-a-number")
	t.Setenv("VIDO_SIGNALING_FLUSH_INTERVAL", "soon")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Invalid port must fall back to default, got %d", cfg.HTTP.Port)
	}
	if cfg.Signaling.FlushInterval != 5*time.Second {
		t.Errorf("Invalid duration must fall back to default, got %v", cfg.Signaling.FlushInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 3000, "host": "127.0.0.1"},
		"signaling": {"flush_interval": "2s", "grace_window": "30s", "chat_rate_limit": 0}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.HTTP.Port != 3000 || cfg.HTTP.Host != "127.0.0.1" {
		t.Errorf("Unexpected HTTP config: %+v", cfg.HTTP)
	}
	if cfg.Signaling.FlushInterval != 2*time.Second {
		t.Errorf("Expected flush interval 2s, got %v", cfg.Signaling.FlushInterval)
	}
	if cfg.Signaling.GraceWindow != 30*time.Second {
		t.Errorf("Expected grace window 30s, got %v", cfg.Signaling.GraceWindow)
	}
	if cfg.Signaling.ChatRateLimit != 0 {
		t.Errorf("Expected explicit zero rate limit, got %d", cfg.Signaling.ChatRateLimit)
	}
	// Untouched sections keep defaults.
	if cfg.Database.Path != DefaultConfig().Database.Path {
		t.Errorf("Expected default database path, got %q", cfg.Database.Path)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadFromFile_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("VIDO_HTTP_PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"http": {"port": 3000}}`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// File wins over environment.
	cfg := LoadConfigWithPrecedence(path)
	if cfg.HTTP.Port != 3000 {
		t.Errorf("Expected file port 3000 to win, got %d", cfg.HTTP.Port)
	}

	// A broken file falls back to environment.
	cfg = LoadConfigWithPrecedence("/nonexistent/config.json")
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected env port 9090 fallback, got %d", cfg.HTTP.Port)
	}

	// No file at all uses environment over defaults.
	cfg = LoadConfigWithPrecedence("")
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.HTTP.Port)
	}
}
