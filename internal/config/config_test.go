package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://cinechat:cinechat@db:5432/cinechat?sslmode=disable")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("TMDB_API_KEY", "env-tmdb")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "8080"
logLevel: "info"
databaseURL: "postgres://localhost:5432/cinechat"
generationProvider: "gemini"
generationModel: "gemini-2.0-flash"
geminiAPIKey: "file-key"
tmdbAPIKey: "file-tmdb"
aiReplyDelayMs: 500
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseURL != "postgres://cinechat:cinechat@db:5432/cinechat?sslmode=disable" {
		t.Fatalf("databaseURL = %q, want env override", cfg.DatabaseURL)
	}
	if cfg.GeminiAPIKey != "env-key" {
		t.Fatalf("geminiAPIKey = %q, want env override", cfg.GeminiAPIKey)
	}
	if cfg.TMDBAPIKey != "env-tmdb" {
		t.Fatalf("tmdbAPIKey = %q, want env override", cfg.TMDBAPIKey)
	}
	if cfg.AIReplyDelayMs != 500 {
		t.Fatalf("aiReplyDelayMs = %d, want 500", cfg.AIReplyDelayMs)
	}
}

func TestValidateConfig(t *testing.T) {
	base := FileConfig{
		Port:        "8080",
		DatabaseURL: "postgres://localhost:5432/cinechat",
	}

	tests := []struct {
		name    string
		mutate  func(*FileConfig)
		wantErr bool
	}{
		{name: "valid minimal", mutate: func(*FileConfig) {}},
		{name: "missing port", mutate: func(c *FileConfig) { c.Port = "" }, wantErr: true},
		{name: "missing database", mutate: func(c *FileConfig) { c.DatabaseURL = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *FileConfig) { c.GenerationProvider = "mistral" }, wantErr: true},
		{name: "rate limit without redis", mutate: func(c *FileConfig) { c.SendRateLimit = 5 }, wantErr: true},
		{name: "rate limit with redis", mutate: func(c *FileConfig) {
			c.SendRateLimit = 5
			c.RedisAddr = "localhost:6379"
		}},
		{name: "negative delay", mutate: func(c *FileConfig) { c.AIReplyDelayMs = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := validateConfig(cfg)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
