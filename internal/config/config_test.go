package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("INTERNAL_API_SECRET", "s3cret")
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Editor.AutosaveInterval != 30*time.Second || cfg.Editor.HistoryLimit != 50 {
		t.Fatalf("editor defaults: %+v", cfg.Editor)
	}
	if cfg.Worker.RenderReadyTimeout != 8*time.Second {
		t.Fatalf("render timeout default: %v", cfg.Worker.RenderReadyTimeout)
	}
	if cfg.Editor.PriceFlashDelay != 2*time.Second || cfg.Editor.DefaultRegion != "WEST_COAST" {
		t.Fatalf("price defaults: %+v", cfg.Editor)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("redis addr: %s", cfg.Redis.Addr())
	}
}

func TestLoadFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTOSAVE_INTERVAL", "5s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("API_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Editor.AutosaveInterval != 5*time.Second || cfg.API.Port != 9090 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	origins := cfg.API.AllowedOrigins()
	if len(origins) != 2 || origins[1] != "https://b.example" {
		t.Fatalf("origins: %v", origins)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio123")
	t.Setenv("INTERNAL_API_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}
