package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"adBuilder/internal/model"
)

type recordingRepo struct {
	seeded []model.Template
	err    error
}

func (r *recordingRepo) UpsertSystemTemplate(_ context.Context, t model.Template) error {
	if r.err != nil {
		return r.err
	}
	r.seeded = append(r.seeded, t)
	return nil
}

func TestLoadTemplates(t *testing.T) {
	templates, err := loadTemplates("testdata/templates.toml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(templates))
	}
	hero := templates[0]
	if hero.ID != "tpl-hero-grid" || hero.Canvas.Width != 1000 || len(hero.Zones) != 2 {
		t.Fatalf("unexpected template %+v", hero)
	}
	if z, ok := hero.Zone("hero"); !ok || z.Height != 560 || len(z.AllowedContentTypes) != 2 {
		t.Fatalf("unexpected hero zone %+v", z)
	}
	if len(hero.BackgroundLayers) != 1 || hero.BackgroundLayers[0].Colors[0] != "#fff8e7" {
		t.Fatalf("unexpected layers %+v", hero.BackgroundLayers)
	}
}

func TestLoadTemplatesRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.toml")
	body := `
[[templates]]
id = "a"
name = "A"
canvas = { width = 10, height = 10 }

[[templates]]
id = "a"
name = "A again"
canvas = { width = 10, height = 10 }
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTemplates(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestSeedTemplates(t *testing.T) {
	templates, err := loadTemplates("testdata/templates.toml")
	if err != nil {
		t.Fatal(err)
	}
	repo := &recordingRepo{}
	n, err := seedTemplates(context.Background(), repo, templates)
	if err != nil || n != 2 || len(repo.seeded) != 2 {
		t.Fatalf("seed: n=%d err=%v seeded=%d", n, err, len(repo.seeded))
	}

	repo = &recordingRepo{err: errors.New("boom")}
	if _, err := seedTemplates(context.Background(), repo, templates); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadDatabaseConfigFallsBackToEnv(t *testing.T) {
	t.Setenv("DATABASE_HOST", "")
	t.Setenv("DATABASE_PORT", "6543")
	t.Setenv("POSTGRES_DB", "ads")
	t.Setenv("POSTGRES_USER", "ads")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("DATABASE_SSLMODE", "")

	cfg, err := loadDatabaseConfig("", 0, "", "", "", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Host != "localhost" || cfg.Port != 6543 || cfg.Name != "ads" || cfg.SSLMode != "disable" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("DB_PASSWORD", "")
	if _, err := loadDatabaseConfig("", 0, "", "", "", ""); err == nil {
		t.Fatalf("expected missing password error")
	}
}
