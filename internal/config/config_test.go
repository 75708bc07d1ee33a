package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.DatabaseDriver != "postgres" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FetchTimeout != 20*time.Second || cfg.CacheMaxAge != 10*time.Minute {
		t.Fatalf("unexpected duration defaults: %+v", cfg)
	}
	if cfg.ReadabilityFallback {
		t.Fatalf("readability fallback must default to off")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	content := `
listen_addr = "127.0.0.1:9000"
database_driver = "sqlite"
database_dsn = "/tmp/feeds.db"
fetch_timeout = "5s"
readability_fallback = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RSSGEN_PUBLIC_URL", "https://feeds.example")
	t.Setenv("RSSGEN_LISTEN_ADDR", ":7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != "/tmp/feeds.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.FetchTimeout != 5*time.Second || !cfg.ReadabilityFallback {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.PublicURL != "https://feeds.example" || cfg.ListenAddr != ":7000" {
		t.Fatalf("env values not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("RSSGEN_DATABASE_DRIVER", "mysql")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}
